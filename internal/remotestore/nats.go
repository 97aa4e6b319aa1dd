// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package remotestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wczasowa/groundlogger/internal/pki"
)

// NATSConfig parameterizes the NATS-backed Client.
type NATSConfig struct {
	URL            string
	Subject        string
	RequestTimeout time.Duration

	TLSEnabled    bool
	CACertPath    string
	ClientCert    string
	ClientKey     string
}

// NATSClient publishes batches as a request/reply round trip to a single
// subject, so PutBatch only succeeds once the remote side has acked.
type NATSClient struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// NewNATSClient dials the configured NATS server.
func NewNATSClient(cfg NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name("groundlogger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	if cfg.TLSEnabled {
		tlsCfg, err := pki.NewClientTLSConfig(cfg.CACertPath, cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("building remote store TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsCfg))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to remote store at %s: %w", cfg.URL, err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &NATSClient{conn: conn, subject: cfg.Subject, timeout: timeout}, nil
}

// batchEnvelope is the wire payload for one PutBatch request.
type batchEnvelope struct {
	Entries []Entry `json:"entries"`
}

// batchAck is the expected reply payload. A non-empty Error means the
// remote side rejected the batch; the batch is not considered stored.
type batchAck struct {
	Error string `json:"error,omitempty"`
}

// PutBatch encodes batch as JSON and waits for an ack on cfg.Subject.
func (c *NATSClient) PutBatch(ctx context.Context, batch []Entry) error {
	payload, err := json.Marshal(batchEnvelope{Entries: batch})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(reqCtx, c.subject, payload)
	if err != nil {
		return fmt.Errorf("publishing batch to %s: %w", c.subject, err)
	}

	var ack batchAck
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		return fmt.Errorf("decoding ack: %w", err)
	}
	if ack.Error != "" {
		return fmt.Errorf("remote store rejected batch: %s", ack.Error)
	}
	return nil
}

// Close drains and closes the underlying NATS connection.
func (c *NATSClient) Close() error {
	return c.conn.Drain()
}

// Client satisfied by NATSClient.
var _ Client = (*NATSClient)(nil)
