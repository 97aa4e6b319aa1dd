// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads the daemon's YAML configuration file and applies
// defaults via a load-then-validate step.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggerConfig is the root configuration document for the daemon.
type LoggerConfig struct {
	InstancePrefix string            `yaml:"instance_prefix"`
	Translation    []TranslationItem `yaml:"translation"`

	IntervalSec      int  `yaml:"interval_sec"`
	StatsIntervalSec int  `yaml:"stats_interval_sec"`
	MaxQueueSize     int  `yaml:"max_queue_size"`
	DryRun           bool `yaml:"dry_run"`

	Serial     SerialConfig     `yaml:"serial"`
	Remote     RemoteConfig     `yaml:"remote"`
	DiskBuffer DiskBufferConfig `yaml:"diskbuffer"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TranslationItem maps one raw sensor-line label to its canonical published
// name.
type TranslationItem struct {
	CommLabel     string `yaml:"comm_label"`
	CanonicalName string `yaml:"canonical_name"`
}

// SerialConfig describes the serial device the parser reads from.
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReopenDelay time.Duration `yaml:"reopen_delay"`
}

// RemoteTLSConfig optionally configures mutual TLS to the remote store.
type RemoteTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// RemoteConfig describes how to reach the remote datastore.
type RemoteConfig struct {
	NATSURL        string          `yaml:"nats_url"`
	Subject        string          `yaml:"subject"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	TLS            RemoteTLSConfig `yaml:"tls"`
}

// DiskBufferConfig describes the local SQLite spill file.
type DiskBufferConfig struct {
	Path            string  `yaml:"path"`
	WriteRatePerSec float64 `yaml:"write_rate_per_sec"`
}

// MetricsConfig optionally exposes a Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the daemon's structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

const (
	defaultIntervalSec      = 120
	defaultStatsIntervalSec = 600
	defaultMaxQueueSize     = 262144
	defaultSerialBaud       = 9600
	defaultSerialReopen     = 30 * time.Second
	defaultRequestTimeout   = 10 * time.Second
)

// Load reads and validates the YAML file at path.
func Load(path string) (*LoggerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading logger config: %w", err)
	}

	var cfg LoggerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing logger config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating logger config: %w", err)
	}

	return &cfg, nil
}

func (c *LoggerConfig) validate() error {
	if c.InstancePrefix == "" {
		return fmt.Errorf("instance_prefix is required")
	}
	if len(c.Translation) == 0 {
		return fmt.Errorf("translation must have at least one entry")
	}
	for i, tr := range c.Translation {
		if tr.CommLabel == "" {
			return fmt.Errorf("translation[%d].comm_label is required", i)
		}
		if tr.CanonicalName == "" {
			return fmt.Errorf("translation[%d].canonical_name is required", i)
		}
	}

	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	if c.Serial.Baud <= 0 {
		c.Serial.Baud = defaultSerialBaud
	}
	if c.Serial.ReopenDelay <= 0 {
		c.Serial.ReopenDelay = defaultSerialReopen
	}

	if !c.DryRun {
		if c.Remote.NATSURL == "" {
			return fmt.Errorf("remote.nats_url is required unless dry_run is set")
		}
		if c.Remote.Subject == "" {
			return fmt.Errorf("remote.subject is required unless dry_run is set")
		}
	}
	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = defaultRequestTimeout
	}
	if c.Remote.TLS.Enabled {
		if c.Remote.TLS.ClientCert == "" || c.Remote.TLS.ClientKey == "" {
			return fmt.Errorf("remote.tls.client_cert and remote.tls.client_key are required when remote.tls.enabled is set")
		}
	}

	if c.DiskBuffer.Path == "" {
		return fmt.Errorf("diskbuffer.path is required")
	}
	if c.DiskBuffer.WriteRatePerSec < 0 {
		return fmt.Errorf("diskbuffer.write_rate_per_sec must not be negative")
	}

	if c.IntervalSec <= 0 {
		c.IntervalSec = defaultIntervalSec
	}
	if c.StatsIntervalSec <= 0 {
		c.StatsIntervalSec = defaultStatsIntervalSec
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaultMaxQueueSize
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}
