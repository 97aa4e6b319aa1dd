// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package serialio turns the noisy line-oriented text stream coming off a
// serial device into updates to a ReadingsCache. It never terminates the
// process: any failure to open or read the stream is logged and retried
// after a fixed delay, absorbing disconnect/reconnect thrash.
package serialio

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wczasowa/groundlogger/internal/cache"
)

// lineRE matches "<label>: <number>" where label excludes ':' and number is
// digits/dots that must parse as a finite float.
var lineRE = regexp.MustCompile(`^([^:]+): ([0-9.]+)$`)

// StreamOpener returns an open, line-buffered reader for the configured
// device. Implementations should not retry internally — Parser owns retry
// policy.
type StreamOpener func(ctx context.Context) (io.ReadCloser, error)

// LineStats receives optional per-line counters. A nil LineStats disables
// the hooks.
type LineStats interface {
	AddCommBytes(n int)
	AddCommLines(n int)
	AddCommParsedLines(n int)
}

const defaultReopenDelay = 30 * time.Second

// Parser reads the serial stream and updates a ReadingsCache. Zero value is
// not usable — construct with New.
type Parser struct {
	cache       *cache.ReadingsCache
	logger      *slog.Logger
	stats       LineStats
	reopenDelay time.Duration
}

// New creates a Parser writing into cache. stats may be nil.
func New(c *cache.ReadingsCache, logger *slog.Logger, stats LineStats) *Parser {
	return &Parser{
		cache:       c,
		logger:      logger,
		stats:       stats,
		reopenDelay: defaultReopenDelay,
	}
}

// WithReopenDelay overrides the default 30s reopen delay. Used by the
// pipeline to apply the configured serial reopen delay, and by tests.
func (p *Parser) WithReopenDelay(d time.Duration) *Parser {
	p.reopenDelay = d
	return p
}

// Run reads lines from the stream opener forever. It returns only when ctx
// is cancelled.
func (p *Parser) Run(ctx context.Context, open StreamOpener) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := open(ctx)
		if err != nil {
			p.logger.Error("opening serial stream failed", "error", err)
			if !p.sleep(ctx, p.reopenDelay) {
				return ctx.Err()
			}
			continue
		}

		err = p.readLoop(ctx, r)
		r.Close()

		if errors.Is(err, context.Canceled) {
			return err
		}

		p.logger.Warn("serial stream ended, reopening", "error", err, "delay", p.reopenDelay)
		if !p.sleep(ctx, p.reopenDelay) {
			return ctx.Err()
		}
	}
}

// readLoop consumes lines until the stream ends (empty read) or errors.
// Both are treated as the same fatal-to-this-connection condition: the
// caller closes and reopens.
func (p *Parser) readLoop(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	sawAnyLine := false
	for scanner.Scan() {
		if ctx.Err() != nil {
			return context.Canceled
		}
		sawAnyLine = true
		raw := scanner.Bytes()
		p.observeBytes(len(raw) + 1)
		p.observeLine()
		p.acceptLine(toValidUTF8(raw))
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	if !sawAnyLine {
		return errors.New("empty read: end of stream")
	}
	return errors.New("end of stream")
}

func (p *Parser) acceptLine(line string) {
	if line == "" {
		return
	}
	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil || !isFinite(value) {
		return
	}
	label := m[1]
	p.cache.Update(label, value, time.Now().UTC())
	p.observeParsedLine()
}

func (p *Parser) observeBytes(n int) {
	if p.stats != nil {
		p.stats.AddCommBytes(n)
	}
}

func (p *Parser) observeLine() {
	if p.stats != nil {
		p.stats.AddCommLines(1)
	}
}

func (p *Parser) observeParsedLine() {
	if p.stats != nil {
		p.stats.AddCommParsedLines(1)
	}
}

func (p *Parser) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) // false for NaN and +/-Inf
}

// toValidUTF8 replaces invalid byte sequences with the UTF-8 replacement
// character, done with plain stdlib string/unicode helpers rather than
// pulling in a decoding library for what is just input sanitization.
func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
