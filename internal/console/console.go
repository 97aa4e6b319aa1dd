// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package console implements the tiny operator-facing REPL: pressing enter
// on stdin prints a snapshot of the stats collector. This is intentionally
// built on bufio/os alone — there is no library in the dependency pack for
// a one-command stdin REPL, and reaching for one would be pure ceremony
// over a few lines of stdlib.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wczasowa/groundlogger/internal/stats"
)

// Run blocks reading lines from in, printing a stats snapshot to out after
// each one, until ctx is cancelled or in is closed.
func Run(ctx context.Context, in io.Reader, out io.Writer, collector *stats.Collector) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-lines:
			if !ok {
				return
			}
			printSnapshot(out, collector.Snapshot())
		}
	}
}

func printSnapshot(out io.Writer, s stats.Snapshot) {
	fmt.Fprintf(out, "uptime=%.0fs comm_bytes=%d comm_lines=%d parsed_lines=%d new_readings=%d elements_written=%d window_success=%d window_failure=%d last_success=%s last_failure=%s\n",
		s.UptimeSeconds, s.CommBytes, s.CommLines, s.CommParsedLines, s.NewReadings, s.ElementsWritten,
		s.WindowSuccesses, s.WindowFailures, sinceUnixNanos(s.LastSuccessUnix), sinceUnixNanos(s.LastFailureUnix))
}

// sinceUnixNanos formats the time elapsed since a unix-nanos timestamp, or
// "never" for the zero value Collector uses to mean "hasn't happened yet".
func sinceUnixNanos(unixNanos int64) string {
	if unixNanos == 0 {
		return "never"
	}
	return fmt.Sprintf("%.0fs ago", time.Since(time.Unix(0, unixNanos)).Seconds())
}
