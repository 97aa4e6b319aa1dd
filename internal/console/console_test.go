// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/stats"
)

func TestRun_PrintsSnapshotPerLine(t *testing.T) {
	c := stats.New(queue.New(), stats.Config{InstancePrefix: "t:", MaxQueueSize: 1000}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.AddCommLines(7)

	in := strings.NewReader("\n\n")
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		Run(ctx, in, &out, c)
		close(done)
	}()
	<-done

	if !strings.Contains(out.String(), "comm_lines=7") {
		t.Fatalf("expected output to contain comm_lines=7, got %q", out.String())
	}
	if strings.Count(out.String(), "\n") != 2 {
		t.Fatalf("expected 2 printed lines for 2 input lines, got %q", out.String())
	}
}
