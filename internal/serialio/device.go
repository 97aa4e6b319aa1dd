// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package serialio

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DeviceOpener returns a StreamOpener that opens the named serial device at
// the given baud rate, as a read-only serial input source.
// It is the default opener wired in production; tests use an in-memory
// io.Reader opener instead.
func DeviceOpener(path string, baud int) StreamOpener {
	mode := &serial.Mode{BaudRate: baud}
	return func(ctx context.Context) (io.ReadCloser, error) {
		port, err := serial.Open(path, mode)
		if err != nil {
			return nil, fmt.Errorf("opening serial device %s: %w", path, err)
		}
		if err := port.SetReadTimeout(time.Second); err != nil {
			port.Close()
			return nil, fmt.Errorf("setting read timeout on %s: %w", path, err)
		}
		return port, nil
	}
}
