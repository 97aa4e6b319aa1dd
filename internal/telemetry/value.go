// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetry

import (
	"math"
	"strconv"
)

// Value is a finite real number, or the distinguished absent marker. Absent
// values are still persisted with only a timestamp — the remote store
// tolerates a (timestamp)-only entry.
type Value struct {
	f       float64
	present bool
}

// NewValue wraps a finite float as a present Value. NaN and Inf collapse to
// Absent — callers upstream (scraper, stats collector) only ever construct
// Values from either a validated sensor parse or a computed aggregate, so a
// non-finite input here means the aggregate had nothing to average.
func NewValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{f: f, present: true}
}

// Absent returns the distinguished "no value" marker.
func Absent() Value { return Value{} }

// Present reports whether the Value carries a number.
func (v Value) Present() bool { return v.present }

// Float returns the wrapped number and whether it is present.
func (v Value) Float() (float64, bool) { return v.f, v.present }

func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}
	return strconv.FormatFloat(v.f, 'g', -1, 64)
}
