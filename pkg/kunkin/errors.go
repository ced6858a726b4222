// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

import (
	"errors"
	"fmt"
)

// ErrInvalidMode is returned when a mode outside 0-3 is requested.
// It is raised before any frame is built.
var ErrInvalidMode = errors.New("invalid mode: use 0 (CV), 1 (CC), 2 (CR) or 3 (CW)")

// RangeError reports a requested setpoint outside the register's valid
// range. It is raised before any I/O happens, so the device never sees the
// bad value.
type RangeError struct {
	Quantity string  // human name of the setpoint, e.g. "voltage"
	Value    float64 // requested value in user units
	Unit     string  // encoding unit, e.g. "mV"
	Min      uint32  // inclusive lower bound in encoding units
	Max      uint32  // inclusive upper bound in encoding units
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("%s setpoint %g out of range: allowed %d-%d %s",
		e.Quantity, e.Value, e.Min, e.Max, e.Unit)
}
