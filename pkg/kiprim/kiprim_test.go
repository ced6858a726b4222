// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kiprim

import (
	"testing"
	"time"
)

// fakeConn records written commands and serves canned replies.
type fakeConn struct {
	writes  []string
	pending []byte
	replies [][]byte // consumed one per write
	resets  int
	closed  bool
}

func (f *fakeConn) Read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		return 0, nil
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.writes = append(f.writes, string(p))
	if len(f.replies) > 0 {
		f.pending = append(f.pending, f.replies[0]...)
		f.replies = f.replies[1:]
	}
	return len(p), nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadTimeout(t time.Duration) error { return nil }

func (f *fakeConn) ResetInputBuffer() error {
	f.resets++
	f.pending = nil
	return nil
}

func TestFormatSetpoint(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{0, "0.0000"},
		{1.5, "1.5000"},
		{1.23456, "1.2346"},
		{12.34567, "12.345"},
		{123.456, "123.45"},
		{-1.5, "-1.500"},
	}

	for _, tt := range tests {
		if got := formatSetpoint(tt.value); got != tt.expected {
			t.Errorf("formatSetpoint(%g) = %q, expected %q", tt.value, got, tt.expected)
		}
	}
}

func TestSupply_SetVoltage(t *testing.T) {
	conn := &fakeConn{}
	s := NewSupply(conn)

	if err := s.SetVoltage(12.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.writes) != 1 || conn.writes[0] != "VOLT 12.500\n" {
		t.Errorf("wrote %q", conn.writes)
	}
}

func TestSupply_SetCurrent(t *testing.T) {
	conn := &fakeConn{}
	s := NewSupply(conn)

	if err := s.SetCurrent(1.23456); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.writes) != 1 || conn.writes[0] != "CURR 1.2346\n" {
		t.Errorf("wrote %q", conn.writes)
	}
}

func TestSupply_OutputOff(t *testing.T) {
	conn := &fakeConn{}
	s := NewSupply(conn)

	if err := s.OutputOff(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"CURR 0.0\n", "VOLT 0.0\n"}
	if len(conn.writes) != 2 || conn.writes[0] != expected[0] || conn.writes[1] != expected[1] {
		t.Errorf("wrote %q, expected %q", conn.writes, expected)
	}
}

func TestSupply_OutputOn(t *testing.T) {
	conn := &fakeConn{}
	s := NewSupply(conn)

	if err := s.OutputOn(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.writes) != 1 || conn.writes[0] != "OUTP ON\n" {
		t.Errorf("wrote %q", conn.writes)
	}
}

func TestSupply_MeasureVoltage(t *testing.T) {
	conn := &fakeConn{replies: [][]byte{[]byte("12.340\n")}}
	s := NewSupply(conn)

	v, err := s.MeasureVoltage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 12.34 {
		t.Errorf("expected 12.34, got %g", v)
	}
	if conn.writes[0] != "MEAS:VOLT?\n" {
		t.Errorf("query was %q", conn.writes[0])
	}
	if conn.resets == 0 {
		t.Error("stale input was not cleared before the query")
	}
}

func TestSupply_MeasureCurrentBadReply(t *testing.T) {
	conn := &fakeConn{replies: [][]byte{[]byte("garbage\n")}}
	s := NewSupply(conn)

	if _, err := s.MeasureCurrent(); err == nil {
		t.Error("expected parse error for non-numeric reply")
	}
}

func TestSupply_MeasureNoReply(t *testing.T) {
	conn := &fakeConn{}
	s := NewSupply(conn)
	s.queryWait = 10 * time.Millisecond

	if _, err := s.MeasureVoltage(); err == nil {
		t.Error("expected error when the supply stays silent")
	}
}

func TestSupply_Close(t *testing.T) {
	conn := &fakeConn{}
	s := NewSupply(conn)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !conn.closed {
		t.Error("channel was not closed")
	}
}
