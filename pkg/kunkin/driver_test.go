// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeConn is an in-memory channel scripted like the device: each write
// queues either an echo of the written frame or the next canned reply.
type fakeConn struct {
	echo    bool     // echo every written frame back (write confirmation)
	replies [][]byte // canned replies, consumed one per write
	pending []byte   // bytes waiting to be read
	chunk   int      // max bytes per read; 0 means unlimited
	writes  [][]byte
	resets  int
	timeout time.Duration
	closed  bool
}

func (f *fakeConn) Read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		return 0, nil // timed-out read, serial port semantics
	}
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeConn) Write(p []byte) (int, error) {
	frame := append([]byte(nil), p...)
	f.writes = append(f.writes, frame)
	if f.echo {
		f.pending = append(f.pending, frame...)
	} else if len(f.replies) > 0 {
		f.pending = append(f.pending, f.replies[0]...)
		f.replies = f.replies[1:]
	}
	return len(p), nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func (f *fakeConn) ResetInputBuffer() error {
	f.resets++
	f.pending = nil
	return nil
}

// testDriver wraps a fakeConn in a driver with timing cut down for tests.
func testDriver(conn *fakeConn) *Driver {
	d := NewDriver(conn, 1)
	d.SetTiming(Timing{
		SettleDelay:  0,
		InterReadGap: time.Millisecond,
		MaxWait:      50 * time.Millisecond,
	})
	return d
}

func TestDriver_SetPowerStateConfirmed(t *testing.T) {
	conn := &fakeConn{echo: true}
	d := testDriver(conn)

	confirmed, err := d.SetPowerState(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !confirmed {
		t.Error("expected echo confirmation")
	}

	expected := BuildWriteFrame(1, 0x010E, 1)
	if len(conn.writes) != 1 || !bytes.Equal(conn.writes[0], expected) {
		t.Errorf("transmitted frame mismatch:\nexpected % X\ngot      % X", expected, conn.writes)
	}
	if conn.resets == 0 {
		t.Error("stale input was not cleared before transmit")
	}
}

func TestDriver_SetPowerStateIdempotent(t *testing.T) {
	conn := &fakeConn{echo: true}
	d := testDriver(conn)

	for i := 0; i < 2; i++ {
		confirmed, err := d.SetPowerState(true)
		if err != nil || !confirmed {
			t.Fatalf("call %d: confirmed=%v err=%v", i, confirmed, err)
		}
	}
	if len(conn.writes) != 2 {
		t.Fatalf("expected 2 transmitted frames, got %d", len(conn.writes))
	}
	if !bytes.Equal(conn.writes[0], conn.writes[1]) {
		t.Errorf("repeated command built different frames:\n% X\n% X", conn.writes[0], conn.writes[1])
	}
}

func TestDriver_WriteNotConfirmed(t *testing.T) {
	frame := BuildWriteFrame(1, 0x0116, 1000)
	corrupted := append([]byte(nil), frame...)
	corrupted[8] ^= 0x01

	conn := &fakeConn{replies: [][]byte{corrupted}}
	d := testDriver(conn)

	confirmed, err := d.SetCurrent(1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed {
		t.Error("mismatched echo must not confirm the write")
	}
}

func TestDriver_TruncatedEchoConfirms(t *testing.T) {
	frame := BuildWriteFrame(1, 0x0110, 1)
	conn := &fakeConn{replies: [][]byte{frame[:len(frame)-2]}}
	d := testDriver(conn)

	confirmed, err := d.SetMode(ModeCC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !confirmed {
		t.Error("truncated echo prefix should confirm the write")
	}
}

func TestDriver_NoReplyWrite(t *testing.T) {
	conn := &fakeConn{}
	d := testDriver(conn)

	confirmed, err := d.SetVoltage(12.0)
	if err != nil {
		t.Fatalf("silence is not an error, got: %v", err)
	}
	if confirmed {
		t.Error("no echo must not confirm the write")
	}
}

func TestDriver_InvalidInputBeforeIO(t *testing.T) {
	tests := []struct {
		name string
		op   func(*Driver) (bool, error)
	}{
		{"voltage above range", func(d *Driver) (bool, error) { return d.SetVoltage(150.001) }},
		{"current above range", func(d *Driver) (bool, error) { return d.SetCurrent(30.001) }},
		{"resistance above range", func(d *Driver) (bool, error) { return d.SetResistance(80.001) }},
		{"power above range", func(d *Driver) (bool, error) { return d.SetPower(250.1) }},
		{"negative voltage", func(d *Driver) (bool, error) { return d.SetVoltage(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{echo: true}
			d := testDriver(conn)

			confirmed, err := tt.op(d)
			if err == nil {
				t.Fatal("expected range error")
			}
			var rangeErr *RangeError
			if !errors.As(err, &rangeErr) {
				t.Errorf("expected *RangeError, got %T: %v", err, err)
			}
			if confirmed {
				t.Error("rejected input must not report confirmation")
			}
			if len(conn.writes) != 0 {
				t.Errorf("rejected input reached the device: % X", conn.writes)
			}
		})
	}
}

func TestDriver_BoundaryValuesAccepted(t *testing.T) {
	tests := []struct {
		name     string
		op       func(*Driver) (bool, error)
		register uint16
		encoded  uint32
	}{
		{"voltage 150 V", func(d *Driver) (bool, error) { return d.SetVoltage(150.0) }, 0x0112, 150000},
		{"current 30 A", func(d *Driver) (bool, error) { return d.SetCurrent(30.0) }, 0x0116, 30000},
		{"resistance 80 Ohm", func(d *Driver) (bool, error) { return d.SetResistance(80.0) }, 0x011A, 80000},
		{"power 250 W", func(d *Driver) (bool, error) { return d.SetPower(250.0) }, 0x011E, 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{echo: true}
			d := testDriver(conn)

			confirmed, err := tt.op(d)
			if err != nil {
				t.Fatalf("boundary value rejected: %v", err)
			}
			if !confirmed {
				t.Error("expected confirmation")
			}
			expected := BuildWriteFrame(1, tt.register, tt.encoded)
			if !bytes.Equal(conn.writes[0], expected) {
				t.Errorf("frame mismatch:\nexpected % X\ngot      % X", expected, conn.writes[0])
			}
		})
	}
}

func TestDriver_SetModeInvalid(t *testing.T) {
	conn := &fakeConn{echo: true}
	d := testDriver(conn)

	_, err := d.SetMode(Mode(4))
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
	if len(conn.writes) != 0 {
		t.Error("invalid mode reached the device")
	}
}

func TestDriver_GetMeasurements(t *testing.T) {
	reply := buildReadReply(1, referencePayload)
	conn := &fakeConn{replies: [][]byte{reply}}
	d := testDriver(conn)

	m, err := d.GetMeasurements()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if !m.On || m.Mode != ModeCC || m.VoltageV != 5.0 || m.CurrentA != 1.0 {
		t.Errorf("bad snapshot: %+v", m)
	}

	expected := BuildReadCommonFrame(1)
	if !bytes.Equal(conn.writes[0], expected) {
		t.Errorf("request mismatch:\nexpected % X\ngot      % X", expected, conn.writes[0])
	}
}

func TestDriver_GetMeasurementsNoReply(t *testing.T) {
	conn := &fakeConn{}
	d := testDriver(conn)

	m, err := d.GetMeasurements()
	if err != nil {
		t.Fatalf("silence is not an error, got: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil snapshot, got %+v", m)
	}
}

func TestDriver_GetMeasurementsFragmentedReply(t *testing.T) {
	// The drain loop must reassemble a reply that arrives in pieces within
	// the inter-read gap.
	reply := buildReadReply(1, referencePayload)
	conn := &fakeConn{replies: [][]byte{reply}, chunk: 3}
	d := testDriver(conn)

	m, err := d.GetMeasurements()
	if err != nil || m == nil {
		t.Fatalf("expected snapshot, got m=%v err=%v", m, err)
	}
}

func TestDriver_Close(t *testing.T) {
	conn := &fakeConn{}
	d := testDriver(conn)

	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !conn.closed {
		t.Error("channel was not closed")
	}
}
