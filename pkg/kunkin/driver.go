// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Conn is the byte channel the driver owns for its lifetime. Reads must
// time out rather than block forever: SetReadTimeout bounds a single Read
// call, and a timed-out Read returns (0, nil). go.bug.st/serial.Port
// satisfies this interface directly.
type Conn interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Timing is the half-duplex settle/drain policy. The device gives no
// length or terminator signal for its replies, so the end of a reply is
// inferred from a quiet gap on the line.
type Timing struct {
	SettleDelay  time.Duration // wait after transmit before the first read
	InterReadGap time.Duration // a gap this long with no bytes ends the reply
	MaxWait      time.Duration // hard bound on the whole drain loop
}

// DefaultTiming returns the policy that matches the device's observed
// behavior at 9600 baud.
func DefaultTiming() Timing {
	return Timing{
		SettleDelay:  100 * time.Millisecond,
		InterReadGap: 50 * time.Millisecond,
		MaxWait:      2 * time.Second,
	}
}

// Driver is a session with one load device: it exclusively owns the open
// channel and the device address. The protocol has no request identifiers,
// so requests are strictly serialized; an internal mutex keeps one request
// in flight at a time.
type Driver struct {
	mu      sync.Mutex
	conn    Conn
	address uint8
	timing  Timing
}

// NewDriver creates a driver owning conn, talking to the device at the
// given address, with DefaultTiming.
func NewDriver(conn Conn, address uint8) *Driver {
	return &Driver{
		conn:    conn,
		address: address,
		timing:  DefaultTiming(),
	}
}

// SetTiming replaces the settle/drain timing policy.
func (d *Driver) SetTiming(t Timing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timing = t
}

// Address returns the device address this session talks to.
func (d *Driver) Address() uint8 {
	return d.address
}

// Close closes the owned channel. The driver must not be used afterwards.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.Close()
}

// SetPowerState turns the load input on or off. The returned bool reports
// whether the device echoed the command back (write confirmed).
func (d *Driver) SetPowerState(on bool) (bool, error) {
	var value uint32
	if on {
		value = 1
	}
	spec := registerTable[QuantityOnOff]
	return d.writeRegister(spec.Address, value)
}

// SetMode selects the operating mode. An unsupported mode is rejected
// before any frame is built.
func (d *Driver) SetMode(mode Mode) (bool, error) {
	if !mode.Valid() {
		return false, ErrInvalidMode
	}
	spec := registerTable[QuantityMode]
	return d.writeRegister(spec.Address, uint32(mode))
}

// SetVoltage sets the CV setpoint in volts (0-150 V).
func (d *Driver) SetVoltage(volts float64) (bool, error) {
	return d.setQuantity(QuantityVoltage, volts)
}

// SetCurrent sets the CC setpoint in amperes (0-30 A).
func (d *Driver) SetCurrent(amps float64) (bool, error) {
	return d.setQuantity(QuantityCurrent, amps)
}

// SetResistance sets the CR setpoint in ohms (0-80 Ohm).
func (d *Driver) SetResistance(ohms float64) (bool, error) {
	return d.setQuantity(QuantityResistance, ohms)
}

// SetPower sets the CW setpoint in watts (0-250 W).
func (d *Driver) SetPower(watts float64) (bool, error) {
	return d.setQuantity(QuantityPower, watts)
}

// GetMeasurements reads the common register block and decodes it. A nil
// snapshot with nil error means the device did not answer (or answered with
// a short or corrupt reply); callers poll, so silence is not exceptional.
func (d *Driver) GetMeasurements() (*Measurements, error) {
	frame := BuildReadCommonFrame(d.address)
	reply, err := d.transceive(frame)
	if err != nil {
		return nil, err
	}
	return DecodeMeasurements(d.address, reply), nil
}

// setQuantity validates, encodes and writes one setpoint register.
func (d *Driver) setQuantity(q Quantity, value float64) (bool, error) {
	spec, ok := LookupRegister(q)
	if !ok {
		return false, fmt.Errorf("unknown quantity %d", q)
	}
	encoded, err := spec.Encode(value)
	if err != nil {
		return false, err
	}
	return d.writeRegister(spec.Address, encoded)
}

// writeRegister sends one write-single-register frame and checks the echo.
func (d *Driver) writeRegister(register uint16, value uint32) (bool, error) {
	frame := BuildWriteFrame(d.address, register, value)
	reply, err := d.transceive(frame)
	if err != nil {
		return false, err
	}
	return EchoConfirms(frame, reply), nil
}

// transceive performs one half-duplex request/response exchange: clear any
// stale input, transmit, then drain whatever comes back. Serialized by the
// driver mutex.
func (d *Driver) transceive(frame []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.conn.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}
	if _, err := d.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	return d.drainReply()
}

// drainReply implements read-until-quiet: wait the settle delay, then keep
// reading while bytes arrive within the inter-read gap. A gap with no bytes
// ends the reply; MaxWait bounds the whole loop so a chattering line cannot
// stall the caller.
func (d *Driver) drainReply() ([]byte, error) {
	time.Sleep(d.timing.SettleDelay)

	if err := d.conn.SetReadTimeout(d.timing.InterReadGap); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	deadline := time.Now().Add(d.timing.MaxWait)
	buf := make([]byte, 64)
	var reply []byte
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}
		if n == 0 {
			// Quiet gap: the reply (possibly empty) is complete.
			return reply, nil
		}
		reply = append(reply, buf[:n]...)
		if time.Now().After(deadline) {
			return reply, nil
		}
	}
}
