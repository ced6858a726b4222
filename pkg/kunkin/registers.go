// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 czeck6

package kunkin

import "math"

// Quantity identifies a writable logical register of the load.
type Quantity int

// Writable quantities
const (
	QuantityOnOff Quantity = iota
	QuantityMode
	QuantityVoltage
	QuantityCurrent
	QuantityResistance
	QuantityPower
)

// RegisterSpec describes one writable register: where it lives, how user
// units map to the wire encoding, and the inclusive range the device
// accepts. Keeping the whole table in one place means a different load
// model only needs a different table, not a different codec.
type RegisterSpec struct {
	Quantity Quantity
	Name     string  // human name, used in error messages
	Address  uint16  // 16-bit register address
	Unit     string  // encoding unit on the wire
	Scale    float64 // encoded = round(value * Scale)
	Min      uint32  // inclusive, in encoding units
	Max      uint32  // inclusive, in encoding units
}

// registerTable is the KP184/400W register map.
var registerTable = map[Quantity]RegisterSpec{
	QuantityOnOff:      {QuantityOnOff, "on/off", 0x010E, "", 1, 0, 1},
	QuantityMode:       {QuantityMode, "mode", 0x0110, "", 1, 0, 3},
	QuantityVoltage:    {QuantityVoltage, "voltage", 0x0112, "mV", 1000, 0, 150000},
	QuantityCurrent:    {QuantityCurrent, "current", 0x0116, "mA", 1000, 0, 30000},
	QuantityResistance: {QuantityResistance, "resistance", 0x011A, "mOhm", 1000, 0, 80000},
	QuantityPower:      {QuantityPower, "power", 0x011E, "dW", 10, 0, 2500},
}

// LookupRegister returns the register spec for a quantity.
func LookupRegister(q Quantity) (RegisterSpec, bool) {
	spec, ok := registerTable[q]
	return spec, ok
}

// Encode converts a value in user units to its wire encoding, validating
// the device's range first. A value outside the range returns a *RangeError
// and no frame should be built from it.
func (r RegisterSpec) Encode(value float64) (uint32, error) {
	encoded := math.Round(value * r.Scale)
	if math.IsNaN(encoded) || encoded < float64(r.Min) || encoded > float64(r.Max) {
		return 0, &RangeError{
			Quantity: r.Name,
			Value:    value,
			Unit:     r.Unit,
			Min:      r.Min,
			Max:      r.Max,
		}
	}
	return uint32(encoded), nil
}
