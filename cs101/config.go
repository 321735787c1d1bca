// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"fmt"

	"go.bug.st/serial"
	"gopkg.in/validator.v2"
)

// Constants defining default values and ranges for the link layer.
const (
	DefaultLinkAddrSize = 1
	LinkAddrSizeMin     = 0
	LinkAddrSizeMax     = 2

	DefaultLinkAddress = 1

	DefaultBaudRate = 9600
	DefaultDataBits = 8
)

// Config defines the balanced FT1.2 link of an IEC 60870-5-101 station.
type Config struct {
	// Serial port settings
	Serial SerialConfig

	// LinkAddress of this station. Frames addressed to other stations are
	// ignored, the broadcast address is accepted.
	LinkAddress uint16
	// LinkAddrSize is the size of the link address field in octets (0, 1 or 2).
	LinkAddrSize byte `validate:"max=2"`
}

// Valid applies the serial defaults to zero fields and checks the ranges.
func (sf *Config) Valid() error {
	if sf == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidSerial)
	}
	if err := validator.Validate(sf); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLinkAddrLen, err)
	}
	if sf.LinkAddrSize == 1 && sf.LinkAddress > 0xff {
		return fmt.Errorf("%w: %d in one octet", ErrLinkAddrFit, sf.LinkAddress)
	}
	return sf.Serial.Valid()
}

// broadcast returns the broadcast link address for the configured size.
func (sf *Config) broadcast() uint16 {
	if sf.LinkAddrSize == 1 {
		return 0xff
	}
	return 0xffff
}

// DefaultConfig returns link address 1 in one octet over a 9600 8E1 line.
// The serial port address still has to be set.
func DefaultConfig() Config {
	return Config{
		Serial: SerialConfig{
			BaudRate: DefaultBaudRate,
			DataBits: DefaultDataBits,
			Parity:   serial.EvenParity,
			StopBits: serial.OneStopBit,
		},
		LinkAddress:  DefaultLinkAddress,
		LinkAddrSize: DefaultLinkAddrSize,
	}
}
