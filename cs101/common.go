// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
)

// SerialConfig holds serial port configuration parameters.
type SerialConfig struct {
	// Address is the serial port address (e.g., "COM3" on Windows, "/dev/ttyS0" on Linux).
	Address string
	// BaudRate is the serial port speed (e.g., 9600, 19200, 115200).
	BaudRate int
	// DataBits is the number of data bits, 8 for IEC 60870-5.
	DataBits int
	// StopBits is serial.OneStopBit or serial.TwoStopBits.
	StopBits serial.StopBits
	// Parity is serial.NoParity, serial.OddParity or serial.EvenParity.
	Parity serial.Parity
}

// Valid fills zero speed and data bits with defaults and checks the rest.
func (sf *SerialConfig) Valid() error {
	if sf.Address == "" {
		return ErrNoSerialPort
	}
	if sf.BaudRate == 0 {
		sf.BaudRate = DefaultBaudRate
	}
	if sf.DataBits == 0 {
		sf.DataBits = DefaultDataBits
	}
	if sf.BaudRate < 0 {
		return fmt.Errorf("%w: baud rate %d", ErrInvalidSerial, sf.BaudRate)
	}
	if sf.DataBits < 5 || sf.DataBits > 8 {
		return fmt.Errorf("%w: %d data bits", ErrInvalidSerial, sf.DataBits)
	}
	if sf.Parity > serial.SpaceParity {
		return fmt.Errorf("%w: parity %d", ErrInvalidSerial, sf.Parity)
	}
	if sf.StopBits > serial.TwoStopBits {
		return fmt.Errorf("%w: stop bits %d", ErrInvalidSerial, sf.StopBits)
	}
	return nil
}

// Mode returns the port settings.
func (sf *SerialConfig) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: sf.BaudRate,
		DataBits: sf.DataBits,
		Parity:   sf.Parity,
		StopBits: sf.StopBits,
	}
}

// String returns the settings in the usual "9600 8E1" notation.
func (sf *SerialConfig) String() string {
	parity := [...]string{"N", "O", "E", "M", "S"}
	p := "?"
	if int(sf.Parity) < len(parity) {
		p = parity[sf.Parity]
	}
	stop := [...]string{"1", "1.5", "2"}
	s := "?"
	if int(sf.StopBits) < len(stop) {
		s = stop[sf.StopBits]
	}
	return fmt.Sprintf("%s %d %d%s%s", sf.Address, sf.BaudRate, sf.DataBits, p, s)
}

// ParseParity accepts N, E, O, M, S or the full names, in any case.
func ParseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "none":
		return serial.NoParity, nil
	case "e", "even":
		return serial.EvenParity, nil
	case "o", "odd":
		return serial.OddParity, nil
	case "m", "mark":
		return serial.MarkParity, nil
	case "s", "space":
		return serial.SpaceParity, nil
	}
	return serial.NoParity, fmt.Errorf("%w: parity %q", ErrInvalidSerial, s)
}

// ParseStopBits accepts 1, 1.5 and 2.
func ParseStopBits(s string) (serial.StopBits, error) {
	switch strings.TrimSpace(s) {
	case "", "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	}
	return serial.OneStopBit, fmt.Errorf("%w: stop bits %q", ErrInvalidSerial, s)
}

// PortOpener opens the byte stream of a serial line.
type PortOpener func(cfg SerialConfig) (io.ReadWriteCloser, error)

// OpenSerial opens the serial port described by cfg.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.Address, cfg.Mode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Address, err)
	}
	return port, nil
}
