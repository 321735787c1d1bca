// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// CounterFlags is the flag set of a binary counter reading status octet.
type CounterFlags byte

// counter flags
const (
	CounterCarry    CounterFlags = 0x20 // CY, counter overflow in the period
	CounterAdjusted CounterFlags = 0x40 // CA, counter was adjusted
	CounterInvalid  CounterFlags = 0x80 // IV

	counterFlagMask = CounterCarry | CounterAdjusted | CounterInvalid
)

func (sf CounterFlags) String() string {
	var s []string
	if sf&CounterCarry != 0 {
		s = append(s, "CY")
	}
	if sf&CounterAdjusted != 0 {
		s = append(s, "CA")
	}
	if sf&CounterInvalid != 0 {
		s = append(s, "IV")
	}
	return strings.Join(s, "|")
}

// BinaryCounterReading is the binary counter reading (BCR).
//
//	| counter reading, 4 octets little endian, signed |
//	| IV | CA | CY | sequence number (5 bits)          |
type BinaryCounterReading struct {
	Value     int32
	SeqNumber byte // 0..31
	Flags     CounterFlags
}

func (BinaryCounterReading) Kind() ElementKind { return KindCounter }
func (BinaryCounterReading) Size() int         { return 5 }
func (BinaryCounterReading) isElement()        {}

func (sf BinaryCounterReading) String() string {
	return fmt.Sprintf("BCR<%d,sq=%d,%s>", sf.Value, sf.SeqNumber, sf.Flags)
}

func (sf BinaryCounterReading) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 5); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(buf[offset:], uint32(sf.Value))
	buf[offset+4] = sf.SeqNumber&0x1f | byte(sf.Flags&counterFlagMask)
	return 5, nil
}

// DecodeBinaryCounterReading decodes a BCR from b.
func DecodeBinaryCounterReading(b []byte) (BinaryCounterReading, error) {
	if err := checkDecode(b, 5); err != nil {
		return BinaryCounterReading{}, err
	}
	return BinaryCounterReading{
		Value:     int32(binary.LittleEndian.Uint32(b)),
		SeqNumber: b[4] & 0x1f,
		Flags:     CounterFlags(b[4]) & counterFlagMask,
	}, nil
}
