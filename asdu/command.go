// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import "encoding/binary"

// QualifierOfCommand is the qualifier of command (QU), 0..31.
type QualifierOfCommand byte

// qualifier of command
const (
	QOCNoAdditionalDefinition QualifierOfCommand = iota
	QOCShortPulseDuration
	QOCLongPulseDuration
	QOCPersistentOutput
)

// SingleCommand is the single command octet (SCO). The layout is that of
// IEC 60870-5-101 7.2.6.15, with QU in bits 2 to 6.
//
//	| S/E | QU (5 bits) | RES | SCS |
type SingleCommand struct {
	Value     bool
	Qualifier QualifierOfCommand
	Select    bool
}

func (SingleCommand) Kind() ElementKind { return KindSingleCommand }
func (SingleCommand) Size() int         { return 1 }
func (SingleCommand) isElement()        {}

func (sf SingleCommand) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 1); err != nil {
		return 0, err
	}
	v := commandOctet(byte(sf.Qualifier), sf.Select)
	if sf.Value {
		v |= 0x01
	}
	buf[offset] = v
	return 1, nil
}

// DecodeSingleCommand decodes an SCO octet.
func DecodeSingleCommand(b []byte) (SingleCommand, error) {
	if err := checkDecode(b, 1); err != nil {
		return SingleCommand{}, err
	}
	return SingleCommand{
		Value:     b[0]&0x01 == 0x01,
		Qualifier: QualifierOfCommand((b[0] >> 2) & 0x1f),
		Select:    b[0]&0x80 == 0x80,
	}, nil
}

// DoubleCommandState is the double command state (DCS).
type DoubleCommandState byte

// double command states, 0 and 3 are not permitted
const (
	DCOOff DoubleCommandState = 1
	DCOOn  DoubleCommandState = 2
)

// DoubleCommand is the double command octet (DCO), laid out as the SCO
// with the state in bits 0 and 1.
type DoubleCommand struct {
	Value     DoubleCommandState
	Qualifier QualifierOfCommand
	Select    bool
}

func (DoubleCommand) Kind() ElementKind { return KindDoubleCommand }
func (DoubleCommand) Size() int         { return 1 }
func (DoubleCommand) isElement()        {}

func (sf DoubleCommand) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 1); err != nil {
		return 0, err
	}
	buf[offset] = commandOctet(byte(sf.Qualifier), sf.Select) | byte(sf.Value)&0x03
	return 1, nil
}

// DecodeDoubleCommand decodes a DCO octet.
func DecodeDoubleCommand(b []byte) (DoubleCommand, error) {
	if err := checkDecode(b, 1); err != nil {
		return DoubleCommand{}, err
	}
	return DoubleCommand{
		Value:     DoubleCommandState(b[0] & 0x03),
		Qualifier: QualifierOfCommand((b[0] >> 2) & 0x1f),
		Select:    b[0]&0x80 == 0x80,
	}, nil
}

func commandOctet(qu byte, sel bool) byte {
	v := (qu & 0x1f) << 2
	if sel {
		v |= 0x80
	}
	return v
}

// SetpointQualifier is the qualifier of set-point command (QOS).
//
//	| S/E | QL (7 bits) |
type SetpointQualifier struct {
	Qualifier byte // QL, 0..127
	Select    bool
}

func (SetpointQualifier) Kind() ElementKind { return KindSetpointQualifier }
func (SetpointQualifier) Size() int         { return 1 }
func (SetpointQualifier) isElement()        {}

func (sf SetpointQualifier) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 1); err != nil {
		return 0, err
	}
	v := sf.Qualifier & 0x7f
	if sf.Select {
		v |= 0x80
	}
	buf[offset] = v
	return 1, nil
}

// DecodeSetpointQualifier decodes a QOS octet.
func DecodeSetpointQualifier(b []byte) (SetpointQualifier, error) {
	if err := checkDecode(b, 1); err != nil {
		return SetpointQualifier{}, err
	}
	return SetpointQualifier{Qualifier: b[0] & 0x7f, Select: b[0]&0x80 == 0x80}, nil
}

// QualifierOfInterrogation is the qualifier of interrogation (QOI).
type QualifierOfInterrogation byte

// qualifier of interrogation
const (
	QOIUnused  QualifierOfInterrogation = 0
	QOIStation QualifierOfInterrogation = 20
	QOIGroup1  QualifierOfInterrogation = 21
	QOIGroup16 QualifierOfInterrogation = 36
)

func (QualifierOfInterrogation) Kind() ElementKind { return KindInterrogation }
func (QualifierOfInterrogation) Size() int         { return 1 }
func (QualifierOfInterrogation) isElement()        {}

func (sf QualifierOfInterrogation) Encode(buf []byte, offset int) (int, error) {
	return encodeOctet(buf, offset, byte(sf))
}

// DecodeQualifierOfInterrogation decodes a QOI octet.
func DecodeQualifierOfInterrogation(b []byte) (QualifierOfInterrogation, error) {
	if err := checkDecode(b, 1); err != nil {
		return 0, err
	}
	return QualifierOfInterrogation(b[0]), nil
}

// CountCallRequest is the request part of the qualifier of counter interrogation.
type CountCallRequest byte

// counter interrogation requests
const (
	QCCGroup1 CountCallRequest = iota + 1
	QCCGroup2
	QCCGroup3
	QCCGroup4
	QCCTotal
)

// CountCallFreeze is the freeze part of the qualifier of counter interrogation.
type CountCallFreeze byte

// counter interrogation freeze modes
const (
	QCCFrzRead CountCallFreeze = iota << 6
	QCCFrzFreezeNoReset
	QCCFrzFreezeAndReset
	QCCFrzReset
)

// QualifierCountCall is the qualifier of counter interrogation (QCC).
//
//	| FRZ (2 bits) | RQT (6 bits) |
type QualifierCountCall struct {
	Request CountCallRequest
	Freeze  CountCallFreeze
}

// Value encodes the qualifier octet.
func (sf QualifierCountCall) Value() byte {
	return byte(sf.Request&0x3f) | byte(sf.Freeze&0xc0)
}

func (QualifierCountCall) Kind() ElementKind { return KindCountCall }
func (QualifierCountCall) Size() int         { return 1 }
func (QualifierCountCall) isElement()        {}

func (sf QualifierCountCall) Encode(buf []byte, offset int) (int, error) {
	return encodeOctet(buf, offset, sf.Value())
}

// DecodeQualifierCountCall decodes a QCC octet.
func DecodeQualifierCountCall(b []byte) (QualifierCountCall, error) {
	if err := checkDecode(b, 1); err != nil {
		return QualifierCountCall{}, err
	}
	return QualifierCountCall{Request: CountCallRequest(b[0] & 0x3f), Freeze: CountCallFreeze(b[0] & 0xc0)}, nil
}

// QualifierOfResetProcessCmd is the qualifier of reset process command (QRP).
type QualifierOfResetProcessCmd byte

// qualifier of reset process command
const (
	QRPUnused QualifierOfResetProcessCmd = iota
	QRPGeneralRest
	QRPCheckResetTimeTagEvents
)

func (QualifierOfResetProcessCmd) Kind() ElementKind { return KindResetProcess }
func (QualifierOfResetProcessCmd) Size() int         { return 1 }
func (QualifierOfResetProcessCmd) isElement()        {}

func (sf QualifierOfResetProcessCmd) Encode(buf []byte, offset int) (int, error) {
	return encodeOctet(buf, offset, byte(sf))
}

// DecodeQualifierOfResetProcess decodes a QRP octet.
func DecodeQualifierOfResetProcess(b []byte) (QualifierOfResetProcessCmd, error) {
	if err := checkDecode(b, 1); err != nil {
		return 0, err
	}
	return QualifierOfResetProcessCmd(b[0]), nil
}

// CauseOfInitial is the cause of initialization (COI).
type CauseOfInitial struct {
	Cause byte // 0 local power on, 1 local manual reset, 2 remote reset
	// IsLocalChange is set when initialization follows a change of local parameters.
	IsLocalChange bool
}

func (CauseOfInitial) Kind() ElementKind { return KindCauseOfInitial }
func (CauseOfInitial) Size() int         { return 1 }
func (CauseOfInitial) isElement()        {}

func (sf CauseOfInitial) Encode(buf []byte, offset int) (int, error) {
	v := sf.Cause & 0x7f
	if sf.IsLocalChange {
		v |= 0x80
	}
	return encodeOctet(buf, offset, v)
}

// DecodeCauseOfInitial decodes a COI octet.
func DecodeCauseOfInitial(b []byte) (CauseOfInitial, error) {
	if err := checkDecode(b, 1); err != nil {
		return CauseOfInitial{}, err
	}
	return CauseOfInitial{Cause: b[0] & 0x7f, IsLocalChange: b[0]&0x80 == 0x80}, nil
}

// FixedTestPattern is the fixed test bit pattern (FBP) of a test command.
type FixedTestPattern uint16

// TestPattern is the only value a test command carries.
const TestPattern FixedTestPattern = 0x55aa

func (FixedTestPattern) Kind() ElementKind { return KindTestPattern }
func (FixedTestPattern) Size() int         { return 2 }
func (FixedTestPattern) isElement()        {}

func (sf FixedTestPattern) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 2); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint16(buf[offset:], uint16(sf))
	return 2, nil
}

// DecodeFixedTestPattern decodes an FBP from b.
func DecodeFixedTestPattern(b []byte) (FixedTestPattern, error) {
	if err := checkDecode(b, 2); err != nil {
		return 0, err
	}
	return FixedTestPattern(binary.LittleEndian.Uint16(b)), nil
}

func encodeOctet(buf []byte, offset int, v byte) (int, error) {
	if err := checkEncode(buf, offset, 1); err != nil {
		return 0, err
	}
	buf[offset] = v
	return 1, nil
}
