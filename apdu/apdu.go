// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package apdu implements the application protocol control information of
// IEC 60870-5-104: the I, S and U frame formats and their sequence numbers.
package apdu

import (
	"errors"
	"fmt"
	"io"

	"github.com/riclolsen/iec60870/asdu"
)

// APDU form Max size 255
//
//	|              APCI                   |       ASDU         |
//	| start | APDU length | control field |       ASDU         |
//	                 |          APDU field size(253)           |
//
// bytes|    1  |    1   |        4           |                    |
const (
	StartFrame byte = 0x68 // start character

	// APDUSizeMax is the largest value of the length octet.
	APDUSizeMax = 253
	// APCICtlFiledSize is the control field size.
	APCICtlFiledSize = 4
	// APDUFieldSizeMin is the smallest value of the length octet.
	APDUFieldSizeMin = APCICtlFiledSize

	// MaxFrameSize is the largest encoded frame including start and length.
	MaxFrameSize = 2 + APDUSizeMax
	// SeqModulo is the sequence number space.
	SeqModulo = 1 << 15
)

// U-format control octets
const (
	uStartDtActive  byte = 0x07
	uStartDtConfirm byte = 0x0b
	uStopDtActive   byte = 0x13
	uStopDtConfirm  byte = 0x23
	uTestFrActive   byte = 0x43
	uTestFrConfirm  byte = 0x83
)

// Kind is the frame format, with U-frames split by function.
type Kind uint8

// frame kinds
const (
	IFrame Kind = iota
	SFrame
	StartDTActive
	StartDTConfirm
	StopDTActive
	StopDTConfirm
	TestFRActive
	TestFRConfirm
)

var kindNames = [...]string{
	IFrame:         "I",
	SFrame:         "S",
	StartDTActive:  "STARTDT_ACT",
	StartDTConfirm: "STARTDT_CON",
	StopDTActive:   "STOPDT_ACT",
	StopDTConfirm:  "STOPDT_CON",
	TestFRActive:   "TESTFR_ACT",
	TestFRConfirm:  "TESTFR_CON",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsUnnumbered reports whether k is a U-format function.
func (k Kind) IsUnnumbered() bool {
	return k >= StartDTActive && k <= TestFRConfirm
}

var uCodes = map[Kind]byte{
	StartDTActive:  uStartDtActive,
	StartDTConfirm: uStartDtConfirm,
	StopDTActive:   uStopDtActive,
	StopDTConfirm:  uStopDtConfirm,
	TestFRActive:   uTestFrActive,
	TestFRConfirm:  uTestFrConfirm,
}

var uKinds = map[byte]Kind{
	uStartDtActive:  StartDTActive,
	uStartDtConfirm: StartDTConfirm,
	uStopDtActive:   StopDTActive,
	uStopDtConfirm:  StopDTConfirm,
	uTestFrActive:   TestFRActive,
	uTestFrConfirm:  TestFRConfirm,
}

// Frame is one APDU. SendSN is only meaningful for I-frames, RecvSN for
// I and S frames. Sequence numbers are 15 bit.
type Frame struct {
	Kind   Kind
	SendSN uint16
	RecvSN uint16
	// ASDU is the decoded payload of an I-frame.
	ASDU *asdu.ASDU
	// Payload holds the raw ASDU octets of a received I-frame. When
	// encoding an I-frame with a nil ASDU, Payload is sent as is.
	Payload []byte
}

// NewIFrame returns an I-frame carrying a.
func NewIFrame(sendSN, recvSN uint16, a *asdu.ASDU) *Frame {
	return &Frame{Kind: IFrame, SendSN: sendSN, RecvSN: recvSN, ASDU: a}
}

// NewSFrame returns a supervisory frame acknowledging up to recvSN.
func NewSFrame(recvSN uint16) *Frame {
	return &Frame{Kind: SFrame, RecvSN: recvSN}
}

// NewUFrame returns an unnumbered frame of kind k.
func NewUFrame(k Kind) *Frame {
	return &Frame{Kind: k}
}

func (f *Frame) String() string {
	switch f.Kind {
	case IFrame:
		if f.ASDU != nil {
			return fmt.Sprintf("I[sendNO: %d, recvNO: %d] %s", f.SendSN, f.RecvSN, f.ASDU)
		}
		return fmt.Sprintf("I[sendNO: %d, recvNO: %d] % x", f.SendSN, f.RecvSN, f.Payload)
	case SFrame:
		return fmt.Sprintf("S[recvNO: %d]", f.RecvSN)
	default:
		return "U[" + f.Kind.String() + "]"
	}
}

// Encode writes f into buf and returns the octets written. The length octet
// is back filled once the ASDU is in place. Encode allocates nothing.
func Encode(buf []byte, f *Frame) (int, error) {
	if len(buf) < 2+APCICtlFiledSize {
		return 0, ErrBufferTooSmall
	}
	buf[0] = StartFrame
	n := 2 + APCICtlFiledSize
	switch f.Kind {
	case IFrame:
		buf[2] = byte(f.SendSN << 1)
		buf[3] = byte(f.SendSN >> 7)
		buf[4] = byte(f.RecvSN << 1)
		buf[5] = byte(f.RecvSN >> 7)
		switch {
		case f.ASDU != nil:
			w, err := f.ASDU.EncodeTo(buf, n)
			if err != nil {
				if errors.Is(err, asdu.ErrBufferTooSmall) {
					return 0, ErrBufferTooSmall
				}
				return 0, err
			}
			n += w
		case len(f.Payload) > 0:
			if len(buf)-n < len(f.Payload) {
				return 0, ErrBufferTooSmall
			}
			n += copy(buf[n:], f.Payload)
		default:
			return 0, ErrNoPayload
		}
	case SFrame:
		buf[2] = 0x01
		buf[3] = 0x00
		buf[4] = byte(f.RecvSN << 1)
		buf[5] = byte(f.RecvSN >> 7)
	default:
		c, ok := uCodes[f.Kind]
		if !ok {
			return 0, fmt.Errorf("%w: kind %d", ErrUnknownControl, f.Kind)
		}
		buf[2] = c
		buf[3] = 0x00
		buf[4] = 0x00
		buf[5] = 0x00
	}
	if n-2 > APDUSizeMax {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, n-2)
	}
	buf[1] = byte(n - 2)
	return n, nil
}

// Marshal encodes f into a new slice.
func Marshal(f *Frame) ([]byte, error) {
	var buf [MaxFrameSize]byte
	n, err := Encode(buf[:], f)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), buf[:n]...), nil
}

// Decode reads one frame from r. I-frame payloads are decoded with p.
//
// Framing failures wrap ErrFraming. An I-frame whose ASDU cannot be
// decoded is returned together with a *PayloadError. Any other error comes
// from r; a clean io.EOF before the start byte is returned unwrapped.
func Decode(r io.Reader, p *asdu.Params) (*Frame, error) {
	var hdr [2 + APCICtlFiledSize]byte
	if _, err := io.ReadFull(r, hdr[:1]); err != nil {
		return nil, err
	}
	if hdr[0] != StartFrame {
		return nil, fmt.Errorf("%w: %#02x", ErrInvalidStartByte, hdr[0])
	}
	if _, err := io.ReadFull(r, hdr[1:2]); err != nil {
		return nil, truncated(err)
	}
	length := int(hdr[1])
	if length < APDUFieldSizeMin || length > APDUSizeMax {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if _, err := io.ReadFull(r, hdr[2:]); err != nil {
		return nil, truncated(err)
	}

	ctl := hdr[2:]
	f := &Frame{}
	switch {
	case ctl[0]&0x01 == 0:
		f.Kind = IFrame
		f.SendSN = seqNo(ctl[0], ctl[1])
		f.RecvSN = seqNo(ctl[2], ctl[3])
	case ctl[0]&0x03 == 0x01:
		f.Kind = SFrame
		f.RecvSN = seqNo(ctl[2], ctl[3])
	default:
		k, ok := uKinds[ctl[0]]
		if !ok {
			return nil, fmt.Errorf("%w: % x", ErrUnknownControl, ctl)
		}
		f.Kind = k
	}

	if f.Kind != IFrame {
		if length != APCICtlFiledSize {
			return nil, fmt.Errorf("%w: %s frame with length %d", ErrInvalidLength, f.Kind, length)
		}
		return f, nil
	}

	f.Payload = make([]byte, length-APCICtlFiledSize)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return nil, err
	}
	a := asdu.NewEmptyASDU(p)
	if err := a.UnmarshalBinary(f.Payload); err != nil {
		return f, &PayloadError{ASDU: a, Err: err}
	}
	f.ASDU = a
	return f, nil
}

func seqNo(lo, hi byte) uint16 {
	return uint16(lo&0xfe)>>1 + uint16(hi)<<7
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncatedControl, err)
	}
	return err
}
