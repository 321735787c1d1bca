// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"bufio"
	"fmt"
	"io"
)

// FT1.2 frame format characters
const (
	// StartFixed starts a fixed length frame
	StartFixed byte = 0x10
	// StartVariable starts a variable length frame
	StartVariable byte = 0x68
	// EndChar ends fixed and variable frames
	EndChar byte = 0x16
	// SingleCharACK is the single character positive acknowledgement
	SingleCharACK byte = 0xE5

	// MaxFrameLen is the largest value of the length field
	MaxFrameLen = 255
)

// Control field bits
const (
	// DIR: physical transmission direction, balanced transmission only
	CtrlDIR byte = 0x80
	// PRM: primary message
	CtrlPRM byte = 0x40
	// FCB: frame count bit
	CtrlFCB byte = 0x20
	// FCV: frame count bit valid
	CtrlFCV byte = 0x10
	// ACD: access demand, secondary messages
	CtrlACD byte = 0x20
	// DFC: data flow control, secondary messages
	CtrlDFC byte = 0x10
	// CtrlFuncMask masks the function code
	CtrlFuncMask byte = 0x0F
)

// Primary function codes (PRM=1)
const (
	PrimFcResetLink      byte = 0  // reset of remote link
	PrimFcResetUser      byte = 1  // reset of user process
	PrimFcTestLink       byte = 2  // test function for link, balanced
	PrimFcUserDataConf   byte = 3  // user data, confirmed
	PrimFcUserDataNoConf byte = 4  // user data, no reply expected
	PrimFcReqAccess      byte = 8  // request for access demand
	PrimFcReqStatus      byte = 9  // request status of link
	PrimFcReqData1       byte = 10 // request user data class 1
	PrimFcReqData2       byte = 11 // request user data class 2
)

// Secondary function codes (PRM=0)
const (
	SecFcConfACK    byte = 0  // positive acknowledgement
	SecFcConfNACK   byte = 1  // message not accepted, link busy
	SecFcRespData   byte = 8  // user data
	SecFcRespNoData byte = 9  // requested data not available
	SecFcRespStatus byte = 11 // status of link or access demand
	SecFcRespLinkNF byte = 14 // link service not functioning
	SecFcRespLinkNI byte = 15 // link service not implemented
)

// ControlField is the decoded control octet.
type ControlField struct {
	DIR bool // direction, balanced transmission
	PRM bool // primary message
	FCB bool // frame count bit, primary only
	FCV bool // frame count bit valid, primary only
	ACD bool // access demand, secondary only
	DFC bool // data flow control, secondary only
	Fun byte // function code
}

// ParseControlField decodes the control octet.
func ParseControlField(b byte) ControlField {
	cf := ControlField{
		DIR: b&CtrlDIR != 0,
		PRM: b&CtrlPRM != 0,
		Fun: b & CtrlFuncMask,
	}
	if cf.PRM {
		cf.FCB = b&CtrlFCB != 0
		cf.FCV = b&CtrlFCV != 0
	} else {
		cf.ACD = b&CtrlACD != 0
		cf.DFC = b&CtrlDFC != 0
	}
	return cf
}

// Value encodes the control octet.
func (cf ControlField) Value() byte {
	b := cf.Fun & CtrlFuncMask
	if cf.DIR {
		b |= CtrlDIR
	}
	if cf.PRM {
		b |= CtrlPRM
		if cf.FCB {
			b |= CtrlFCB
		}
		if cf.FCV {
			b |= CtrlFCV
		}
		return b
	}
	if cf.ACD {
		b |= CtrlACD
	}
	if cf.DFC {
		b |= CtrlDFC
	}
	return b
}

// String returns a compact description of the control octet.
func (cf ControlField) String() string {
	prm := "SEC"
	if cf.PRM {
		prm = "PRM"
	}
	s := fmt.Sprintf("CTRL<%s FC=%d", prm, cf.Fun)
	if cf.DIR {
		s += " DIR"
	}
	if cf.FCV {
		if cf.FCB {
			s += " FCB=1"
		} else {
			s += " FCB=0"
		}
	}
	if cf.ACD {
		s += " ACD"
	}
	if cf.DFC {
		s += " DFC"
	}
	return s + ">"
}

// FrameKind is the FT1.2 frame format.
type FrameKind byte

// frame formats
const (
	FixedFrame FrameKind = iota
	VariableFrame
	SingleChar
)

// Frame is one FT1.2 frame. Data is only carried by variable frames.
type Frame struct {
	Kind    FrameKind
	Control ControlField
	Addr    uint16
	Data    []byte
}

// NewFixedFrame returns a fixed length frame.
func NewFixedFrame(cf ControlField, addr uint16) *Frame {
	return &Frame{Kind: FixedFrame, Control: cf, Addr: addr}
}

// NewDataFrame returns a variable length frame carrying data.
func NewDataFrame(cf ControlField, addr uint16, data []byte) *Frame {
	return &Frame{Kind: VariableFrame, Control: cf, Addr: addr, Data: data}
}

func (f *Frame) String() string {
	switch f.Kind {
	case SingleChar:
		return "FT1.2<E5>"
	case FixedFrame:
		return fmt.Sprintf("FT1.2<fixed %s addr=%d>", f.Control, f.Addr)
	default:
		return fmt.Sprintf("FT1.2<variable %s addr=%d len=%d>", f.Control, f.Addr, len(f.Data))
	}
}

// checksum is the arithmetic sum modulo 256 of the user data octets.
func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// MaxDataLen returns the largest Data a variable frame can carry.
func MaxDataLen(addrSize byte) int {
	return MaxFrameLen - 1 - int(addrSize)
}

// AppendBinary appends the encoded frame to b. The link address is
// little endian in addrSize octets.
func (f *Frame) AppendBinary(b []byte, addrSize byte) ([]byte, error) {
	if addrSize > 2 {
		return b, ErrInvalidLinkAddrLen
	}
	if addrSize == 1 && f.Addr > 0xff {
		return b, fmt.Errorf("%w: %d", ErrLinkAddrFit, f.Addr)
	}
	switch f.Kind {
	case SingleChar:
		return append(b, SingleCharACK), nil
	case FixedFrame:
		b = append(b, StartFixed)
		start := len(b)
		b = append(b, f.Control.Value())
		b = appendAddr(b, f.Addr, addrSize)
		return append(b, checksum(b[start:]), EndChar), nil
	case VariableFrame:
		if len(f.Data) > MaxDataLen(addrSize) {
			return b, fmt.Errorf("%w: %d data octets", ErrFrameLenExceeded, len(f.Data))
		}
		l := byte(1 + int(addrSize) + len(f.Data))
		b = append(b, StartVariable, l, l, StartVariable)
		start := len(b)
		b = append(b, f.Control.Value())
		b = appendAddr(b, f.Addr, addrSize)
		b = append(b, f.Data...)
		return append(b, checksum(b[start:]), EndChar), nil
	default:
		return b, fmt.Errorf("unknown frame kind %d", f.Kind)
	}
}

// MarshalBinary encodes the frame.
func (f *Frame) MarshalBinary(addrSize byte) ([]byte, error) {
	return f.AppendBinary(make([]byte, 0, 6+int(addrSize)+len(f.Data)), addrSize)
}

func appendAddr(b []byte, addr uint16, size byte) []byte {
	switch size {
	case 1:
		return append(b, byte(addr))
	case 2:
		return append(b, byte(addr), byte(addr>>8))
	}
	return b
}

func parseAddr(b []byte) uint16 {
	switch len(b) {
	case 1:
		return uint16(b[0])
	case 2:
		return uint16(b[0]) | uint16(b[1])<<8
	}
	return 0
}

// ReadFrame reads one frame from r. A frame error consumes the octets read
// so far, so the caller can keep reading to resynchronize.
func ReadFrame(r *bufio.Reader, addrSize byte) (*Frame, error) {
	if addrSize > 2 {
		return nil, ErrInvalidLinkAddrLen
	}
	start, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch start {
	case SingleCharACK:
		return &Frame{Kind: SingleChar}, nil

	case StartFixed:
		body := make([]byte, 1+int(addrSize)+2)
		if _, err = io.ReadFull(r, body); err != nil {
			return nil, err
		}
		if err = checkTrailer(body); err != nil {
			return nil, err
		}
		return &Frame{
			Kind:    FixedFrame,
			Control: ParseControlField(body[0]),
			Addr:    parseAddr(body[1 : 1+addrSize]),
		}, nil

	case StartVariable:
		var head [3]byte
		if _, err = io.ReadFull(r, head[:]); err != nil {
			return nil, err
		}
		if head[0] != head[1] || head[2] != StartVariable {
			return nil, fmt.Errorf("%w: L=%d L=%d start=0x%02X", ErrLengthMismatch, head[0], head[1], head[2])
		}
		l := int(head[0])
		if l < 1+int(addrSize) {
			return nil, fmt.Errorf("%w: L=%d", ErrFrameTooShort, l)
		}
		body := make([]byte, l+2)
		if _, err = io.ReadFull(r, body); err != nil {
			return nil, err
		}
		if err = checkTrailer(body); err != nil {
			return nil, err
		}
		return &Frame{
			Kind:    VariableFrame,
			Control: ParseControlField(body[0]),
			Addr:    parseAddr(body[1 : 1+addrSize]),
			Data:    body[1+addrSize : l],
		}, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidStartChar, start)
	}
}

// checkTrailer verifies the checksum and end character closing body.
func checkTrailer(body []byte) error {
	n := len(body)
	if body[n-1] != EndChar {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidEndChar, body[n-1])
	}
	if cs := checksum(body[:n-2]); cs != body[n-2] {
		return fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksumMismatch, cs, body[n-2])
	}
	return nil
}
