// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package asdu provides the OSI presentation layer of IEC 60870-5-101/104:
// the application service data unit and its information elements.
package asdu

import (
	"fmt"
	"strings"
)

// InfoObj is an information object. When the ASDU is not a sequence each
// object holds exactly one row; a sequence ASDU holds a single object whose
// rows have implicitly incrementing addresses starting at Addr.
type InfoObj struct {
	Addr     InfoObjAddr
	Elements [][]Element
}

// ASDU (Application Service Data Unit) is an application message.
type ASDU struct {
	*Params
	Identifier
	Objects []InfoObj
}

// NewEmptyASDU new empty asdu with special params
func NewEmptyASDU(p *Params) *ASDU {
	return &ASDU{Params: p}
}

// NewASDU new asdu with special params and identifier
func NewASDU(p *Params, identifier Identifier) *ASDU {
	return &ASDU{Params: p, Identifier: identifier}
}

// AddObject appends an information object with a single row of elements
// and keeps the variable structure qualifier in step.
func (sf *ASDU) AddObject(addr InfoObjAddr, elems ...Element) *ASDU {
	sf.Variable.IsSequence = false
	sf.Objects = append(sf.Objects, InfoObj{Addr: addr, Elements: [][]Element{elems}})
	sf.Variable.Number = byte(len(sf.Objects))
	return sf
}

// SetSequence replaces the objects with a sequence starting at addr.
func (sf *ASDU) SetSequence(addr InfoObjAddr, rows ...[]Element) *ASDU {
	sf.Variable.IsSequence = true
	sf.Objects = []InfoObj{{Addr: addr, Elements: rows}}
	sf.Variable.Number = byte(len(rows))
	return sf
}

// Clone deep copies the ASDU header and object list. Elements are values
// and are shared.
func (sf *ASDU) Clone() *ASDU {
	r := &ASDU{Params: sf.Params, Identifier: sf.Identifier}
	if sf.Objects != nil {
		r.Objects = make([]InfoObj, len(sf.Objects))
		for i, o := range sf.Objects {
			rows := make([][]Element, len(o.Elements))
			for j, row := range o.Elements {
				rows[j] = append([]Element(nil), row...)
			}
			r.Objects[i] = InfoObj{Addr: o.Addr, Elements: rows}
		}
	}
	return r
}

// Reply returns a copy with a new cause and common address, as used for
// confirmations and responses.
func (sf *ASDU) Reply(c Cause, addr CommonAddr) *ASDU {
	r := sf.Clone()
	r.Coa.Cause = c
	r.CommonAddr = addr
	return r
}

// Mirror returns a copy carrying cause c, keeping the common address.
func (sf *ASDU) Mirror(c Cause) *ASDU {
	return sf.Reply(c, sf.CommonAddr)
}

// SendReplyMirror is Mirror with the negative flag applied.
func (sf *ASDU) SendReplyMirror(c Cause, negative bool) *ASDU {
	r := sf.Mirror(c)
	r.Coa.IsNegative = negative
	return r
}

// count returns the number of rows carried, which is the VSQ number.
func (sf *ASDU) count() int {
	if sf.Variable.IsSequence {
		if len(sf.Objects) != 1 {
			return -1
		}
		return len(sf.Objects[0].Elements)
	}
	return len(sf.Objects)
}

// Element returns the j-th element of the first row of the first object.
func (sf *ASDU) Element(j int) (InfoObjAddr, Element, bool) {
	if len(sf.Objects) == 0 || len(sf.Objects[0].Elements) == 0 || j >= len(sf.Objects[0].Elements[0]) {
		return 0, nil, false
	}
	return sf.Objects[0].Addr, sf.Objects[0].Elements[0][j], true
}

// EncodedSize returns the number of octets EncodeTo writes.
func (sf *ASDU) EncodedSize() int {
	n := sf.IdentifierSize()
	for _, o := range sf.Objects {
		if sf.Variable.IsSequence {
			n += sf.InfoObjAddrSize
		}
		for _, row := range o.Elements {
			if !sf.Variable.IsSequence {
				n += sf.InfoObjAddrSize
			}
			for _, e := range row {
				n += e.Size()
			}
		}
	}
	return n
}

// EncodeTo writes the ASDU at buf[offset:] and returns the octets written.
// It allocates nothing.
func (sf *ASDU) EncodeTo(buf []byte, offset int) (int, error) {
	if sf.Params == nil {
		return 0, fmt.Errorf("%w: nil", ErrParam)
	}
	if err := sf.validate(); err != nil {
		return 0, err
	}
	size := sf.EncodedSize()
	if size > ASDUSizeMax {
		return 0, ErrLengthOutOfRange
	}
	if offset < 0 || len(buf)-offset < size {
		return 0, ErrBufferTooSmall
	}

	b := buf[offset:]
	b[0] = byte(sf.Type)
	b[1] = VariableStruct{Number: byte(sf.count()), IsSequence: sf.Variable.IsSequence}.Value()
	b[2] = sf.Coa.Value()
	n := 3
	if sf.CauseSize == 2 {
		b[n] = byte(sf.OrigAddr)
		n++
	}
	if sf.CommonAddrSize == 1 {
		if sf.CommonAddr == GlobalCommonAddr {
			b[n] = 255
		} else {
			b[n] = byte(sf.CommonAddr)
		}
		n++
	} else {
		b[n] = byte(sf.CommonAddr)
		b[n+1] = byte(sf.CommonAddr >> 8)
		n += 2
	}

	for _, o := range sf.Objects {
		if sf.Variable.IsSequence {
			n += sf.putInfoObjAddr(b[n:], o.Addr)
		}
		for _, row := range o.Elements {
			if !sf.Variable.IsSequence {
				n += sf.putInfoObjAddr(b[n:], o.Addr)
			}
			for _, e := range row {
				w, err := e.Encode(b, n)
				if err != nil {
					return 0, err
				}
				n += w
			}
		}
	}
	return n, nil
}

func (sf *ASDU) validate() error {
	if sf.Coa.Cause == Unused {
		return ErrCauseZero
	}
	if sf.CauseSize == 1 && sf.OrigAddr != 0 {
		return ErrOriginAddrFit
	}
	if err := sf.ValidCommonAddr(sf.CommonAddr); err != nil {
		return err
	}
	layout, ok := layouts[sf.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, sf.Type)
	}
	cnt := sf.count()
	switch {
	case cnt < 0:
		return ErrSequenceObjects
	case cnt == 0:
		return ErrNotAnyObjInfo
	case cnt > 127:
		return ErrTooManyObjects
	}
	for _, o := range sf.Objects {
		last := o.Addr
		if sf.Variable.IsSequence {
			last += InfoObjAddr(len(o.Elements) - 1)
		} else if len(o.Elements) != 1 {
			return fmt.Errorf("%w: object %d has %d rows", ErrElementMismatch, o.Addr, len(o.Elements))
		}
		if err := sf.ValidInfoObjAddr(last); err != nil {
			return err
		}
		for _, row := range o.Elements {
			if len(row) != len(layout) {
				return fmt.Errorf("%w: %s wants %d elements, got %d", ErrElementMismatch, sf.Type, len(layout), len(row))
			}
			for i, e := range row {
				if e == nil || e.Kind() != layout[i] {
					return fmt.Errorf("%w: %s element %d must be %s", ErrElementMismatch, sf.Type, i, layout[i])
				}
			}
		}
	}
	return nil
}

func (sf *ASDU) putInfoObjAddr(b []byte, addr InfoObjAddr) int {
	switch sf.InfoObjAddrSize {
	case 1:
		b[0] = byte(addr)
	case 2:
		b[0] = byte(addr)
		b[1] = byte(addr >> 8)
	default:
		b[0] = byte(addr)
		b[1] = byte(addr >> 8)
		b[2] = byte(addr >> 16)
	}
	return sf.InfoObjAddrSize
}

// MarshalBinary honors the encoding.BinaryMarshaler interface.
func (sf *ASDU) MarshalBinary() ([]byte, error) {
	if sf.Params == nil {
		return nil, fmt.Errorf("%w: nil", ErrParam)
	}
	buf := make([]byte, sf.EncodedSize())
	n, err := sf.EncodeTo(buf, 0)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Decode decodes data with params p.
func Decode(data []byte, p *Params) (*ASDU, error) {
	a := NewEmptyASDU(p)
	if err := a.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return a, nil
}

// UnmarshalBinary honors the encoding.BinaryUnmarshaler interface.
// Params must be set. The identifier is populated even when the objects
// fail to decode so the caller can report what was rejected.
func (sf *ASDU) UnmarshalBinary(data []byte) error {
	if sf.Params == nil {
		return fmt.Errorf("%w: nil", ErrParam)
	}
	if len(data) < sf.IdentifierSize() {
		return fmt.Errorf("%w: identifier needs %d octets, got %d", ErrTruncated, sf.IdentifierSize(), len(data))
	}

	sf.Type = TypeID(data[0])
	sf.Variable = ParseVariableStruct(data[1])
	sf.Coa = ParseCauseOfTransmission(data[2])
	n := 3
	sf.OrigAddr = 0
	if sf.CauseSize == 2 {
		sf.OrigAddr = OriginAddr(data[n])
		n++
	}
	if sf.CommonAddrSize == 1 {
		sf.CommonAddr = CommonAddr(data[n])
		if sf.CommonAddr == 255 {
			sf.CommonAddr = GlobalCommonAddr
		}
		n++
	} else {
		sf.CommonAddr = CommonAddr(data[n]) | CommonAddr(data[n+1])<<8
		n += 2
	}
	sf.Objects = nil

	layout, ok := layouts[sf.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, sf.Type)
	}
	if sf.Variable.Number == 0 {
		return ErrNotAnyObjInfo
	}

	rows := int(sf.Variable.Number)
	var seq InfoObj
	for i := 0; i < rows; i++ {
		var addr InfoObjAddr
		if !sf.Variable.IsSequence || i == 0 {
			if len(data)-n < sf.InfoObjAddrSize {
				return fmt.Errorf("%w: information object address", ErrTruncated)
			}
			addr = sf.getInfoObjAddr(data[n:])
			n += sf.InfoObjAddrSize
		}
		row := make([]Element, 0, len(layout))
		for _, k := range layout {
			e, err := decoders[k](data[n:], sf.InfoObjTimeZone)
			if err != nil {
				return fmt.Errorf("%s object %d %s: %w", sf.Type, i, k, err)
			}
			row = append(row, e)
			n += e.Size()
		}
		if sf.Variable.IsSequence {
			if i == 0 {
				seq.Addr = addr
			}
			seq.Elements = append(seq.Elements, row)
		} else {
			sf.Objects = append(sf.Objects, InfoObj{Addr: addr, Elements: [][]Element{row}})
		}
	}
	if sf.Variable.IsSequence {
		sf.Objects = []InfoObj{seq}
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d octets", ErrTrailingData, len(data)-n)
	}
	return nil
}

func (sf *ASDU) getInfoObjAddr(b []byte) InfoObjAddr {
	switch sf.InfoObjAddrSize {
	case 1:
		return InfoObjAddr(b[0])
	case 2:
		return InfoObjAddr(b[0]) | InfoObjAddr(b[1])<<8
	default:
		return InfoObjAddr(b[0]) | InfoObjAddr(b[1])<<8 | InfoObjAddr(b[2])<<16
	}
}

// String returns a human readable form of the ASDU.
func (sf *ASDU) String() string {
	var b strings.Builder
	b.WriteString(sf.Identifier.String())
	for _, o := range sf.Objects {
		for j, row := range o.Elements {
			addr := o.Addr
			if sf.Variable.IsSequence {
				addr += InfoObjAddr(j)
			}
			fmt.Fprintf(&b, " IOA<%d>%v", addr, row)
		}
	}
	return b.String()
}
