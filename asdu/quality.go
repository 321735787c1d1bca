// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import "strings"

// QualityDescriptor is the quality descriptor octet (QDS).
//
//	| IV | NT | SB | BL | RES | RES | RES | OV |
type QualityDescriptor byte

// quality descriptor flags
const (
	QDSGood        QualityDescriptor = 0
	QDSOverflow    QualityDescriptor = 0x01
	QDSBlocked     QualityDescriptor = 0x10
	QDSSubstituted QualityDescriptor = 0x20
	QDSNotTopical  QualityDescriptor = 0x40
	QDSInvalid     QualityDescriptor = 0x80

	qdsMask = QDSOverflow | QDSBlocked | QDSSubstituted | QDSNotTopical | QDSInvalid
	// SIQ and DIQ carry the same flags without overflow.
	qdpMask = QDSBlocked | QDSSubstituted | QDSNotTopical | QDSInvalid
)

// Has reports whether all flags in f are set.
func (sf QualityDescriptor) Has(f QualityDescriptor) bool {
	return sf&f == f
}

func (sf QualityDescriptor) String() string {
	if sf&qdsMask == 0 {
		return "QDS<good>"
	}
	var s []string
	for _, f := range []struct {
		q QualityDescriptor
		n string
	}{{QDSInvalid, "IV"}, {QDSNotTopical, "NT"}, {QDSSubstituted, "SB"}, {QDSBlocked, "BL"}, {QDSOverflow, "OV"}} {
		if sf.Has(f.q) {
			s = append(s, f.n)
		}
	}
	return "QDS<" + strings.Join(s, ",") + ">"
}

func (QualityDescriptor) Kind() ElementKind { return KindQuality }
func (QualityDescriptor) Size() int         { return 1 }
func (QualityDescriptor) isElement()        {}

func (sf QualityDescriptor) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 1); err != nil {
		return 0, err
	}
	buf[offset] = byte(sf & qdsMask)
	return 1, nil
}

// DecodeQualityDescriptor decodes a QDS octet. Reserved bits are dropped.
func DecodeQualityDescriptor(b []byte) (QualityDescriptor, error) {
	if err := checkDecode(b, 1); err != nil {
		return 0, err
	}
	return QualityDescriptor(b[0]) & qdsMask, nil
}

// SinglePointInfo is the single-point information with quality (SIQ).
type SinglePointInfo struct {
	Value bool
	Qds   QualityDescriptor
}

func (SinglePointInfo) Kind() ElementKind { return KindSinglePoint }
func (SinglePointInfo) Size() int         { return 1 }
func (SinglePointInfo) isElement()        {}

func (sf SinglePointInfo) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 1); err != nil {
		return 0, err
	}
	v := byte(sf.Qds & qdpMask)
	if sf.Value {
		v |= 0x01
	}
	buf[offset] = v
	return 1, nil
}

// DecodeSinglePointInfo decodes a SIQ octet.
func DecodeSinglePointInfo(b []byte) (SinglePointInfo, error) {
	if err := checkDecode(b, 1); err != nil {
		return SinglePointInfo{}, err
	}
	return SinglePointInfo{Value: b[0]&0x01 == 0x01, Qds: QualityDescriptor(b[0]) & qdpMask}, nil
}

// DoublePoint is the double-point state.
type DoublePoint byte

// double-point states
const (
	DPIIndeterminateOrIntermediate DoublePoint = iota
	DPIDeterminedOff
	DPIDeterminedOn
	DPIIndeterminate
)

// DoublePointInfo is the double-point information with quality (DIQ).
type DoublePointInfo struct {
	Value DoublePoint
	Qds   QualityDescriptor
}

func (DoublePointInfo) Kind() ElementKind { return KindDoublePoint }
func (DoublePointInfo) Size() int         { return 1 }
func (DoublePointInfo) isElement()        {}

func (sf DoublePointInfo) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 1); err != nil {
		return 0, err
	}
	buf[offset] = byte(sf.Value)&0x03 | byte(sf.Qds&qdpMask)
	return 1, nil
}

// DecodeDoublePointInfo decodes a DIQ octet.
func DecodeDoublePointInfo(b []byte) (DoublePointInfo, error) {
	if err := checkDecode(b, 1); err != nil {
		return DoublePointInfo{}, err
	}
	return DoublePointInfo{Value: DoublePoint(b[0] & 0x03), Qds: QualityDescriptor(b[0]) & qdpMask}, nil
}
