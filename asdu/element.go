// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import "time"

// ElementKind identifies an information element variant.
type ElementKind uint8

// information element kinds
const (
	KindSinglePoint ElementKind = iota + 1 // SIQ
	KindDoublePoint                        // DIQ
	KindQuality                            // QDS
	KindNormalized                         // NVA
	KindScaled                             // SVA
	KindShortFloat                         // IEEE STD 754
	KindCounter                            // BCR
	KindTime56                             // CP56Time2a
	KindTime16                             // CP16Time2a
	KindSingleCommand                      // SCO
	KindDoubleCommand                      // DCO
	KindSetpointQualifier                  // QOS
	KindInterrogation                      // QOI
	KindCountCall                          // QCC
	KindResetProcess                       // QRP
	KindCauseOfInitial                     // COI
	KindTestPattern                        // FBP
)

var kindNames = [...]string{
	KindSinglePoint: "SIQ", KindDoublePoint: "DIQ", KindQuality: "QDS",
	KindNormalized: "NVA", KindScaled: "SVA", KindShortFloat: "R32",
	KindCounter: "BCR", KindTime56: "CP56Time2a", KindTime16: "CP16Time2a",
	KindSingleCommand: "SCO", KindDoubleCommand: "DCO", KindSetpointQualifier: "QOS",
	KindInterrogation: "QOI", KindCountCall: "QCC", KindResetProcess: "QRP",
	KindCauseOfInitial: "COI", KindTestPattern: "FBP",
}

func (k ElementKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Element is an information element. The set of implementations is closed
// to this package.
type Element interface {
	// Kind returns the element variant.
	Kind() ElementKind
	// Size returns the fixed encoded width in octets.
	Size() int
	// Encode writes the element at buf[offset:] and returns the octets written.
	Encode(buf []byte, offset int) (int, error)

	isElement()
}

type decodeFunc func(b []byte, loc *time.Location) (Element, error)

// decoders holds one decoder per element kind. Each decoder fails with
// ErrTruncated when b is shorter than the element width.
var decoders = map[ElementKind]decodeFunc{
	KindSinglePoint:       func(b []byte, _ *time.Location) (Element, error) { return DecodeSinglePointInfo(b) },
	KindDoublePoint:       func(b []byte, _ *time.Location) (Element, error) { return DecodeDoublePointInfo(b) },
	KindQuality:           func(b []byte, _ *time.Location) (Element, error) { return DecodeQualityDescriptor(b) },
	KindNormalized:        func(b []byte, _ *time.Location) (Element, error) { return DecodeNormalizedValue(b) },
	KindScaled:            func(b []byte, _ *time.Location) (Element, error) { return DecodeScaledValue(b) },
	KindShortFloat:        func(b []byte, _ *time.Location) (Element, error) { return DecodeShortFloat(b) },
	KindCounter:           func(b []byte, _ *time.Location) (Element, error) { return DecodeBinaryCounterReading(b) },
	KindTime56:            func(b []byte, loc *time.Location) (Element, error) { return DecodeTime56(b, loc) },
	KindTime16:            func(b []byte, _ *time.Location) (Element, error) { return DecodeTime16(b) },
	KindSingleCommand:     func(b []byte, _ *time.Location) (Element, error) { return DecodeSingleCommand(b) },
	KindDoubleCommand:     func(b []byte, _ *time.Location) (Element, error) { return DecodeDoubleCommand(b) },
	KindSetpointQualifier: func(b []byte, _ *time.Location) (Element, error) { return DecodeSetpointQualifier(b) },
	KindInterrogation:     func(b []byte, _ *time.Location) (Element, error) { return DecodeQualifierOfInterrogation(b) },
	KindCountCall:         func(b []byte, _ *time.Location) (Element, error) { return DecodeQualifierCountCall(b) },
	KindResetProcess:      func(b []byte, _ *time.Location) (Element, error) { return DecodeQualifierOfResetProcess(b) },
	KindCauseOfInitial:    func(b []byte, _ *time.Location) (Element, error) { return DecodeCauseOfInitial(b) },
	KindTestPattern:       func(b []byte, _ *time.Location) (Element, error) { return DecodeFixedTestPattern(b) },
}

// layouts maps each supported type identification to the elements of one
// information object row.
var layouts = map[TypeID][]ElementKind{
	M_SP_NA_1: {KindSinglePoint},
	M_SP_TB_1: {KindSinglePoint, KindTime56},
	M_DP_NA_1: {KindDoublePoint},
	M_DP_TB_1: {KindDoublePoint, KindTime56},
	M_ME_NA_1: {KindNormalized, KindQuality},
	M_ME_TD_1: {KindNormalized, KindQuality, KindTime56},
	M_ME_ND_1: {KindNormalized},
	M_ME_NB_1: {KindScaled, KindQuality},
	M_ME_TE_1: {KindScaled, KindQuality, KindTime56},
	M_ME_NC_1: {KindShortFloat, KindQuality},
	M_ME_TF_1: {KindShortFloat, KindQuality, KindTime56},
	M_IT_NA_1: {KindCounter},
	M_IT_TB_1: {KindCounter, KindTime56},
	M_EI_NA_1: {KindCauseOfInitial},

	C_SC_NA_1: {KindSingleCommand},
	C_DC_NA_1: {KindDoubleCommand},
	C_SE_NA_1: {KindNormalized, KindSetpointQualifier},
	C_SE_NB_1: {KindScaled, KindSetpointQualifier},
	C_SE_NC_1: {KindShortFloat, KindSetpointQualifier},
	C_SC_TA_1: {KindSingleCommand, KindTime56},
	C_DC_TA_1: {KindDoubleCommand, KindTime56},
	C_SE_TA_1: {KindNormalized, KindSetpointQualifier, KindTime56},
	C_SE_TB_1: {KindScaled, KindSetpointQualifier, KindTime56},
	C_SE_TC_1: {KindShortFloat, KindSetpointQualifier, KindTime56},

	C_IC_NA_1: {KindInterrogation},
	C_CI_NA_1: {KindCountCall},
	C_RD_NA_1: {},
	C_CS_NA_1: {KindTime56},
	C_TS_NA_1: {KindTestPattern},
	C_RP_NA_1: {KindResetProcess},
	C_CD_NA_1: {KindTime16},
}

// Layout returns the element kinds of one information object row of t.
// ok is false when the codec does not support t.
func Layout(t TypeID) (kinds []ElementKind, ok bool) {
	kinds, ok = layouts[t]
	return kinds, ok
}

// Supported reports whether the codec can encode and decode t.
func (sf TypeID) Supported() bool {
	_, ok := layouts[sf]
	return ok
}

func checkEncode(buf []byte, offset, size int) error {
	if offset < 0 || len(buf)-offset < size {
		return ErrBufferTooSmall
	}
	return nil
}

func checkDecode(b []byte, size int) error {
	if len(b) < size {
		return ErrTruncated
	}
	return nil
}
