// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"fmt"
	"math/bits"
	"time"

	"gopkg.in/validator.v2"
)

// ASDUSizeMax is the largest ASDU an APDU can carry (253 - 4 control octets).
const ASDUSizeMax = 249

// ASDU format
//
//	     | data unit identification | information object <1..n> |
//
//	     | <------------  data unit identification ------------>|
//	     | typeID | variable struct | cause  |  common address  |
//	bytes|    1   |      1          | [1,2]  |      [1,2]       |
//	     | <------------  information object ------------------>|
//	     | object address | element set  |  object time scale   |
//	bytes|     [1,2,3]    |              |                      |

// Params holds the field widths of an ASDU. Both stations must agree on
// them out of band; they stay fixed for the lifetime of a connection.
type Params struct {
	// CauseSize is the cause of transmission width. Value 2 activates the
	// originator address.
	CauseSize int `validate:"min=1,max=2"`
	// OrigAddress is the originator address used when CauseSize is 2.
	OrigAddress OriginAddr
	// CommonAddrSize is the station address width.
	CommonAddrSize int `validate:"min=1,max=2"`
	// InfoObjAddrSize is the information object address width.
	InfoObjAddrSize int `validate:"min=1,max=3"`
	// InfoObjTimeZone controls the time tag interpretation.
	InfoObjTimeZone *time.Location
}

var (
	// ParamsNarrow is the smallest configuration.
	ParamsNarrow = &Params{CauseSize: 1, CommonAddrSize: 1, InfoObjAddrSize: 1, InfoObjTimeZone: time.UTC}
	// ParamsWide is the largest configuration.
	ParamsWide = &Params{CauseSize: 2, CommonAddrSize: 2, InfoObjAddrSize: 3, InfoObjTimeZone: time.UTC}
	// ParamsStandard101 is the usual companion standard 101 profile.
	ParamsStandard101 = &Params{CauseSize: 1, CommonAddrSize: 1, InfoObjAddrSize: 2, InfoObjTimeZone: time.UTC}
	// ParamsStandard104 is the fixed companion standard 104 profile.
	ParamsStandard104 = &Params{CauseSize: 2, CommonAddrSize: 2, InfoObjAddrSize: 3, InfoObjTimeZone: time.UTC}
)

// Valid returns the validation result of params.
func (sf *Params) Valid() error {
	if sf == nil {
		return fmt.Errorf("%w: nil", ErrParam)
	}
	if err := validator.Validate(sf); err != nil {
		return fmt.Errorf("%w: %v", ErrParam, err)
	}
	if sf.InfoObjTimeZone == nil {
		return fmt.Errorf("%w: nil time zone", ErrParam)
	}
	if sf.CauseSize == 1 && sf.OrigAddress != 0 {
		return ErrOriginAddrFit
	}
	return nil
}

// ValidCommonAddr returns the validation result of a station common address.
func (sf *Params) ValidCommonAddr(addr CommonAddr) error {
	if addr == InvalidCommonAddr {
		return ErrCommonAddrZero
	}
	if addr == GlobalCommonAddr {
		return nil
	}
	if bits.Len(uint(addr)) > sf.CommonAddrSize*8 {
		return ErrCommonAddrFit
	}
	return nil
}

// ValidInfoObjAddr reports whether addr fits the configured width.
func (sf *Params) ValidInfoObjAddr(addr InfoObjAddr) error {
	if bits.Len(uint(addr)) > sf.InfoObjAddrSize*8 {
		return ErrInfoObjAddrFit
	}
	return nil
}

// IdentifierSize return the application service data unit identifies size
func (sf *Params) IdentifierSize() int {
	return 2 + sf.CauseSize + sf.CommonAddrSize
}
