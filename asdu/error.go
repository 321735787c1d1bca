// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"errors"
	"fmt"
)

// error categories
var (
	// ErrProtocol is the root of payload level protocol violations.
	ErrProtocol = errors.New("asdu: protocol error")
	// ErrElement is the root of information element decoding failures.
	ErrElement = errors.New("asdu: element error")
)

// error defined
var (
	ErrUnsupportedType  = fmt.Errorf("%w: unsupported type identification", ErrProtocol)
	ErrTruncated        = fmt.Errorf("%w: truncated", ErrElement)
	ErrTrailingData     = fmt.Errorf("%w: trailing data after information objects", ErrProtocol)
	ErrNotAnyObjInfo    = fmt.Errorf("%w: no information object", ErrProtocol)
	ErrTooManyObjects   = fmt.Errorf("%w: more than 127 information objects", ErrProtocol)
	ErrLengthOutOfRange = fmt.Errorf("%w: asdu length out of range", ErrProtocol)
	ErrElementMismatch  = fmt.Errorf("%w: elements do not match type layout", ErrProtocol)
	ErrSequenceObjects  = fmt.Errorf("%w: sequence asdu must hold a single object", ErrProtocol)

	ErrParam          = errors.New("asdu: invalid params")
	ErrBufferTooSmall = errors.New("asdu: buffer too small")
	ErrCauseZero      = errors.New("asdu: cause of transmission 0 is not used")
	ErrOriginAddrFit  = errors.New("asdu: originator address not allowed with cause size 1")
	ErrCommonAddrZero = errors.New("asdu: common address 0 is not used")
	ErrCommonAddrFit  = errors.New("asdu: common address exceeds size")
	ErrInfoObjAddrFit = errors.New("asdu: information object address exceeds size")
)
