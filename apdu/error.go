// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package apdu

import (
	"errors"
	"fmt"

	"github.com/riclolsen/iec60870/asdu"
)

// ErrFraming is the root of all errors that leave the byte stream out of
// step. They are fatal to the connection.
var ErrFraming = errors.New("apdu: framing error")

// error defined
var (
	ErrInvalidStartByte = fmt.Errorf("%w: invalid start byte", ErrFraming)
	ErrInvalidLength    = fmt.Errorf("%w: length out of range", ErrFraming)
	ErrTruncatedControl = fmt.Errorf("%w: truncated control field", ErrFraming)
	ErrUnknownControl   = fmt.Errorf("%w: unknown control field", ErrFraming)

	ErrBufferTooSmall = errors.New("apdu: buffer too small")
	ErrNoPayload      = errors.New("apdu: I-frame without ASDU")
)

// PayloadError reports an I-frame whose control field was valid but whose
// ASDU could not be decoded. The frame is still returned by Decode so its
// sequence numbers can be accounted for.
type PayloadError struct {
	// ASDU holds whatever part of the identifier could be decoded.
	ASDU *asdu.ASDU
	Err  error
}

func (e *PayloadError) Error() string {
	return "apdu: rejected asdu: " + e.Err.Error()
}

func (e *PayloadError) Unwrap() error { return e.Err }
