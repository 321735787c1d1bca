// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"errors"
	"fmt"
)

// ErrFrame is the category of every FT1.2 decoding error. The link drops
// such frames and resynchronizes on the next start character.
var ErrFrame = errors.New("ft1.2 framing error")

// FT1.2 frame errors
var (
	ErrInvalidStartChar   = fmt.Errorf("%w: invalid start character", ErrFrame)
	ErrLengthMismatch     = fmt.Errorf("%w: length fields do not match", ErrFrame)
	ErrChecksumMismatch   = fmt.Errorf("%w: checksum mismatch", ErrFrame)
	ErrFrameTooShort      = fmt.Errorf("%w: frame is too short for headers", ErrFrame)
	ErrFrameLenExceeded   = fmt.Errorf("%w: frame length exceeds maximum", ErrFrame)
	ErrInvalidEndChar     = fmt.Errorf("%w: invalid end character", ErrFrame)
	ErrInvalidLinkAddrLen = errors.New("invalid link address size, must be 0, 1 or 2")
)

// configuration errors
var (
	ErrLinkAddrFit   = errors.New("link address does not fit the link address size")
	ErrNoSerialPort  = errors.New("serial port address not set")
	ErrInvalidSerial = errors.New("invalid serial settings")
)
