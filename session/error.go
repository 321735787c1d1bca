// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"errors"
	"fmt"

	"github.com/riclolsen/iec60870/asdu"
)

// error defined
var (
	ErrUseClosedConnection = errors.New("use of closed connection")
	ErrNotActive           = errors.New("data transfer is not active")
	ErrStopping            = errors.New("data transfer stop in progress")
	ErrNotConnected        = errors.New("not connected")
	ErrStationStarted      = errors.New("station already started")
	// ErrTransport wraps the I/O error that ended a connection.
	ErrTransport = errors.New("transport error")
)

// ErrTimeout is the root of timer expiries. All of them end the connection.
var ErrTimeout = errors.New("timeout")

// timeout errors
var (
	ErrTimeoutT1        = fmt.Errorf("%w: no acknowledgement within t1", ErrTimeout)
	ErrTestFrameTimeout = fmt.Errorf("%w: no TESTFR con within t1", ErrTimeout)
	ErrStopTimeout      = fmt.Errorf("%w: no STOPDT con within t1", ErrTimeout)
	ErrHandshakeTimeout = fmt.Errorf("%w: no STARTDT con", ErrTimeout)
)

// sequencing errors, fatal to the connection
var (
	ErrSequenceMismatch = fmt.Errorf("%w: send sequence number mismatch", asdu.ErrProtocol)
	ErrInvalidAck       = fmt.Errorf("%w: acknowledged sequence number outside window", asdu.ErrProtocol)
	ErrUnexpectedFrame  = fmt.Errorf("%w: I-frame outside data transfer", asdu.ErrProtocol)
)
