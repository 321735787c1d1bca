// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"time"

	"github.com/riclolsen/iec60870/asdu"
)

// Handler receives the events of a session. ASDUReceived is called from the
// receive goroutine in arrival order. ConnectionLost is called exactly once.
type Handler interface {
	ConnectionReady(s *Session)
	ASDUReceived(s *Session, a *asdu.ASDU)
	ConnectionLost(s *Session, err error)
}

// PayloadErrorHandler is implemented by handlers that want to see ASDUs the
// codec rejected. a carries the identifier when it could be decoded.
type PayloadErrorHandler interface {
	PayloadError(s *Session, a *asdu.ASDU, err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	OnReady        func(s *Session)
	OnASDU         func(s *Session, a *asdu.ASDU)
	OnLost         func(s *Session, err error)
	OnPayloadError func(s *Session, a *asdu.ASDU, err error)
}

var (
	_ Handler             = HandlerFuncs{}
	_ PayloadErrorHandler = HandlerFuncs{}
)

func (h HandlerFuncs) ConnectionReady(s *Session) {
	if h.OnReady != nil {
		h.OnReady(s)
	}
}

func (h HandlerFuncs) ASDUReceived(s *Session, a *asdu.ASDU) {
	if h.OnASDU != nil {
		h.OnASDU(s, a)
	}
}

func (h HandlerFuncs) ConnectionLost(s *Session, err error) {
	if h.OnLost != nil {
		h.OnLost(s, err)
	}
}

func (h HandlerFuncs) PayloadError(s *Session, a *asdu.ASDU, err error) {
	if h.OnPayloadError != nil {
		h.OnPayloadError(s, a, err)
	}
}

// ServerHandlerInterface is the interface of server (controlled station) handler
type ServerHandlerInterface interface {
	InterrogationHandler(*Session, *asdu.ASDU, asdu.QualifierOfInterrogation) error
	CounterInterrogationHandler(*Session, *asdu.ASDU, asdu.QualifierCountCall) error
	ReadHandler(*Session, *asdu.ASDU, asdu.InfoObjAddr) error
	ClockSyncHandler(*Session, *asdu.ASDU, time.Time) error
	ResetProcessHandler(*Session, *asdu.ASDU, asdu.QualifierOfResetProcessCmd) error
	DelayAcquisitionHandler(*Session, *asdu.ASDU, uint16) error
	ASDUHandler(*Session, *asdu.ASDU) error
}

// ClientHandlerInterface is the interface of client (controlling station) handler
type ClientHandlerInterface interface {
	InterrogationHandler(*Session, *asdu.ASDU) error
	CounterInterrogationHandler(*Session, *asdu.ASDU) error
	ReadHandler(*Session, *asdu.ASDU) error
	TestCommandHandler(*Session, *asdu.ASDU) error
	ClockSyncHandler(*Session, *asdu.ASDU) error
	ResetProcessHandler(*Session, *asdu.ASDU) error
	DelayAcquisitionHandler(*Session, *asdu.ASDU) error
	ASDUHandler(*Session, *asdu.ASDU) error
}

// AllHandler is implemented by handlers that want every ASDU before it is
// dispatched by type.
type AllHandler interface {
	ASDUHandlerAll(*Session, *asdu.ASDU) error
}
