// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
)

// DispatchServer routes a received command to the typed method of h.
// Handlers implementing AllHandler see every ASDU first.
func DispatchServer(s *Session, h ServerHandlerInterface, a *asdu.ASDU) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in handler: %v", r)
			s.Critical("%v", err)
		}
	}()
	callAll(s, h, a)

	_, el, ok := a.Element(0)
	switch a.Type {
	case asdu.C_IC_NA_1:
		if qoi, isQOI := el.(asdu.QualifierOfInterrogation); ok && isQOI {
			return h.InterrogationHandler(s, a, qoi)
		}
	case asdu.C_CI_NA_1:
		if qcc, isQCC := el.(asdu.QualifierCountCall); ok && isQCC {
			return h.CounterInterrogationHandler(s, a, qcc)
		}
	case asdu.C_RD_NA_1:
		if len(a.Objects) > 0 {
			return h.ReadHandler(s, a, a.Objects[0].Addr)
		}
	case asdu.C_CS_NA_1:
		if t, isTime := el.(asdu.Time56); ok && isTime {
			return h.ClockSyncHandler(s, a, t.Time)
		}
	case asdu.C_RP_NA_1:
		if qrp, isQRP := el.(asdu.QualifierOfResetProcessCmd); ok && isQRP {
			return h.ResetProcessHandler(s, a, qrp)
		}
	case asdu.C_CD_NA_1:
		if d, isDelay := el.(asdu.Time16); ok && isDelay {
			return h.DelayAcquisitionHandler(s, a, uint16(d))
		}
	default:
		return h.ASDUHandler(s, a)
	}
	return fmt.Errorf("%w: %s without information object", asdu.ErrNotAnyObjInfo, a.Type)
}

// DispatchClient routes a received ASDU to the method of h matching its
// type and cause of transmission.
func DispatchClient(s *Session, h ClientHandlerInterface, a *asdu.ASDU) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in handler: %v", r)
			s.Critical("%v", err)
		}
	}()
	callAll(s, h, a)

	cause := a.Coa.Cause
	switch {
	case cause == asdu.InterrogatedByStation ||
		(cause >= asdu.InterrogatedByGroup1 && cause <= asdu.InterrogatedByGroup16):
		if a.Type.IsMonitor() {
			return h.InterrogationHandler(s, a)
		}
		s.Warn("unexpected %s for interrogation cause %s", a.Type, cause)
	case cause == asdu.RequestByGeneralCounter ||
		(cause >= asdu.RequestByGroup1Counter && cause <= asdu.RequestByGroup4Counter):
		if a.Type == asdu.M_IT_NA_1 || a.Type == asdu.M_IT_TA_1 || a.Type == asdu.M_IT_TB_1 {
			return h.CounterInterrogationHandler(s, a)
		}
		s.Warn("unexpected %s for counter interrogation cause %s", a.Type, cause)
	case cause == asdu.ActivationCon || cause == asdu.ActivationTerm:
		switch a.Type {
		case asdu.C_IC_NA_1:
			return h.InterrogationHandler(s, a)
		case asdu.C_CI_NA_1:
			return h.CounterInterrogationHandler(s, a)
		case asdu.C_CS_NA_1:
			return h.ClockSyncHandler(s, a)
		case asdu.C_TS_NA_1, asdu.C_TS_TA_1:
			return h.TestCommandHandler(s, a)
		case asdu.C_RP_NA_1:
			return h.ResetProcessHandler(s, a)
		case asdu.C_CD_NA_1:
			return h.DelayAcquisitionHandler(s, a)
		}
	case cause == asdu.Request && a.Type.IsMonitor():
		return h.ReadHandler(s, a)
	case cause == asdu.UnknownTypeID || cause == asdu.UnknownCOT ||
		cause == asdu.UnknownCA || cause == asdu.UnknownIOA:
		s.Warn("negative response %s", a.Identifier)
	case a.Type == asdu.M_EI_NA_1 && cause == asdu.Initialized:
		s.Debug("end of initialization from %d", a.CommonAddr)
	}
	return h.ASDUHandler(s, a)
}

func callAll(s *Session, h any, a *asdu.ASDU) {
	all, ok := h.(AllHandler)
	if !ok {
		return
	}
	if err := all.ASDUHandlerAll(s, a); err != nil {
		s.Warn("ASDUHandlerAll: %v", err)
	}
}

// ServerHandler adapts a ServerHandlerInterface to Handler. Dispatch
// errors are logged through Logger.
type ServerHandler struct {
	ServerHandlerInterface
	Logger  *clog.Clog
	OnReady func(s *Session)
	OnLost  func(s *Session, err error)
}

func (h ServerHandler) ConnectionReady(s *Session) {
	if h.OnReady != nil {
		h.OnReady(s)
	}
}

func (h ServerHandler) ASDUReceived(s *Session, a *asdu.ASDU) {
	if err := DispatchServer(s, h.ServerHandlerInterface, a); err != nil {
		logger(h.Logger, s).Warn("handle %s: %v", a.Identifier, err)
	}
}

func (h ServerHandler) ConnectionLost(s *Session, err error) {
	if h.OnLost != nil {
		h.OnLost(s, err)
	}
}

// ClientHandler adapts a ClientHandlerInterface to Handler.
type ClientHandler struct {
	ClientHandlerInterface
	Logger  *clog.Clog
	OnReady func(s *Session)
	OnLost  func(s *Session, err error)
}

func (h ClientHandler) ConnectionReady(s *Session) {
	if h.OnReady != nil {
		h.OnReady(s)
	}
}

func (h ClientHandler) ASDUReceived(s *Session, a *asdu.ASDU) {
	if err := DispatchClient(s, h.ClientHandlerInterface, a); err != nil {
		logger(h.Logger, s).Warn("handle %s: %v", a.Identifier, err)
	}
}

func (h ClientHandler) ConnectionLost(s *Session, err error) {
	if h.OnLost != nil {
		h.OnLost(s, err)
	}
}

func logger(l *clog.Clog, s *Session) *clog.Clog {
	if l != nil {
		return l
	}
	return &s.Clog
}
