// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/session"
)

// Point addresses of the demo process image.
const (
	breakerIOA asdu.InfoObjAddr = 100
	voltageIOA asdu.InfoObjAddr = 1000
	currentIOA asdu.InfoObjAddr = 1001
	energyIOA  asdu.InfoObjAddr = 2000
)

// sender is a station or server the outstation reports through.
type sender interface {
	Send(a *asdu.ASDU) error
}

// outstation is a small controlled station: one breaker that follows single
// commands, two measurands and an energy counter.
type outstation struct {
	log    logrus.FieldLogger
	params *asdu.Params
	ca     asdu.CommonAddr

	mu       sync.Mutex
	breaker  bool
	measures map[asdu.InfoObjAddr]float32
	energy   int32
	seq      byte
}

var (
	_ session.ServerHandlerInterface = (*outstation)(nil)
	_ session.AllHandler             = (*outstation)(nil)
)

func newOutstation(p *asdu.Params, ca asdu.CommonAddr, log logrus.FieldLogger) *outstation {
	measures := map[asdu.InfoObjAddr]float32{
		voltageIOA: 230,
		currentIOA: 12.5,
	}
	return &outstation{log: log, params: p, ca: ca, measures: measures}
}

func (o *outstation) newASDU(typeID asdu.TypeID, cause asdu.Cause) *asdu.ASDU {
	return asdu.NewASDU(o.params, asdu.Identifier{
		Type:       typeID,
		Coa:        asdu.CauseOfTransmission{Cause: cause},
		OrigAddr:   o.params.OrigAddress,
		CommonAddr: o.ca,
	})
}

func (o *outstation) singles(cause asdu.Cause) *asdu.ASDU {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.newASDU(asdu.M_SP_NA_1, cause).
		AddObject(breakerIOA, asdu.SinglePointInfo{Value: o.breaker})
}

func (o *outstation) measurands(cause asdu.Cause, ioas ...asdu.InfoObjAddr) *asdu.ASDU {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(ioas) == 0 {
		for ioa := range o.measures {
			ioas = append(ioas, ioa)
		}
		sort.Slice(ioas, func(i, j int) bool { return ioas[i] < ioas[j] })
	}
	a := o.newASDU(asdu.M_ME_NC_1, cause)
	for _, ioa := range ioas {
		a.AddObject(ioa, asdu.ShortFloat(o.measures[ioa]), asdu.QDSGood)
	}
	return a
}

func (o *outstation) counters(cause asdu.Cause) *asdu.ASDU {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq = (o.seq + 1) & 0x1f
	return o.newASDU(asdu.M_IT_NA_1, cause).
		AddObject(energyIOA, asdu.BinaryCounterReading{Value: o.energy, SeqNumber: o.seq})
}

// addressed answers UnknownCA for ASDUs meant for another station.
func (o *outstation) addressed(s *session.Session, a *asdu.ASDU) (bool, error) {
	if a.CommonAddr == o.ca || a.CommonAddr == asdu.GlobalCommonAddr {
		return true, nil
	}
	return false, s.Send(a.SendReplyMirror(asdu.UnknownCA, true))
}

// sendAll stops at the first failed send.
func sendAll(s *session.Session, as ...*asdu.ASDU) error {
	for _, a := range as {
		if err := s.Send(a); err != nil {
			return err
		}
	}
	return nil
}

func (o *outstation) InterrogationHandler(s *session.Session, a *asdu.ASDU, qoi asdu.QualifierOfInterrogation) error {
	if ok, err := o.addressed(s, a); !ok {
		return err
	}
	if qoi != asdu.QOIStation {
		return sendAll(s, a.Mirror(asdu.ActivationCon), a.Mirror(asdu.ActivationTerm))
	}
	return sendAll(s,
		a.Mirror(asdu.ActivationCon),
		o.singles(asdu.InterrogatedByStation),
		o.measurands(asdu.InterrogatedByStation),
		a.Mirror(asdu.ActivationTerm))
}

func (o *outstation) CounterInterrogationHandler(s *session.Session, a *asdu.ASDU, qcc asdu.QualifierCountCall) error {
	if ok, err := o.addressed(s, a); !ok {
		return err
	}
	if qcc.Request != asdu.QCCTotal {
		return sendAll(s, a.Mirror(asdu.ActivationCon), a.Mirror(asdu.ActivationTerm))
	}
	return sendAll(s,
		a.Mirror(asdu.ActivationCon),
		o.counters(asdu.RequestByGeneralCounter),
		a.Mirror(asdu.ActivationTerm))
}

func (o *outstation) ReadHandler(s *session.Session, a *asdu.ASDU, ioa asdu.InfoObjAddr) error {
	if ok, err := o.addressed(s, a); !ok {
		return err
	}
	switch {
	case ioa == breakerIOA:
		return s.Send(o.singles(asdu.Request))
	case ioa == energyIOA:
		return s.Send(o.counters(asdu.Request))
	case ioa == voltageIOA || ioa == currentIOA:
		return s.Send(o.measurands(asdu.Request, ioa))
	}
	return s.Send(a.SendReplyMirror(asdu.UnknownIOA, true))
}

func (o *outstation) ClockSyncHandler(s *session.Session, a *asdu.ASDU, t time.Time) error {
	if ok, err := o.addressed(s, a); !ok {
		return err
	}
	o.log.WithField("time", t).Info("clock synchronization")
	return s.Send(a.Mirror(asdu.ActivationCon))
}

func (o *outstation) ResetProcessHandler(s *session.Session, a *asdu.ASDU, qrp asdu.QualifierOfResetProcessCmd) error {
	if ok, err := o.addressed(s, a); !ok {
		return err
	}
	o.log.WithField("qrp", qrp).Info("reset process")
	o.mu.Lock()
	o.energy = 0
	o.mu.Unlock()
	return s.Send(a.Mirror(asdu.ActivationCon))
}

func (o *outstation) DelayAcquisitionHandler(s *session.Session, a *asdu.ASDU, msec uint16) error {
	if ok, err := o.addressed(s, a); !ok {
		return err
	}
	o.log.WithField("delay_ms", msec).Debug("delay acquisition")
	return s.Send(a.Mirror(asdu.ActivationCon))
}

func (o *outstation) ASDUHandler(s *session.Session, a *asdu.ASDU) error {
	if ok, err := o.addressed(s, a); !ok {
		return err
	}
	if a.Type != asdu.C_SC_NA_1 && a.Type != asdu.C_SC_TA_1 {
		return s.Send(a.SendReplyMirror(asdu.UnknownTypeID, true))
	}
	if a.Coa.Cause != asdu.Activation {
		return s.Send(a.SendReplyMirror(asdu.UnknownCOT, true))
	}
	ioa, el, ok := a.Element(0)
	cmd, isCmd := el.(asdu.SingleCommand)
	if !ok || !isCmd || ioa != breakerIOA {
		return s.Send(a.SendReplyMirror(asdu.UnknownIOA, true))
	}
	if err := s.Send(a.Mirror(asdu.ActivationCon)); err != nil {
		return err
	}
	if cmd.Select {
		return nil
	}
	o.mu.Lock()
	o.breaker = cmd.Value
	o.mu.Unlock()
	o.log.WithField("value", cmd.Value).Info("breaker operated")
	return sendAll(s, a.Mirror(asdu.ActivationTerm), o.singles(asdu.ReturnInfoRemote))
}

func (o *outstation) ASDUHandlerAll(_ *session.Session, a *asdu.ASDU) error {
	o.log.WithField("asdu", a.Identifier.String()).Debug("received")
	return nil
}

// simulate moves the measurands and the counter every period and reports
// the measurands spontaneously until ctx ends.
func (o *outstation) simulate(ctx context.Context, out sender, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			phase := now.Sub(start).Seconds() / 60 * 2 * math.Pi
			o.mu.Lock()
			o.measures[voltageIOA] = float32(230 + 5*math.Sin(phase))
			o.measures[currentIOA] = float32(12.5 + 2*math.Cos(phase))
			o.energy++
			o.mu.Unlock()
			err := out.Send(o.measurands(asdu.Spontaneous))
			if err != nil && !errors.Is(err, session.ErrNotActive) && !errors.Is(err, session.ErrNotConnected) {
				o.log.WithError(err).Warn("spontaneous report")
			}
		}
	}
}
