// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/config"
	"github.com/riclolsen/iec60870/mqttbridge"
	"github.com/riclolsen/iec60870/session"
)

// printer logs what the controlled station reports.
type printer struct {
	log logrus.FieldLogger
}

var (
	_ session.ClientHandlerInterface = (*printer)(nil)
	_ session.AllHandler             = (*printer)(nil)
)

func (h *printer) report(kind string, a *asdu.ASDU) error {
	entry := h.log.WithFields(logrus.Fields{
		"type":  a.Type.Name(),
		"cause": a.Coa.Cause.String(),
		"ca":    a.CommonAddr,
	})
	if a.Coa.IsNegative {
		entry.Warn(kind + " rejected")
		return nil
	}
	for _, obj := range a.Objects {
		for i, row := range obj.Elements {
			addr := obj.Addr
			if a.Variable.IsSequence {
				addr += asdu.InfoObjAddr(i)
			}
			entry.WithField("ioa", addr).Infof("%s %v", kind, row)
		}
	}
	if len(a.Objects) == 0 {
		entry.Info(kind)
	}
	return nil
}

func (h *printer) InterrogationHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("interrogation", a)
}

func (h *printer) CounterInterrogationHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("counter interrogation", a)
}

func (h *printer) ReadHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("read", a)
}

func (h *printer) TestCommandHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("test", a)
}

func (h *printer) ClockSyncHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("clock sync", a)
}

func (h *printer) ResetProcessHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("reset process", a)
}

func (h *printer) DelayAcquisitionHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("delay acquisition", a)
}

func (h *printer) ASDUHandler(_ *session.Session, a *asdu.ASDU) error {
	return h.report("data", a)
}

func (h *printer) ASDUHandlerAll(_ *session.Session, a *asdu.ASDU) error {
	h.log.WithField("asdu", a.Identifier.String()).Debug("received")
	return nil
}

// clientHandler builds the handler of a controlling station named station.
// The ready channel is signalled every time data transfer starts.
func clientHandler(f *config.File, log logrus.FieldLogger, station string, ready chan<- struct{}) (session.Handler, func(), error) {
	var h session.Handler = session.ClientHandler{
		ClientHandlerInterface: &printer{log: log},
		OnReady: func(s *session.Session) {
			log.Info("data transfer started")
			select {
			case ready <- struct{}{}:
			default:
			}
		},
		OnLost: func(s *session.Session, err error) {
			log.WithError(err).Warn("connection lost")
		},
	}
	if f.MQTT.Broker == "" {
		return h, func() {}, nil
	}

	o := mqttbridge.Options{
		Broker:   f.MQTT.Broker,
		ClientID: f.MQTT.ClientID,
		Username: f.MQTT.Username,
		Password: f.MQTT.Password,
		Topic:    f.MQTT.Topic,
		QoS:      f.MQTT.QoS,
		Retain:   f.MQTT.Retain,
		Station:  station,
	}
	client, err := mqttbridge.Connect(o)
	if err != nil {
		return nil, nil, err
	}
	b := mqttbridge.New(client, o)
	b.SetLogProvider(f.LogProvider("mqtt"))
	b.LogMode(f.Log.Enabled)
	log.WithField("broker", f.MQTT.Broker).Info("forwarding to mqtt")
	return b.Wrap(h), func() {
		published, failed := b.Stats()
		log.WithFields(logrus.Fields{"published": published, "failed": failed}).Info("mqtt bridge closed")
		client.Disconnect(250)
	}, nil
}

// interrogator is the part of a station the poll loop drives.
type interrogator interface {
	IsActive() bool
	InterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qoi asdu.QualifierOfInterrogation) error
	CounterInterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qcc asdu.QualifierCountCall) error
}

// poll sends a general interrogation each time data transfer starts and
// then every interval, until ctx ends. counters adds a counter interrogation.
func poll(ctx context.Context, st interrogator, ready <-chan struct{}, ca asdu.CommonAddr,
	interval time.Duration, counters bool, log logrus.FieldLogger) {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	act := asdu.CauseOfTransmission{Cause: asdu.Activation}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ready:
		case <-tick:
			if !st.IsActive() {
				continue
			}
		}
		if err := st.InterrogationCmd(act, ca, asdu.QOIStation); err != nil {
			log.WithError(err).Warn("general interrogation")
		}
		if !counters {
			continue
		}
		qcc := asdu.QualifierCountCall{Request: asdu.QCCTotal}
		if err := st.CounterInterrogationCmd(act, ca, qcc); err != nil {
			log.WithError(err).Warn("counter interrogation")
		}
	}
}
