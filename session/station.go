// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/timeout"
)

// DefaultReconnectInterval defined default value
const DefaultReconnectInterval = 1 * time.Minute

// Connection states
const (
	statusInitial uint32 = iota
	statusConnecting
	statusConnected
	statusDisconnected
)

// Dialer opens the transport of the next connection attempt.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Station keeps one session alive over a dialer. A controlling station
// starts data transfer on every new connection. When the connection is lost
// the station dials again after the reconnect interval, unless
// reconnection is disabled.
type Station struct {
	clog.Clog

	dial              Dialer
	handler           Handler
	option            Option
	autoReconnect     bool
	reconnectInterval time.Duration
	sched             *timeout.Scheduler

	status atomic.Uint32
	rwMux  sync.RWMutex
	sess   *Session
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	onConnect        func(s *Session)
	onConnectionLost func(s *Session, err error)
	onConnectError   func(err error)
}

// NewStation returns a station dialing with dial. Sessions are built from o.
func NewStation(dial Dialer, handler Handler, o *Option) *Station {
	if o == nil {
		o = NewOption()
	}
	if handler == nil {
		handler = HandlerFuncs{}
	}
	sf := &Station{
		Clog:              clog.NewLogger("station => "),
		dial:              dial,
		handler:           handler,
		option:            *o,
		autoReconnect:     true,
		reconnectInterval: DefaultReconnectInterval,
		onConnect:         func(*Session) {},
		onConnectionLost:  func(*Session, error) {},
		onConnectError:    func(error) {},
	}
	if o.provider != nil {
		sf.SetLogProvider(o.provider)
	}
	sf.LogMode(o.logMode)
	return sf
}

// SetAutoReconnect enables or disables automatic reconnection attempts.
func (sf *Station) SetAutoReconnect(b bool) *Station {
	sf.autoReconnect = b
	return sf
}

// SetReconnectInterval sets the interval for attempting reconnection after a connection failure.
func (sf *Station) SetReconnectInterval(t time.Duration) *Station {
	if t > 0 {
		sf.reconnectInterval = t
	}
	return sf
}

// SetOnConnectHandler sets the handler called once data transfer is started.
func (sf *Station) SetOnConnectHandler(f func(s *Session)) *Station {
	if f != nil {
		sf.onConnect = f
	}
	return sf
}

// SetConnectionLostHandler sets the handler called when the connection is lost.
func (sf *Station) SetConnectionLostHandler(f func(s *Session, err error)) *Station {
	if f != nil {
		sf.onConnectionLost = f
	}
	return sf
}

// SetConnectErrorHandler sets the handler called when a connection attempt fails.
func (sf *Station) SetConnectErrorHandler(f func(err error)) *Station {
	if f != nil {
		sf.onConnectError = f
	}
	return sf
}

// Start initiates the connection process in the background.
func (sf *Station) Start() error {
	sf.rwMux.Lock()
	defer sf.rwMux.Unlock()
	if sf.ctx != nil {
		return ErrStationStarted
	}
	sf.ctx, sf.cancel = context.WithCancel(context.Background())
	sf.done = make(chan struct{})
	sf.sched = sf.option.sched
	if sf.sched == nil {
		sf.sched = timeout.New()
		sf.sched.LogMode(sf.option.logMode)
		sf.sched.Start()
	}
	go sf.connectionManager(sf.ctx, sf.done)
	return nil
}

// Close stops reconnecting, closes the current session and waits for the
// connection manager to exit. The station can be started again afterwards.
func (sf *Station) Close() error {
	sf.rwMux.Lock()
	if sf.ctx == nil {
		sf.rwMux.Unlock()
		return nil
	}
	sf.cancel()
	ctx, s, done, sched := sf.ctx, sf.sess, sf.done, sf.sched
	sf.rwMux.Unlock()

	if s != nil {
		_ = s.Close()
	}
	<-done
	if sf.option.sched == nil {
		sched.Stop()
	}

	sf.rwMux.Lock()
	if sf.ctx == ctx {
		sf.ctx, sf.cancel = nil, nil
	}
	sf.rwMux.Unlock()
	return nil
}

// IsConnected reports whether a transport is open.
func (sf *Station) IsConnected() bool {
	return sf.status.Load() == statusConnected
}

// IsActive reports whether the current session is in data transfer.
func (sf *Station) IsActive() bool {
	s, err := sf.Session()
	return err == nil && s.IsActive()
}

// Session returns the current session.
func (sf *Station) Session() (*Session, error) {
	sf.rwMux.RLock()
	defer sf.rwMux.RUnlock()
	if sf.sess == nil {
		return nil, ErrNotConnected
	}
	return sf.sess, nil
}

// Params returns the ASDU layout used by the sessions.
func (sf *Station) Params() *asdu.Params {
	p := sf.option.params
	return &p
}

// Send sends a over the current session.
func (sf *Station) Send(a *asdu.ASDU) error {
	return sf.SendContext(context.Background(), a)
}

// SendContext sends a over the current session, bounded by ctx.
func (sf *Station) SendContext(ctx context.Context, a *asdu.ASDU) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.SendContext(ctx, a)
}

// InterrogationCmd sends a C_IC_NA_1 ASDU on the current session.
func (sf *Station) InterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qoi asdu.QualifierOfInterrogation) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.InterrogationCmd(coa, ca, qoi)
}

// CounterInterrogationCmd sends a C_CI_NA_1 ASDU on the current session.
func (sf *Station) CounterInterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qcc asdu.QualifierCountCall) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.CounterInterrogationCmd(coa, ca, qcc)
}

// ReadCmd sends a C_RD_NA_1 ASDU on the current session.
func (sf *Station) ReadCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, ioa asdu.InfoObjAddr) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.ReadCmd(coa, ca, ioa)
}

// ClockSynchronizationCmd sends a C_CS_NA_1 ASDU on the current session.
func (sf *Station) ClockSynchronizationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, t time.Time) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.ClockSynchronizationCmd(coa, ca, t)
}

// ResetProcessCmd sends a C_RP_NA_1 ASDU on the current session.
func (sf *Station) ResetProcessCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qrp asdu.QualifierOfResetProcessCmd) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.ResetProcessCmd(coa, ca, qrp)
}

// DelayAcquireCommand sends a C_CD_NA_1 ASDU on the current session.
func (sf *Station) DelayAcquireCommand(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, msec uint16) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.DelayAcquireCommand(coa, ca, msec)
}

// TestCommand sends a C_TS_NA_1 ASDU on the current session.
func (sf *Station) TestCommand(coa asdu.CauseOfTransmission, ca asdu.CommonAddr) error {
	s, err := sf.Session()
	if err != nil {
		return err
	}
	return s.TestCommand(coa, ca)
}

// connectionManager handles the connection lifecycle and reconnection.
func (sf *Station) connectionManager(ctx context.Context, done chan struct{}) {
	sf.Debug("connection manager started")
	defer func() {
		sf.status.Store(statusInitial)
		close(done)
		sf.Debug("connection manager stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		sf.status.Store(statusConnecting)
		conn, err := sf.dial(ctx)
		if err != nil {
			sf.status.Store(statusDisconnected)
			if ctx.Err() != nil {
				return
			}
			sf.Error("connect failed: %v", err)
			sf.onConnectError(err)
			if !sf.wait(ctx) {
				return
			}
			continue
		}

		opt := sf.option
		opt.sched = sf.sched
		s := New(conn, stationHandler{sf}, &opt)
		sf.rwMux.Lock()
		if ctx.Err() != nil {
			sf.rwMux.Unlock()
			_ = conn.Close()
			return
		}
		sf.sess = s
		sf.rwMux.Unlock()
		sf.status.Store(statusConnected)
		sf.Debug("connected")

		if opt.role == Controlling {
			go func() {
				if err := s.StartDataTransfer(); err != nil {
					sf.Warn("STARTDT: %v", err)
				}
			}()
		}
		err = s.Serve()

		sf.rwMux.Lock()
		sf.sess = nil
		sf.rwMux.Unlock()
		sf.status.Store(statusDisconnected)
		if err != nil {
			sf.Warn("connection ended: %v", err)
		}
		if !sf.wait(ctx) {
			return
		}
	}
}

// wait sleeps for the reconnect interval and reports whether to go on.
func (sf *Station) wait(ctx context.Context) bool {
	if !sf.autoReconnect {
		sf.Debug("auto reconnect disabled, stopping")
		return false
	}
	sf.Debug("reconnecting in %v", sf.reconnectInterval)
	select {
	case <-time.After(sf.reconnectInterval):
		return true
	case <-ctx.Done():
		return false
	}
}

// stationHandler forwards session events to the user handler and the
// station callbacks.
type stationHandler struct {
	sf *Station
}

func (h stationHandler) ConnectionReady(s *Session) {
	h.sf.handler.ConnectionReady(s)
	h.sf.onConnect(s)
}

func (h stationHandler) ASDUReceived(s *Session, a *asdu.ASDU) {
	h.sf.handler.ASDUReceived(s, a)
}

func (h stationHandler) ConnectionLost(s *Session, err error) {
	h.sf.handler.ConnectionLost(s, err)
	h.sf.onConnectionLost(s, err)
}

func (h stationHandler) PayloadError(s *Session, a *asdu.ASDU, err error) {
	if p, ok := h.sf.handler.(PayloadErrorHandler); ok {
		p.PayloadError(s, a, err)
	}
}
