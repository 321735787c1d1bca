// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package session implements the per-connection link state machine of
// IEC 60870-5-104: sequence numbering, the k/w acknowledgement window,
// the t1/t2/t3 timers and the STARTDT/STOPDT/TESTFR procedures.
//
// The same machine runs over any byte stream, so the cs101 transport
// reuses it over a serial link.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/apdu"
	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/timeout"
)

// Role tells which side of the link the session plays.
type Role uint8

// roles
const (
	// Controlling is the client side; it starts data transfer.
	Controlling Role = iota
	// Controlled is the server side; it answers STARTDT.
	Controlled
)

func (r Role) String() string {
	if r == Controlled {
		return "controlled"
	}
	return "controlling"
}

// data transfer states
const (
	StateStopped  = "STOPPED"
	StateStarting = "STARTING"
	StateStarted  = "STARTED"
	StateStopping = "STOPPING"
)

const (
	evStart     = "start"
	evStartCon  = "start_con"
	evPeerStart = "peer_start"
	evStop      = "stop"
	evStopCon   = "stop_con"
	evPeerStop  = "peer_stop"
)

type timerKind uint8

const (
	timerT1 timerKind = iota
	timerT2
	timerT3
	timerTestFR
	timerHandshake
	timerPoll
	timerStopDT
	timerCount
)

// timerKey keys a session timer in a scheduler shared by many sessions.
type timerKey struct {
	s    *Session
	kind timerKind
}

type seqPending struct {
	seq      uint16
	sendTime time.Time
}

// Counters is a snapshot of the session statistics.
type Counters struct {
	IFramesSent     uint64
	IFramesReceived uint64
	SFramesSent     uint64
	UFramesSent     uint64
	RejectedASDUs   uint64
}

type stats struct {
	iSent, iRecv, sSent, uSent, rejected atomic.Uint64
}

// Option configures a session.
type Option struct {
	role     Role
	config   Config
	params   asdu.Params
	sched    *timeout.Scheduler
	number   int
	provider clog.LogProvider
	logMode  bool
}

// NewOption returns the default option: controlling role, default link
// parameters and the 104 standard ASDU layout.
func NewOption() *Option {
	return &Option{
		config: DefaultConfig(),
		params: *asdu.ParamsWide,
	}
}

// SetRole sets the role.
func (sf *Option) SetRole(r Role) *Option {
	sf.role = r
	return sf
}

// SetConfig sets the link parameters. Zero fields take defaults; ranges
// are checked by Config.Valid, not here.
func (sf *Option) SetConfig(cfg Config) *Option {
	sf.config = cfg.withDefaults()
	return sf
}

// SetParams sets the ASDU layout. Invalid params keep the default.
func (sf *Option) SetParams(p *asdu.Params) *Option {
	if p != nil && p.Valid() == nil {
		sf.params = *p
	}
	return sf
}

// SetScheduler shares sched with other sessions. The session then never
// starts or stops it.
func (sf *Option) SetScheduler(sched *timeout.Scheduler) *Option {
	sf.sched = sched
	return sf
}

// SetNumber tags the session, e.g. with the index of the station it serves.
func (sf *Option) SetNumber(n int) *Option {
	sf.number = n
	return sf
}

// SetLogProvider sets the log provider and enables logging.
func (sf *Option) SetLogProvider(p clog.LogProvider) *Option {
	sf.provider = p
	sf.logMode = p != nil
	return sf
}

// Session is one established connection.
type Session struct {
	clog.Clog

	conn     io.ReadWriteCloser
	reader   *bufio.Reader
	cfg      Config
	params   *asdu.Params
	role     Role
	number   int
	handler  Handler
	sched    *timeout.Scheduler
	ownSched bool

	mu        sync.Mutex
	lifecycle *fsm.FSM
	sendSN    uint16
	rcvSN     uint16
	ackRcvd   uint16
	ackSent   uint16
	pending   []seqPending
	window    chan struct{} // closed and replaced whenever the window opens
	testing   bool
	retries   int
	closed    bool
	cause     error

	wq   writeQueue
	wbuf [apdu.MaxFrameSize]byte

	done  chan struct{}
	stats stats
}

// New returns a session over conn. Call Serve to run it.
func New(conn io.ReadWriteCloser, handler Handler, o *Option) *Session {
	if o == nil {
		o = NewOption()
	}
	params := o.params
	s := &Session{
		Clog:    clog.NewLogger(fmt.Sprintf("session %s => ", o.role)),
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, apdu.MaxFrameSize*4),
		cfg:     o.config.withDefaults(),
		params:  &params,
		role:    o.role,
		number:  o.number,
		handler: handler,
		sched:   o.sched,
		window:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	if s.handler == nil {
		s.handler = HandlerFuncs{}
	}
	if o.provider != nil {
		s.SetLogProvider(o.provider)
	}
	s.LogMode(o.logMode)
	if s.sched == nil {
		s.sched = timeout.New()
		s.sched.LogMode(o.logMode)
		s.ownSched = true
	}
	s.wq.init()
	s.lifecycle = fsm.NewFSM(
		StateStopped,
		fsm.Events{
			{Name: evStart, Src: []string{StateStopped}, Dst: StateStarting},
			{Name: evStartCon, Src: []string{StateStarting}, Dst: StateStarted},
			{Name: evPeerStart, Src: []string{StateStopped, StateStarting}, Dst: StateStarted},
			{Name: evStop, Src: []string{StateStarted}, Dst: StateStopping},
			{Name: evStopCon, Src: []string{StateStopping}, Dst: StateStopped},
			{Name: evPeerStop, Src: []string{StateStarted, StateStopping}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.Debug("data transfer %s -> %s", e.Src, e.Dst)
			},
		},
	)
	return s
}

// Params returns the ASDU layout of the session.
func (s *Session) Params() *asdu.Params { return s.params }

// Role returns the role of the session.
func (s *Session) Role() Role { return s.role }

// Number returns the tag set with Option.SetNumber.
func (s *Session) Number() int { return s.number }

// Config returns the link parameters in effect.
func (s *Session) Config() Config { return s.cfg }

// UnderlyingConn returns the transport.
func (s *Session) UnderlyingConn() io.ReadWriteCloser { return s.conn }

// State returns the data transfer state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle.Current()
}

// IsActive reports whether I-frames may be sent.
func (s *Session) IsActive() bool {
	return s.State() == StateStarted
}

// Done is closed when Serve returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the session, nil while it runs or
// after Close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Counters {
	return Counters{
		IFramesSent:     s.stats.iSent.Load(),
		IFramesReceived: s.stats.iRecv.Load(),
		SFramesSent:     s.stats.sSent.Load(),
		UFramesSent:     s.stats.uSent.Load(),
		RejectedASDUs:   s.stats.rejected.Load(),
	}
}

// Serve runs the receive loop until the connection ends and returns the
// cause. A nil cause means Close was called.
func (s *Session) Serve() error {
	defer close(s.done)
	if s.ownSched {
		s.sched.Start()
	}
	s.Debug("serve, role %s", s.role)
	s.touch()
	for {
		f, err := apdu.Decode(s.reader, s.params)
		if err != nil {
			var pe *apdu.PayloadError
			if f != nil && errors.As(err, &pe) {
				s.Debug("RX %s", f)
				s.touch()
				s.onIFrame(f, pe)
			} else if errors.Is(err, apdu.ErrFraming) {
				s.fail(err)
			} else {
				s.fail(fmt.Errorf("%w: %w", ErrTransport, err))
			}
		} else {
			s.Debug("RX %s", f)
			s.touch()
			switch f.Kind {
			case apdu.IFrame:
				s.onIFrame(f, nil)
			case apdu.SFrame:
				s.onSFrame(f)
			default:
				s.onUFrame(f)
			}
		}
		if s.isClosed() {
			return s.Err()
		}
	}
}

// Close ends the session without an error cause. Serve returns shortly
// after.
func (s *Session) Close() error {
	s.fail(nil)
	return nil
}

// StartDataTransfer sends STARTDT act and waits for the confirmation in
// the background. The handler's ConnectionReady reports success.
func (s *Session) StartDataTransfer() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrUseClosedConnection
	}
	switch s.lifecycle.Current() {
	case StateStarted, StateStarting:
		s.mu.Unlock()
		return nil
	case StateStopping:
		s.mu.Unlock()
		return ErrStopping
	}
	s.transition(evStart)
	s.retries = 0
	s.sched.Schedule(s.key(timerHandshake), s.cfg.HandshakeTimeout, s.onHandshakeTimeout)
	s.sched.Schedule(s.key(timerPoll), s.cfg.HandshakePollInterval, s.onHandshakePoll)
	f := apdu.NewUFrame(apdu.StartDTActive)
	t := s.takeTicketLocked()
	s.mu.Unlock()
	return s.transmit(t, f)
}

// StopDataTransfer acknowledges what was received, sends STOPDT act and
// waits t1 for the confirmation.
func (s *Session) StopDataTransfer() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrUseClosedConnection
	}
	switch s.lifecycle.Current() {
	case StateStopped, StateStopping:
		s.mu.Unlock()
		return nil
	case StateStarting:
		s.mu.Unlock()
		return ErrNotActive
	}
	var ack *apdu.Frame
	var ackTicket uint64
	if s.rcvSN != s.ackSent {
		ack, ackTicket = s.prepareAckLocked()
	}
	s.transition(evStop)
	s.sched.Schedule(s.key(timerStopDT), s.cfg.SendUnAckTimeout1, s.onStopTimeout)
	f := apdu.NewUFrame(apdu.StopDTActive)
	t := s.takeTicketLocked()
	s.mu.Unlock()
	if ack != nil {
		if err := s.transmit(ackTicket, ack); err != nil {
			s.wq.skip(t)
			return err
		}
	}
	return s.transmit(t, f)
}

// Send sends a as an I-frame, blocking while k frames are unacknowledged.
func (s *Session) Send(a *asdu.ASDU) error {
	return s.SendContext(context.Background(), a)
}

// SendContext is Send bounded by ctx while waiting for the window.
// Encoding errors are returned before any state changes. An ASDU without
// params uses the session's.
func (s *Session) SendContext(ctx context.Context, a *asdu.ASDU) error {
	if a.Params == nil {
		c := *a
		c.Params = s.params
		a = &c
	}
	payload, err := a.MarshalBinary()
	if err != nil {
		return err
	}

	s.mu.Lock()
	for {
		if s.closed {
			s.mu.Unlock()
			return ErrUseClosedConnection
		}
		if !s.lifecycle.Is(StateStarted) {
			s.mu.Unlock()
			return ErrNotActive
		}
		if len(s.pending) < int(s.cfg.SendUnAckLimitK) {
			break
		}
		w := s.window
		s.mu.Unlock()
		select {
		case <-w:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}

	seq := s.sendSN
	s.sendSN = seqAdd(seq, 1)
	now := time.Now()
	if len(s.pending) == 0 {
		s.sched.ScheduleAt(s.key(timerT1), now.Add(s.cfg.SendUnAckTimeout1), s.onT1)
	}
	s.pending = append(s.pending, seqPending{seq: seq, sendTime: now})
	// the I-frame carries the receive number, which acknowledges everything
	s.ackSent = s.rcvSN
	s.sched.Cancel(s.key(timerT2))
	f := &apdu.Frame{Kind: apdu.IFrame, SendSN: seq, RecvSN: s.rcvSN, Payload: payload}
	t := s.takeTicketLocked()
	s.mu.Unlock()

	s.stats.iSent.Inc()
	return s.transmit(t, f)
}

func (s *Session) key(k timerKind) timerKey { return timerKey{s: s, kind: k} }

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// transition fires ev and reports whether the state changed.
func (s *Session) transition(ev string) bool {
	return s.lifecycle.Event(context.Background(), ev) == nil
}

// takeTicketLocked reserves a write slot and restarts t3, since anything
// sent counts as traffic.
func (s *Session) takeTicketLocked() uint64 {
	s.sched.Schedule(s.key(timerT3), s.cfg.IdleTimeout3, s.onT3)
	return s.wq.take()
}

// prepareAckLocked builds an S-frame acknowledging every received I-frame.
func (s *Session) prepareAckLocked() (*apdu.Frame, uint64) {
	s.ackSent = s.rcvSN
	s.sched.Cancel(s.key(timerT2))
	return apdu.NewSFrame(s.rcvSN), s.takeTicketLocked()
}

// transmit writes f once every earlier ticket has been written.
func (s *Session) transmit(ticket uint64, f *apdu.Frame) error {
	s.wq.wait(ticket)
	n, err := apdu.Encode(s.wbuf[:], f)
	if err == nil {
		_, err = s.conn.Write(s.wbuf[:n])
	}
	s.wq.done()
	if err != nil {
		if s.isClosed() {
			return ErrUseClosedConnection
		}
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		s.fail(err)
		return err
	}
	switch f.Kind {
	case apdu.IFrame:
	case apdu.SFrame:
		s.stats.sSent.Inc()
	default:
		s.stats.uSent.Inc()
	}
	s.Debug("TX %s", f)
	return nil
}

// touch restarts t3 on received traffic.
func (s *Session) touch() {
	s.mu.Lock()
	if !s.closed {
		s.sched.Schedule(s.key(timerT3), s.cfg.IdleTimeout3, s.onT3)
	}
	s.mu.Unlock()
}

func (s *Session) onIFrame(f *apdu.Frame, pe *apdu.PayloadError) {
	s.stats.iRecv.Inc()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if st := s.lifecycle.Current(); st != StateStarted && st != StateStopping {
		s.mu.Unlock()
		s.fail(fmt.Errorf("%w: state %s", ErrUnexpectedFrame, st))
		return
	}
	if f.SendSN != s.rcvSN {
		want := s.rcvSN
		s.mu.Unlock()
		s.fail(fmt.Errorf("%w: got %d, want %d", ErrSequenceMismatch, f.SendSN, want))
		return
	}
	s.rcvSN = seqAdd(s.rcvSN, 1)
	if err := s.ackLocked(f.RecvSN); err != nil {
		s.mu.Unlock()
		s.fail(err)
		return
	}
	var ack *apdu.Frame
	var ticket uint64
	if seqDiff(s.rcvSN, s.ackSent) >= s.cfg.RecvUnAckLimitW {
		ack, ticket = s.prepareAckLocked()
	} else if !s.sched.Pending(s.key(timerT2)) {
		s.sched.Schedule(s.key(timerT2), s.cfg.RecvUnAckTimeout2, s.onT2)
	}
	s.mu.Unlock()

	if ack != nil {
		if s.transmit(ticket, ack) != nil {
			return
		}
	}
	if pe != nil {
		s.reportPayloadError(pe)
		return
	}
	s.deliver(f.ASDU)
}

func (s *Session) onSFrame(f *apdu.Frame) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	err := s.ackLocked(f.RecvSN)
	s.mu.Unlock()
	if err != nil {
		s.fail(err)
	}
}

// ackLocked releases the pending frames below ack. ack must lie between
// the last acknowledged and the next send sequence number.
func (s *Session) ackLocked(ack uint16) error {
	got := seqDiff(ack, s.ackRcvd)
	if got > seqDiff(s.sendSN, s.ackRcvd) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidAck, ack, s.ackRcvd, s.sendSN)
	}
	if got == 0 {
		return nil
	}
	s.pending = append(s.pending[:0], s.pending[got:]...)
	s.ackRcvd = ack
	if len(s.pending) == 0 {
		s.sched.Cancel(s.key(timerT1))
	} else {
		s.sched.ScheduleAt(s.key(timerT1), s.pending[0].sendTime.Add(s.cfg.SendUnAckTimeout1), s.onT1)
	}
	close(s.window)
	s.window = make(chan struct{})
	return nil
}

func (s *Session) onUFrame(f *apdu.Frame) {
	switch f.Kind {
	case apdu.StartDTActive:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		ready := s.transition(evPeerStart)
		if ready {
			s.sched.Cancel(s.key(timerHandshake))
			s.sched.Cancel(s.key(timerPoll))
		}
		t := s.takeTicketLocked()
		s.mu.Unlock()
		if s.transmit(t, apdu.NewUFrame(apdu.StartDTConfirm)) == nil && ready {
			s.ready()
		}

	case apdu.StartDTConfirm:
		s.mu.Lock()
		ready := !s.closed && s.lifecycle.Is(StateStarting) && s.transition(evStartCon)
		if ready {
			s.sched.Cancel(s.key(timerHandshake))
			s.sched.Cancel(s.key(timerPoll))
		}
		s.mu.Unlock()
		if ready {
			s.ready()
		} else {
			s.Warn("unexpected STARTDT con")
		}

	case apdu.StopDTActive:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		var ack *apdu.Frame
		var ackTicket uint64
		if s.rcvSN != s.ackSent {
			ack, ackTicket = s.prepareAckLocked()
		}
		s.transition(evPeerStop)
		s.sched.Cancel(s.key(timerStopDT))
		t := s.takeTicketLocked()
		s.mu.Unlock()
		if ack != nil {
			if s.transmit(ackTicket, ack) != nil {
				s.wq.skip(t)
				return
			}
		}
		_ = s.transmit(t, apdu.NewUFrame(apdu.StopDTConfirm))

	case apdu.StopDTConfirm:
		s.mu.Lock()
		if !s.closed && s.lifecycle.Is(StateStopping) {
			s.transition(evStopCon)
			s.sched.Cancel(s.key(timerStopDT))
		}
		s.mu.Unlock()

	case apdu.TestFRActive:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		t := s.takeTicketLocked()
		s.mu.Unlock()
		_ = s.transmit(t, apdu.NewUFrame(apdu.TestFRConfirm))

	case apdu.TestFRConfirm:
		s.mu.Lock()
		s.testing = false
		s.sched.Cancel(s.key(timerTestFR))
		s.mu.Unlock()
	}
}

func (s *Session) onT1() {
	s.mu.Lock()
	if s.closed || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	if due := s.pending[0].sendTime.Add(s.cfg.SendUnAckTimeout1); time.Now().Before(due) {
		// fired early for the oldest frame, wait for its own deadline
		s.sched.ScheduleAt(s.key(timerT1), due, s.onT1)
		s.mu.Unlock()
		return
	}
	seq := s.pending[0].seq
	s.mu.Unlock()
	s.fail(fmt.Errorf("%w: oldest unacknowledged %d", ErrTimeoutT1, seq))
}

func (s *Session) onT2() {
	s.mu.Lock()
	if s.closed || s.rcvSN == s.ackSent {
		s.mu.Unlock()
		return
	}
	f, t := s.prepareAckLocked()
	s.mu.Unlock()
	_ = s.transmit(t, f)
}

func (s *Session) onT3() {
	s.mu.Lock()
	if s.closed || s.testing {
		s.mu.Unlock()
		return
	}
	s.testing = true
	s.sched.Schedule(s.key(timerTestFR), s.cfg.SendUnAckTimeout1, s.onTestFRTimeout)
	t := s.takeTicketLocked()
	s.mu.Unlock()
	_ = s.transmit(t, apdu.NewUFrame(apdu.TestFRActive))
}

func (s *Session) onTestFRTimeout() {
	s.mu.Lock()
	expired := !s.closed && s.testing
	s.mu.Unlock()
	if expired {
		s.fail(ErrTestFrameTimeout)
	}
}

func (s *Session) onHandshakePoll() {
	s.mu.Lock()
	if s.closed || !s.lifecycle.Is(StateStarting) || s.retries >= s.cfg.HandshakeRetries {
		s.mu.Unlock()
		return
	}
	s.retries++
	n := s.retries
	s.sched.Schedule(s.key(timerPoll), s.cfg.HandshakePollInterval, s.onHandshakePoll)
	t := s.takeTicketLocked()
	s.mu.Unlock()
	s.Debug("STARTDT act retry %d", n)
	_ = s.transmit(t, apdu.NewUFrame(apdu.StartDTActive))
}

func (s *Session) onHandshakeTimeout() {
	s.mu.Lock()
	expired := !s.closed && s.lifecycle.Is(StateStarting)
	s.mu.Unlock()
	if expired {
		s.fail(ErrHandshakeTimeout)
	}
}

func (s *Session) onStopTimeout() {
	s.mu.Lock()
	expired := !s.closed && s.lifecycle.Is(StateStopping)
	s.mu.Unlock()
	if expired {
		s.fail(ErrStopTimeout)
	}
}

// fail tears the session down once. Later calls are no-ops.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cause = err
	s.lifecycle.SetState(StateStopped)
	for k := timerT1; k < timerCount; k++ {
		s.sched.Cancel(s.key(k))
	}
	close(s.window)
	s.mu.Unlock()

	_ = s.conn.Close()
	if err != nil {
		s.Error("connection lost: %v", err)
	} else {
		s.Debug("connection closed")
	}
	if s.ownSched {
		// may run on the scheduler's own worker
		go s.sched.Stop()
	}
	s.safeCall("ConnectionLost", func() { s.handler.ConnectionLost(s, err) })
}

func (s *Session) ready() {
	s.Debug("data transfer started")
	s.safeCall("ConnectionReady", func() { s.handler.ConnectionReady(s) })
}

func (s *Session) deliver(a *asdu.ASDU) {
	s.safeCall("ASDUReceived", func() { s.handler.ASDUReceived(s, a) })
}

func (s *Session) reportPayloadError(pe *apdu.PayloadError) {
	s.stats.rejected.Inc()
	if pe.ASDU != nil {
		s.Warn("rejected ASDU %s: %v", pe.ASDU.Identifier, pe.Err)
	} else {
		s.Warn("rejected ASDU: %v", pe.Err)
	}
	if h, ok := s.handler.(PayloadErrorHandler); ok {
		s.safeCall("PayloadError", func() { h.PayloadError(s, pe.ASDU, pe.Err) })
	}
}

func (s *Session) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.Critical("%s handler panic: %v", name, r)
		}
	}()
	fn()
}

// seqAdd adds n modulo 32768.
func seqAdd(a, n uint16) uint16 { return (a + n) & (apdu.SeqModulo - 1) }

// seqDiff returns a-b modulo 32768.
func seqDiff(a, b uint16) uint16 { return (a - b) & (apdu.SeqModulo - 1) }

// writeQueue serializes writes in the order tickets were taken, so frames
// leave in the order their sequence numbers were assigned.
type writeQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64 // next ticket to hand out
	turn    uint64 // ticket allowed to write
	skipped map[uint64]bool
}

func (q *writeQueue) init() {
	q.cond = sync.NewCond(&q.mu)
	q.skipped = make(map[uint64]bool)
}

func (q *writeQueue) take() uint64 {
	q.mu.Lock()
	t := q.next
	q.next++
	q.mu.Unlock()
	return t
}

// wait blocks until ticket t may write. done must follow.
func (q *writeQueue) wait(t uint64) {
	q.mu.Lock()
	for q.turn != t {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

func (q *writeQueue) done() {
	q.mu.Lock()
	q.advanceLocked()
	q.mu.Unlock()
}

// skip gives up ticket t without writing.
func (q *writeQueue) skip(t uint64) {
	q.mu.Lock()
	if q.turn == t {
		q.advanceLocked()
	} else {
		q.skipped[t] = true
	}
	q.mu.Unlock()
}

func (q *writeQueue) advanceLocked() {
	q.turn++
	for q.skipped[q.turn] {
		delete(q.skipped, q.turn)
		q.turn++
	}
	q.cond.Broadcast()
}
