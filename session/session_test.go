// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/riclolsen/iec60870/apdu"
	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/timeout"
)

const wait = 2 * time.Second

// peer is the far end of a net.Pipe, driven by the test.
type peer struct {
	t      *testing.T
	conn   net.Conn
	frames chan *apdu.Frame
}

func newPeer(t *testing.T, conn net.Conn) *peer {
	p := &peer{t: t, conn: conn, frames: make(chan *apdu.Frame, 64)}
	go func() {
		defer close(p.frames)
		for {
			f, err := apdu.Decode(conn, asdu.ParamsWide)
			if err != nil {
				var pe *apdu.PayloadError
				if f != nil && errors.As(err, &pe) {
					p.frames <- f
					continue
				}
				return
			}
			p.frames <- f
		}
	}()
	return p
}

func (p *peer) send(f *apdu.Frame) {
	p.t.Helper()
	b, err := apdu.Marshal(f)
	if err != nil {
		p.t.Fatalf("marshal %s: %v", f, err)
	}
	if _, err = p.conn.Write(b); err != nil {
		p.t.Fatalf("write %s: %v", f, err)
	}
}

func (p *peer) expect(k apdu.Kind) *apdu.Frame {
	p.t.Helper()
	select {
	case f, ok := <-p.frames:
		if !ok {
			p.t.Fatalf("connection closed, want %s", k)
		}
		if f.Kind != k {
			p.t.Fatalf("got %s, want %s", f, k)
		}
		return f
	case <-time.After(wait):
		p.t.Fatalf("no frame, want %s", k)
	}
	return nil
}

func (p *peer) expectNothing(d time.Duration) {
	p.t.Helper()
	select {
	case f, ok := <-p.frames:
		if ok {
			p.t.Fatalf("unexpected frame %s", f)
		}
	case <-time.After(d):
	}
}

type recorder struct {
	ready   chan struct{}
	asdus   chan *asdu.ASDU
	lost    chan error
	payload chan error
}

func newRecorder() *recorder {
	return &recorder{
		ready:   make(chan struct{}, 4),
		asdus:   make(chan *asdu.ASDU, 64),
		lost:    make(chan error, 4),
		payload: make(chan error, 8),
	}
}

func (r *recorder) handler() Handler {
	return HandlerFuncs{
		OnReady:        func(*Session) { r.ready <- struct{}{} },
		OnASDU:         func(_ *Session, a *asdu.ASDU) { r.asdus <- a },
		OnLost:         func(_ *Session, err error) { r.lost <- err },
		OnPayloadError: func(_ *Session, _ *asdu.ASDU, err error) { r.payload <- err },
	}
}

func (r *recorder) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-r.ready:
	case <-time.After(wait):
		t.Fatal("ConnectionReady not called")
	}
}

func (r *recorder) waitLost(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.lost:
		return err
	case <-time.After(wait):
		t.Fatal("ConnectionLost not called")
	}
	return nil
}

func testConfig() Config {
	return Config{
		SendUnAckLimitK:       12,
		RecvUnAckLimitW:       8,
		SendUnAckTimeout1:     time.Second,
		RecvUnAckTimeout2:     500 * time.Millisecond,
		IdleTimeout3:          20 * time.Second,
		HandshakeTimeout:      2 * time.Second,
		HandshakePollInterval: time.Second,
		HandshakeRetries:      1,
	}
}

func newPair(t *testing.T, role Role, cfg Config) (*Session, *peer, *recorder) {
	t.Helper()
	a, b := net.Pipe()
	rec := newRecorder()
	s := New(a, rec.handler(), NewOption().SetRole(role).SetConfig(cfg))
	p := newPeer(t, b)
	go func() { _ = s.Serve() }()
	t.Cleanup(func() {
		_ = s.Close()
		_ = b.Close()
	})
	return s, p, rec
}

// started returns a controlled session in data transfer.
func started(t *testing.T, cfg Config) (*Session, *peer, *recorder) {
	t.Helper()
	s, p, rec := newPair(t, Controlled, cfg)
	p.send(apdu.NewUFrame(apdu.StartDTActive))
	p.expect(apdu.StartDTConfirm)
	rec.waitReady(t)
	return s, p, rec
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func spontaneous(ioa asdu.InfoObjAddr) *asdu.ASDU {
	return asdu.NewASDU(asdu.ParamsWide, asdu.Identifier{
		Type:       asdu.M_SP_NA_1,
		Coa:        asdu.CauseOfTransmission{Cause: asdu.Spontaneous},
		CommonAddr: 1,
	}).AddObject(ioa, asdu.SinglePointInfo{Value: true})
}

func (s *Session) t1Armed() bool { return s.sched.Pending(s.key(timerT1)) }

func (s *Session) pendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func TestControlledAnswersStartDT(t *testing.T) {
	s, _, _ := started(t, testConfig())
	if s.State() != StateStarted || !s.IsActive() {
		t.Errorf("State() = %s", s.State())
	}
}

func TestControllingHandshake(t *testing.T) {
	s, p, rec := newPair(t, Controlling, testConfig())
	if err := s.Send(spontaneous(1)); !errors.Is(err, ErrNotActive) {
		t.Errorf("Send before STARTDT = %v", err)
	}
	if err := s.StartDataTransfer(); err != nil {
		t.Fatal(err)
	}
	p.expect(apdu.StartDTActive)
	if s.State() != StateStarting {
		t.Errorf("State() = %s, want %s", s.State(), StateStarting)
	}
	p.send(apdu.NewUFrame(apdu.StartDTConfirm))
	rec.waitReady(t)
	if s.State() != StateStarted {
		t.Errorf("State() = %s", s.State())
	}
	if s.sched.Pending(s.key(timerHandshake)) || s.sched.Pending(s.key(timerPoll)) {
		t.Error("handshake timers still armed")
	}
}

func TestHandshakeTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.HandshakeTimeout = 150 * time.Millisecond
	cfg.HandshakePollInterval = 40 * time.Millisecond
	cfg.HandshakeRetries = 2
	s, p, rec := newPair(t, Controlling, cfg)
	if err := s.StartDataTransfer(); err != nil {
		t.Fatal(err)
	}
	err := rec.waitLost(t)
	if !errors.Is(err, ErrHandshakeTimeout) || !errors.Is(err, ErrTimeout) {
		t.Errorf("lost with %v", err)
	}
	n := 0
	for f := range p.frames {
		if f.Kind != apdu.StartDTActive {
			t.Errorf("unexpected %s", f)
		}
		n++
	}
	if n != 3 {
		t.Errorf("STARTDT act sent %d times, want 3", n)
	}
	if s.State() != StateStopped {
		t.Errorf("State() = %s", s.State())
	}
}

func TestTestFrameAnsweredInAnyState(t *testing.T) {
	_, p, _ := newPair(t, Controlled, testConfig())
	p.send(apdu.NewUFrame(apdu.TestFRActive))
	p.expect(apdu.TestFRConfirm)
}

func TestIdleLinkIsTested(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout3 = 60 * time.Millisecond
	cfg.SendUnAckTimeout1 = 200 * time.Millisecond
	s, p, rec := newPair(t, Controlled, cfg)

	p.expect(apdu.TestFRActive)
	p.send(apdu.NewUFrame(apdu.TestFRConfirm))
	// the next idle period starts another test, left unanswered
	p.expect(apdu.TestFRActive)
	err := rec.waitLost(t)
	if !errors.Is(err, ErrTestFrameTimeout) {
		t.Errorf("lost with %v", err)
	}
	if s.Err() != err {
		t.Errorf("Err() = %v", s.Err())
	}
}

func TestReceiveAcknowledgesAtW(t *testing.T) {
	cfg := testConfig()
	cfg.RecvUnAckLimitW = 2
	_, p, rec := started(t, cfg)
	p.send(apdu.NewIFrame(0, 0, spontaneous(1)))
	p.send(apdu.NewIFrame(1, 0, spontaneous(2)))
	if f := p.expect(apdu.SFrame); f.RecvSN != 2 {
		t.Errorf("S-frame acknowledges %d, want 2", f.RecvSN)
	}
	for i := 1; i <= 2; i++ {
		select {
		case a := <-rec.asdus:
			if a.Objects[0].Addr != asdu.InfoObjAddr(i) {
				t.Errorf("ASDU %d has address %d", i, a.Objects[0].Addr)
			}
		case <-time.After(wait):
			t.Fatal("ASDU not delivered")
		}
	}
}

func TestReceiveAcknowledgesAfterT2(t *testing.T) {
	cfg := testConfig()
	cfg.RecvUnAckTimeout2 = 50 * time.Millisecond
	_, p, _ := started(t, cfg)
	p.send(apdu.NewIFrame(0, 0, spontaneous(1)))
	if f := p.expect(apdu.SFrame); f.RecvSN != 1 {
		t.Errorf("S-frame acknowledges %d, want 1", f.RecvSN)
	}
}

func TestSequenceMismatchTearsDown(t *testing.T) {
	s, p, rec := started(t, testConfig())
	p.send(apdu.NewIFrame(5, 0, spontaneous(1)))
	err := rec.waitLost(t)
	if !errors.Is(err, ErrSequenceMismatch) || !errors.Is(err, asdu.ErrProtocol) {
		t.Errorf("lost with %v", err)
	}
	select {
	case a := <-rec.asdus:
		t.Errorf("out of sequence ASDU delivered: %s", a)
	default:
	}
	if s.State() != StateStopped {
		t.Errorf("State() = %s", s.State())
	}
	select {
	case err := <-rec.lost:
		t.Errorf("ConnectionLost called twice, second %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIFrameBeforeStartDTTearsDown(t *testing.T) {
	_, p, rec := newPair(t, Controlled, testConfig())
	p.send(apdu.NewIFrame(0, 0, spontaneous(1)))
	if err := rec.waitLost(t); !errors.Is(err, ErrUnexpectedFrame) {
		t.Errorf("lost with %v", err)
	}
}

func TestSendAndAcknowledge(t *testing.T) {
	s, p, _ := started(t, testConfig())
	for i := 0; i < 3; i++ {
		if err := s.Send(spontaneous(asdu.InfoObjAddr(i + 1))); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		f := p.expect(apdu.IFrame)
		if f.SendSN != uint16(i) || f.RecvSN != 0 {
			t.Errorf("frame %d: %s", i, f)
		}
		if f.ASDU == nil || f.ASDU.Type != asdu.M_SP_NA_1 {
			t.Errorf("frame %d payload: %s", i, f)
		}
	}
	if !s.t1Armed() {
		t.Fatal("t1 not armed with frames outstanding")
	}

	p.send(apdu.NewSFrame(2))
	eventually(t, func() bool { return s.pendingLen() == 1 }, "partial acknowledgement")
	if !s.t1Armed() {
		t.Error("t1 cancelled by partial acknowledgement")
	}

	p.send(apdu.NewSFrame(3))
	eventually(t, func() bool { return s.pendingLen() == 0 }, "full acknowledgement")
	if s.t1Armed() {
		t.Error("t1 armed with nothing outstanding")
	}
	if st := s.Stats(); st.IFramesSent != 3 {
		t.Errorf("IFramesSent = %d", st.IFramesSent)
	}
}

func TestIFrameAcknowledgesSentFrames(t *testing.T) {
	s, p, _ := started(t, testConfig())
	if err := s.Send(spontaneous(1)); err != nil {
		t.Fatal(err)
	}
	p.expect(apdu.IFrame)
	p.send(apdu.NewIFrame(0, 1, spontaneous(9)))
	eventually(t, func() bool { return s.pendingLen() == 0 }, "acknowledgement by I-frame")

	// the next I-frame carries the receive number
	if err := s.Send(spontaneous(2)); err != nil {
		t.Fatal(err)
	}
	if f := p.expect(apdu.IFrame); f.SendSN != 1 || f.RecvSN != 1 {
		t.Errorf("got %s", f)
	}
}

func TestT1ExpiryClosesConnection(t *testing.T) {
	cfg := testConfig()
	cfg.SendUnAckTimeout1 = 100 * time.Millisecond
	cfg.RecvUnAckTimeout2 = 50 * time.Millisecond
	s, p, rec := started(t, cfg)
	if err := s.Send(spontaneous(1)); err != nil {
		t.Fatal(err)
	}
	p.expect(apdu.IFrame)
	if err := rec.waitLost(t); !errors.Is(err, ErrTimeoutT1) {
		t.Errorf("lost with %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("State() = %s", s.State())
	}
	select {
	case <-s.Done():
	case <-time.After(wait):
		t.Fatal("Serve did not return")
	}
	if err := s.Send(spontaneous(2)); !errors.Is(err, ErrUseClosedConnection) {
		t.Errorf("Send after close = %v", err)
	}
}

func TestEarlyT1KeepsTimerArmed(t *testing.T) {
	s, p, rec := started(t, testConfig())
	if err := s.Send(spontaneous(1)); err != nil {
		t.Fatal(err)
	}
	p.expect(apdu.IFrame)
	s.sched.Cancel(s.key(timerT1))

	// the oldest frame is not due yet, so t1 must wait for its deadline
	s.onT1()
	if !s.t1Armed() {
		t.Fatal("t1 disarmed with a frame outstanding")
	}
	if s.pendingLen() != 1 {
		t.Errorf("pending = %d", s.pendingLen())
	}
	select {
	case err := <-rec.lost:
		t.Fatalf("lost early with %v", err)
	default:
	}
	if err := rec.waitLost(t); !errors.Is(err, ErrTimeoutT1) {
		t.Errorf("lost with %v", err)
	}
}

func TestSequenceNumbersWrap(t *testing.T) {
	s, p, rec := started(t, testConfig())
	s.mu.Lock()
	s.sendSN, s.ackRcvd = 32767, 32767
	s.rcvSN, s.ackSent = 32767, 32767
	s.mu.Unlock()

	for i := 0; i < 2; i++ {
		if err := s.Send(spontaneous(1)); err != nil {
			t.Fatal(err)
		}
	}
	if f := p.expect(apdu.IFrame); f.SendSN != 32767 {
		t.Errorf("first frame %s", f)
	}
	if f := p.expect(apdu.IFrame); f.SendSN != 0 || f.RecvSN != 32767 {
		t.Errorf("second frame %s", f)
	}
	p.send(apdu.NewSFrame(1))
	eventually(t, func() bool { return s.pendingLen() == 0 }, "acknowledgement across wrap")

	p.send(apdu.NewIFrame(32767, 1, spontaneous(1)))
	p.send(apdu.NewIFrame(0, 1, spontaneous(2)))
	for i := 0; i < 2; i++ {
		select {
		case <-rec.asdus:
		case <-time.After(wait):
			t.Fatal("ASDU across wrap not delivered")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rcvSN != 1 {
		t.Errorf("rcvSN = %d, want 1", s.rcvSN)
	}
}

func TestWindowBlocksAtK(t *testing.T) {
	cfg := testConfig()
	cfg.SendUnAckLimitK = 2
	cfg.RecvUnAckLimitW = 1
	s, p, _ := started(t, cfg)
	for i := 0; i < 2; i++ {
		if err := s.Send(spontaneous(1)); err != nil {
			t.Fatal(err)
		}
		p.expect(apdu.IFrame)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.SendContext(ctx, spontaneous(3)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("SendContext with full window = %v", err)
	}

	sent := make(chan error, 1)
	go func() { sent <- s.Send(spontaneous(3)) }()
	p.expectNothing(50 * time.Millisecond)
	p.send(apdu.NewSFrame(1))
	if f := p.expect(apdu.IFrame); f.SendSN != 2 {
		t.Errorf("got %s", f)
	}
	if err := <-sent; err != nil {
		t.Error(err)
	}
}

func TestInvalidAckTearsDown(t *testing.T) {
	_, p, rec := started(t, testConfig())
	p.send(apdu.NewSFrame(5))
	if err := rec.waitLost(t); !errors.Is(err, ErrInvalidAck) {
		t.Errorf("lost with %v", err)
	}
}

func TestRejectedASDUKeepsConnection(t *testing.T) {
	s, p, rec := started(t, testConfig())
	// type 200 is not a standard type
	p.send(&apdu.Frame{Kind: apdu.IFrame, Payload: []byte{200, 0x01, 0x03, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x01}})
	p.send(apdu.NewIFrame(1, 0, spontaneous(7)))

	select {
	case err := <-rec.payload:
		if !errors.Is(err, asdu.ErrUnsupportedType) {
			t.Errorf("payload error %v", err)
		}
	case <-time.After(wait):
		t.Fatal("payload error not reported")
	}
	select {
	case a := <-rec.asdus:
		if a.Objects[0].Addr != 7 {
			t.Errorf("delivered %s", a)
		}
	case <-time.After(wait):
		t.Fatal("following ASDU not delivered")
	}
	if st := s.Stats(); st.RejectedASDUs != 1 || st.IFramesReceived != 2 {
		t.Errorf("stats %+v", st)
	}
	if !s.IsActive() {
		t.Error("session left data transfer")
	}
}

func TestEncodeErrorHasNoSideEffects(t *testing.T) {
	s, p, _ := started(t, testConfig())
	bad := spontaneous(1)
	bad.CommonAddr = asdu.InvalidCommonAddr
	if err := s.Send(bad); !errors.Is(err, asdu.ErrCommonAddrZero) {
		t.Fatalf("Send = %v", err)
	}
	p.expectNothing(50 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendSN != 0 || len(s.pending) != 0 {
		t.Errorf("sendSN %d pending %d", s.sendSN, len(s.pending))
	}
}

func TestStopDataTransfer(t *testing.T) {
	s, p, _ := started(t, testConfig())
	p.send(apdu.NewIFrame(0, 0, spontaneous(1)))
	eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rcvSN == 1
	}, "I-frame received")

	if err := s.StopDataTransfer(); err != nil {
		t.Fatal(err)
	}
	if f := p.expect(apdu.SFrame); f.RecvSN != 1 {
		t.Errorf("flush acknowledges %d", f.RecvSN)
	}
	p.expect(apdu.StopDTActive)
	if s.State() != StateStopping {
		t.Errorf("State() = %s", s.State())
	}
	if err := s.Send(spontaneous(1)); !errors.Is(err, ErrNotActive) {
		t.Errorf("Send while stopping = %v", err)
	}
	p.send(apdu.NewUFrame(apdu.StopDTConfirm))
	eventually(t, func() bool { return s.State() == StateStopped }, "STOPPED")
}

func TestPeerStopDataTransfer(t *testing.T) {
	s, p, _ := started(t, testConfig())
	p.send(apdu.NewUFrame(apdu.StopDTActive))
	p.expect(apdu.StopDTConfirm)
	if s.State() != StateStopped {
		t.Errorf("State() = %s", s.State())
	}
}

func TestCloseReportsNilCause(t *testing.T) {
	s, _, rec := newPair(t, Controlled, testConfig())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rec.waitLost(t); err != nil {
		t.Errorf("lost with %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(wait):
		t.Fatal("Serve did not return")
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v", s.Err())
	}
	if err := s.StartDataTransfer(); !errors.Is(err, ErrUseClosedConnection) {
		t.Errorf("StartDataTransfer after close = %v", err)
	}
}

func TestSharedSchedulerOutlivesSession(t *testing.T) {
	sched := timeout.New()
	sched.Start()
	defer sched.Stop()

	a, b := net.Pipe()
	defer b.Close()
	s := New(a, nil, NewOption().SetRole(Controlled).SetScheduler(sched))
	go func() { _ = s.Serve() }()
	_ = s.Close()
	<-s.Done()

	ran := make(chan struct{})
	sched.Schedule("probe", 0, func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(wait):
		t.Fatal("shared scheduler stopped with the session")
	}
}
