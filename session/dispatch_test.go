// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/riclolsen/iec60870/apdu"
	"github.com/riclolsen/iec60870/asdu"
)

type serverCalls struct {
	calls []string
	qoi   asdu.QualifierOfInterrogation
	qcc   asdu.QualifierCountCall
	ioa   asdu.InfoObjAddr
	clock time.Time
	delay uint16
	all   int
}

func (h *serverCalls) InterrogationHandler(_ *Session, _ *asdu.ASDU, q asdu.QualifierOfInterrogation) error {
	h.calls, h.qoi = append(h.calls, "interrogation"), q
	return nil
}

func (h *serverCalls) CounterInterrogationHandler(_ *Session, _ *asdu.ASDU, q asdu.QualifierCountCall) error {
	h.calls, h.qcc = append(h.calls, "counter"), q
	return nil
}

func (h *serverCalls) ReadHandler(_ *Session, _ *asdu.ASDU, ioa asdu.InfoObjAddr) error {
	h.calls, h.ioa = append(h.calls, "read"), ioa
	return nil
}

func (h *serverCalls) ClockSyncHandler(_ *Session, _ *asdu.ASDU, t time.Time) error {
	h.calls, h.clock = append(h.calls, "clock"), t
	return nil
}

func (h *serverCalls) ResetProcessHandler(*Session, *asdu.ASDU, asdu.QualifierOfResetProcessCmd) error {
	h.calls = append(h.calls, "reset")
	return nil
}

func (h *serverCalls) DelayAcquisitionHandler(_ *Session, _ *asdu.ASDU, d uint16) error {
	h.calls, h.delay = append(h.calls, "delay"), d
	return nil
}

func (h *serverCalls) ASDUHandler(*Session, *asdu.ASDU) error {
	h.calls = append(h.calls, "asdu")
	return nil
}

func (h *serverCalls) ASDUHandlerAll(*Session, *asdu.ASDU) error {
	h.all++
	return nil
}

type clientCalls struct {
	calls []string
}

func (h *clientCalls) add(name string) error {
	h.calls = append(h.calls, name)
	return nil
}

func (h *clientCalls) InterrogationHandler(*Session, *asdu.ASDU) error {
	return h.add("interrogation")
}

func (h *clientCalls) CounterInterrogationHandler(*Session, *asdu.ASDU) error {
	return h.add("counter")
}

func (h *clientCalls) ReadHandler(*Session, *asdu.ASDU) error {
	return h.add("read")
}

func (h *clientCalls) TestCommandHandler(*Session, *asdu.ASDU) error {
	return h.add("test")
}

func (h *clientCalls) ClockSyncHandler(*Session, *asdu.ASDU) error {
	return h.add("clock")
}

func (h *clientCalls) ResetProcessHandler(*Session, *asdu.ASDU) error {
	return h.add("reset")
}

func (h *clientCalls) DelayAcquisitionHandler(*Session, *asdu.ASDU) error {
	return h.add("delay")
}

func (h *clientCalls) ASDUHandler(*Session, *asdu.ASDU) error {
	return h.add("asdu")
}

func detached(t *testing.T) *Session {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return New(a, nil, nil)
}

func command(typeID asdu.TypeID, cause asdu.Cause, ioa asdu.InfoObjAddr, elems ...asdu.Element) *asdu.ASDU {
	return asdu.NewASDU(asdu.ParamsWide, asdu.Identifier{
		Type:       typeID,
		Coa:        asdu.CauseOfTransmission{Cause: cause},
		CommonAddr: 1,
	}).AddObject(ioa, elems...)
}

func TestDispatchServer(t *testing.T) {
	s := detached(t)
	h := &serverCalls{}
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	inputs := []*asdu.ASDU{
		command(asdu.C_IC_NA_1, asdu.Activation, 0, asdu.QOIStation),
		command(asdu.C_CI_NA_1, asdu.Activation, 0, asdu.QualifierCountCall{Request: asdu.QCCTotal}),
		command(asdu.C_RD_NA_1, asdu.Request, 4711),
		command(asdu.C_CS_NA_1, asdu.Activation, 0, asdu.NewTime56(when, time.UTC)),
		command(asdu.C_RP_NA_1, asdu.Activation, 0, asdu.QRPGeneralRest),
		command(asdu.C_CD_NA_1, asdu.Activation, 0, asdu.Time16(250)),
		command(asdu.C_SC_NA_1, asdu.Activation, 100, asdu.SingleCommand{Value: true}),
	}
	for _, a := range inputs {
		if err := DispatchServer(s, h, a); err != nil {
			t.Errorf("DispatchServer(%s) = %v", a.Type, err)
		}
	}
	want := []string{"interrogation", "counter", "read", "clock", "reset", "delay", "asdu"}
	if len(h.calls) != len(want) {
		t.Fatalf("calls = %v", h.calls)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, h.calls[i], want[i])
		}
	}
	if h.qoi != asdu.QOIStation || h.qcc.Request != asdu.QCCTotal || h.ioa != 4711 ||
		!h.clock.Equal(when) || h.delay != 250 {
		t.Errorf("arguments %+v", h)
	}
	if h.all != len(inputs) {
		t.Errorf("ASDUHandlerAll called %d times", h.all)
	}

	empty := asdu.NewASDU(asdu.ParamsWide, asdu.Identifier{Type: asdu.C_IC_NA_1, CommonAddr: 1})
	if err := DispatchServer(s, h, empty); !errors.Is(err, asdu.ErrNotAnyObjInfo) {
		t.Errorf("DispatchServer without object = %v", err)
	}
}

type panicky struct{ serverCalls }

func (panicky) ASDUHandler(*Session, *asdu.ASDU) error { panic("boom") }

func TestDispatchServerRecoversPanic(t *testing.T) {
	s := detached(t)
	err := DispatchServer(s, &panicky{}, command(asdu.C_SC_NA_1, asdu.Activation, 1, asdu.SingleCommand{}))
	if err == nil {
		t.Error("panic not reported")
	}
}

func TestDispatchClient(t *testing.T) {
	s := detached(t)
	tests := []struct {
		a    *asdu.ASDU
		want string
	}{
		{command(asdu.M_SP_NA_1, asdu.InterrogatedByStation, 1, asdu.SinglePointInfo{}), "interrogation"},
		{command(asdu.M_ME_NC_1, asdu.InterrogatedByGroup1+2, 1, asdu.ShortFloat(1), asdu.QDSGood), "interrogation"},
		{command(asdu.M_IT_NA_1, asdu.RequestByGeneralCounter, 1, asdu.BinaryCounterReading{}), "counter"},
		{command(asdu.C_IC_NA_1, asdu.ActivationCon, 0, asdu.QOIStation), "interrogation"},
		{command(asdu.C_IC_NA_1, asdu.ActivationTerm, 0, asdu.QOIStation), "interrogation"},
		{command(asdu.C_CS_NA_1, asdu.ActivationCon, 0, asdu.NewTime56(time.Now(), time.UTC)), "clock"},
		{command(asdu.C_TS_NA_1, asdu.ActivationCon, 0, asdu.TestPattern), "test"},
		{command(asdu.C_SC_NA_1, asdu.ActivationCon, 5, asdu.SingleCommand{}), "asdu"},
		{command(asdu.M_SP_NA_1, asdu.Request, 9, asdu.SinglePointInfo{}), "read"},
		{command(asdu.M_SP_NA_1, asdu.Spontaneous, 9, asdu.SinglePointInfo{}), "asdu"},
		{command(asdu.M_EI_NA_1, asdu.Initialized, 0, asdu.CauseOfInitial{}), "asdu"},
	}
	for _, tt := range tests {
		h := &clientCalls{}
		if err := DispatchClient(s, h, tt.a); err != nil {
			t.Errorf("DispatchClient(%s) = %v", tt.a.Identifier, err)
		}
		if len(h.calls) != 1 || h.calls[0] != tt.want {
			t.Errorf("%s dispatched to %v, want %s", tt.a.Identifier, h.calls, tt.want)
		}
	}
}

func TestCommandsOnTheWire(t *testing.T) {
	s, p, _ := started(t, testConfig())
	cot := asdu.CauseOfTransmission{Cause: asdu.Activation}

	if err := s.InterrogationCmd(cot, 1, asdu.QOIStation); err != nil {
		t.Fatal(err)
	}
	f := p.expect(apdu.IFrame)
	if f.ASDU.Type != asdu.C_IC_NA_1 || f.ASDU.CommonAddr != 1 {
		t.Errorf("got %s", f.ASDU)
	}
	if _, el, ok := f.ASDU.Element(0); !ok || el != asdu.QOIStation {
		t.Errorf("QOI = %v", el)
	}

	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.SingleCmd(cot, 1, 100, asdu.SingleCommand{Value: true, Select: true}, when); err != nil {
		t.Fatal(err)
	}
	f = p.expect(apdu.IFrame)
	if f.ASDU.Type != asdu.C_SC_TA_1 {
		t.Fatalf("got %s", f.ASDU)
	}
	addr, el, _ := f.ASDU.Element(0)
	if sc, ok := el.(asdu.SingleCommand); addr != 100 || !ok || !sc.Value || !sc.Select {
		t.Errorf("SCO %v at %d", el, addr)
	}
	if _, el, _ = f.ASDU.Element(1); !el.(asdu.Time56).Time.Equal(when) {
		t.Errorf("time tag %v", el)
	}

	if err := s.SetpointFloatCmd(cot, 1, 200, 12.5, asdu.SetpointQualifier{}, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if f = p.expect(apdu.IFrame); f.ASDU.Type != asdu.C_SE_NC_1 {
		t.Errorf("got %s", f.ASDU)
	}

	if err := s.ReadCmd(asdu.CauseOfTransmission{Cause: asdu.Request}, 1, 300); err != nil {
		t.Fatal(err)
	}
	if f = p.expect(apdu.IFrame); f.ASDU.Type != asdu.C_RD_NA_1 || f.ASDU.Objects[0].Addr != 300 {
		t.Errorf("got %s", f.ASDU)
	}
}
