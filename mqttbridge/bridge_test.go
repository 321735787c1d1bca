// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package mqttbridge

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/session"
)

type token struct {
	err     error
	pending bool
}

func (t token) Wait() bool                     { return !t.pending }
func (t token) WaitTimeout(time.Duration) bool { return !t.pending }
func (t token) Error() error                   { return t.err }
func (t token) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type broker struct {
	msgs []published
	tok  token
}

func (b *broker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.msgs = append(b.msgs, published{topic, qos, retained, payload.([]byte)})
	return b.tok
}

func monitor(typeID asdu.TypeID, cause asdu.Cause) *asdu.ASDU {
	return asdu.NewASDU(asdu.ParamsWide, asdu.Identifier{
		Type:       typeID,
		Coa:        asdu.CauseOfTransmission{Cause: cause},
		CommonAddr: 3,
	})
}

func TestForward(t *testing.T) {
	b := &broker{}
	br := New(b, Options{Topic: "plant", QoS: 1, Retain: true, Station: "rtu1"})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	br.now = func() time.Time { return fixed }

	tag := time.Date(2024, 5, 1, 11, 59, 59, 500e6, time.UTC)
	a := monitor(asdu.M_ME_TF_1, asdu.Spontaneous).
		AddObject(100, asdu.ShortFloat(21.5), asdu.QDSGood, asdu.NewTime56(tag, time.UTC)).
		AddObject(101, asdu.ShortFloat(-1), asdu.QDSInvalid|asdu.QDSNotTopical, asdu.NewTime56(tag, time.UTC))
	ok, err := br.Forward(a)
	if err != nil || !ok {
		t.Fatalf("Forward() = %v, %v", ok, err)
	}
	if len(b.msgs) != 1 {
		t.Fatalf("%d messages", len(b.msgs))
	}
	m := b.msgs[0]
	if m.topic != "plant/3/M_ME_TF_1" || m.qos != 1 || !m.retain {
		t.Errorf("published to %s qos %d retain %v", m.topic, m.qos, m.retain)
	}

	var msg Message
	if err = json.Unmarshal(m.payload, &msg); err != nil {
		t.Fatal(err)
	}
	if _, err = uuid.Parse(msg.ID); err != nil {
		t.Errorf("message id %q: %v", msg.ID, err)
	}
	if msg.Station != "rtu1" || msg.Type != "M_ME_TF_1" || msg.Cause != asdu.Spontaneous.String() ||
		msg.CommonAddr != 3 || !msg.Received.Equal(fixed) {
		t.Errorf("header %+v", msg)
	}
	if len(msg.Points) != 2 {
		t.Fatalf("points %+v", msg.Points)
	}
	p := msg.Points[0]
	if p.IOA != 100 || p.Value != 21.5 || p.Quality != 0 || p.Invalid || p.Time == nil || !p.Time.Equal(tag) {
		t.Errorf("first point %+v", p)
	}
	if p = msg.Points[1]; p.IOA != 101 || p.Value != -1 || !p.Invalid || p.Quality != uint8(asdu.QDSInvalid|asdu.QDSNotTopical) {
		t.Errorf("second point %+v", p)
	}
	if n, f := br.Stats(); n != 1 || f != 0 {
		t.Errorf("Stats() = %d, %d", n, f)
	}
}

func TestPoints(t *testing.T) {
	seq := monitor(asdu.M_SP_NA_1, asdu.InterrogatedByStation).SetSequence(10,
		[]asdu.Element{asdu.SinglePointInfo{Value: true}},
		[]asdu.Element{asdu.SinglePointInfo{Value: false, Qds: asdu.QDSBlocked}},
	)
	pts, err := points(seq)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2 || pts[0].IOA != 10 || pts[0].Value != 1 || pts[1].IOA != 11 || pts[1].Value != 0 ||
		pts[1].Quality != uint8(asdu.QDSBlocked) {
		t.Errorf("sequence points %+v", pts)
	}

	tests := []struct {
		el   asdu.Element
		want float64
	}{
		{asdu.DoublePointInfo{Value: asdu.DPIDeterminedOn}, 2},
		{asdu.ScaledValue(-300), -300},
		{asdu.NormalizedValue(-32768), -1},
		{asdu.BinaryCounterReading{Value: 123456}, 123456},
		{asdu.CauseOfInitial{Cause: 2}, 2},
	}
	for _, tt := range tests {
		var p Point
		if err := p.set(tt.el); err != nil || p.Value != tt.want {
			t.Errorf("set(%v) = %v, %v", tt.el, p.Value, err)
		}
	}
	var p Point
	if err := p.set(asdu.BinaryCounterReading{Flags: asdu.CounterInvalid}); err != nil || !p.Invalid {
		t.Errorf("invalid counter: %+v %v", p, err)
	}
	if err := p.set(asdu.QOIStation); err == nil {
		t.Error("command element accepted")
	}
}

func TestForwardSkipsAndFails(t *testing.T) {
	b := &broker{}
	br := New(b, Options{})
	cmd := monitor(asdu.C_IC_NA_1, asdu.ActivationCon).AddObject(0, asdu.QOIStation)
	if ok, err := br.Forward(cmd); ok || err != nil {
		t.Errorf("command forwarded: %v %v", ok, err)
	}
	neg := monitor(asdu.M_SP_NA_1, asdu.UnknownIOA).AddObject(1, asdu.SinglePointInfo{})
	neg.Coa.IsNegative = true
	if ok, _ := br.Forward(neg); ok {
		t.Error("negative confirmation forwarded")
	}
	if len(b.msgs) != 0 {
		t.Errorf("published %d", len(b.msgs))
	}

	b.tok = token{pending: true}
	sp := monitor(asdu.M_SP_NA_1, asdu.Spontaneous).AddObject(1, asdu.SinglePointInfo{})
	if _, err := br.Forward(sp); !errors.Is(err, ErrPublishTimeout) {
		t.Errorf("pending publish: %v", err)
	}
	b.tok = token{err: errors.New("not connected")}
	if _, err := br.Forward(sp); err == nil {
		t.Error("publish error lost")
	}
	if n, f := br.Stats(); n != 0 || f != 2 {
		t.Errorf("Stats() = %d, %d", n, f)
	}
	if got := br.Topic(sp); got != "iec60870/3/M_SP_NA_1" {
		t.Errorf("default topic %s", got)
	}
}

func TestWrap(t *testing.T) {
	b := &broker{}
	var got []*asdu.ASDU
	var payloadErrs int
	h := New(b, Options{}).Wrap(session.HandlerFuncs{
		OnASDU:         func(_ *session.Session, a *asdu.ASDU) { got = append(got, a) },
		OnPayloadError: func(*session.Session, *asdu.ASDU, error) { payloadErrs++ },
	})
	sp := monitor(asdu.M_SP_NA_1, asdu.Spontaneous).AddObject(1, asdu.SinglePointInfo{Value: true})
	h.ASDUReceived(nil, sp)
	cmd := monitor(asdu.C_IC_NA_1, asdu.ActivationCon).AddObject(0, asdu.QOIStation)
	h.ASDUReceived(nil, cmd)
	if len(got) != 2 || len(b.msgs) != 1 {
		t.Errorf("next got %d, broker got %d", len(got), len(b.msgs))
	}
	h.(session.PayloadErrorHandler).PayloadError(nil, sp, errors.New("bad"))
	if payloadErrs != 1 {
		t.Error("payload error not passed on")
	}
}
