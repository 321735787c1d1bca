// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package mqttbridge publishes the monitoring data received by a station
// to an MQTT broker, one JSON message per ASDU.
package mqttbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/session"
)

// ErrPublishTimeout is returned when the broker does not complete a publish
// within Options.Timeout.
var ErrPublishTimeout = errors.New("mqtt publish timeout")

// DefaultTimeout bounds connect and publish.
const DefaultTimeout = 10 * time.Second

// Options configures the bridge.
type Options struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string // random when empty
	Username string
	Password string
	// Topic prefix. Messages go to <Topic>/<common address>/<type id>.
	Topic   string
	QoS     byte
	Retain  bool
	Timeout time.Duration
	// Station is copied into every message.
	Station string
}

// Publisher is the part of mqtt.Client the bridge uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect connects an MQTT client to o.Broker. The client retries the
// connection and reconnects on its own.
func Connect(o Options) (mqtt.Client, error) {
	if o.ClientID == "" {
		o.ClientID = "iecp5-" + uuid.NewString()
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", o.Broker, err)
	}
	return client, nil
}

// Bridge converts monitoring ASDUs to messages and publishes them.
type Bridge struct {
	clog.Clog

	pub Publisher
	opt Options
	now func() time.Time

	published atomic.Uint64
	failed    atomic.Uint64
}

// New returns a bridge publishing through pub.
func New(pub Publisher, o Options) *Bridge {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Topic == "" {
		o.Topic = "iec60870"
	}
	return &Bridge{
		Clog: clog.NewLogger("mqtt => "),
		pub:  pub,
		opt:  o,
		now:  time.Now,
	}
}

// Topic returns the topic a is published to.
func (sf *Bridge) Topic(a *asdu.ASDU) string {
	return fmt.Sprintf("%s/%d/%s", sf.opt.Topic, a.CommonAddr, a.Type.Name())
}

// Message converts a. The message id is a fresh UUID.
func (sf *Bridge) Message(a *asdu.ASDU) (*Message, error) {
	pts, err := points(a)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:         uuid.NewString(),
		Station:    sf.opt.Station,
		Type:       a.Type.Name(),
		Cause:      a.Coa.Cause.String(),
		Test:       a.Coa.IsTest,
		CommonAddr: uint16(a.CommonAddr),
		Received:   sf.now().UTC(),
		Points:     pts,
	}, nil
}

// Forward publishes a if it carries monitoring data; other ASDUs are
// skipped and reported as not forwarded.
func (sf *Bridge) Forward(a *asdu.ASDU) (bool, error) {
	if !a.Type.IsMonitor() || a.Coa.IsNegative {
		return false, nil
	}
	msg, err := sf.Message(a)
	if err != nil {
		sf.failed.Inc()
		return false, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		sf.failed.Inc()
		return false, err
	}
	tok := sf.pub.Publish(sf.Topic(a), sf.opt.QoS, sf.opt.Retain, body)
	if !tok.WaitTimeout(sf.opt.Timeout) {
		sf.failed.Inc()
		return false, ErrPublishTimeout
	}
	if err = tok.Error(); err != nil {
		sf.failed.Inc()
		return false, err
	}
	sf.published.Inc()
	return true, nil
}

// Stats returns the number of published and failed messages.
func (sf *Bridge) Stats() (published, failed uint64) {
	return sf.published.Load(), sf.failed.Load()
}

// Wrap returns a handler that forwards every received ASDU before passing
// it to next. Publish errors are logged, they never reach the session.
func (sf *Bridge) Wrap(next session.Handler) session.Handler {
	if next == nil {
		next = session.HandlerFuncs{}
	}
	return &handler{bridge: sf, next: next}
}

type handler struct {
	bridge *Bridge
	next   session.Handler
}

func (h *handler) ConnectionReady(s *session.Session) {
	h.next.ConnectionReady(s)
}

func (h *handler) ASDUReceived(s *session.Session, a *asdu.ASDU) {
	if _, err := h.bridge.Forward(a); err != nil {
		h.bridge.Warn("forward %s: %v", a.Identifier, err)
	}
	h.next.ASDUReceived(s, a)
}

func (h *handler) ConnectionLost(s *session.Session, err error) {
	h.next.ConnectionLost(s, err)
}

func (h *handler) PayloadError(s *session.Session, a *asdu.ASDU, err error) {
	if p, ok := h.next.(session.PayloadErrorHandler); ok {
		p.PayloadError(s, a, err)
	}
}
