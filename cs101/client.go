// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package cs101 runs IEC 60870-5-101 stations over a balanced FT1.2 serial
// line. The APDUs of the session layer travel as FT1.2 user data, so both
// sides keep the sequence window and timers of the 104 profile.
package cs101

import (
	"context"
	"io"

	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/session"
)

// Client is the controlling station of a serial line.
type Client struct {
	*session.Station
	option Option
	link   atomic.Pointer[Link]
}

// NewClient creates a client. It opens the port and starts data transfer
// on Start.
func NewClient(handler session.Handler, o *Option) *Client {
	sf := &Client{}
	sf.Station = newStation(&sf.option, &sf.link, session.Controlling, handler, o)
	return sf
}

// Link returns the link of the current connection, nil before the first one.
func (sf *Client) Link() *Link {
	return sf.link.Load()
}

// newStation wires a station whose dialer opens the serial port and wraps
// it in a Link.
func newStation(dst *Option, cur *atomic.Pointer[Link], role session.Role, handler session.Handler, o *Option) *session.Station {
	if o == nil {
		o = NewOption()
	}
	*dst = *o
	opt := dst
	sopt := session.NewOption().
		SetRole(role).
		SetConfig(opt.session).
		SetParams(&opt.params)
	if opt.provider != nil {
		sopt.SetLogProvider(opt.provider)
	}
	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		port, err := opt.open(opt.config.Serial)
		if err != nil {
			return nil, err
		}
		l := NewLink(port, opt.config, role == session.Controlling)
		if opt.provider != nil {
			l.SetLogProvider(opt.provider)
			l.LogMode(true)
		}
		cur.Store(l)
		return l, nil
	}
	return session.NewStation(dial, handler, sopt).
		SetAutoReconnect(opt.autoReconnect).
		SetReconnectInterval(opt.reconnectInterval)
}
