// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package cs104 runs IEC 60870-5-104 stations over TCP: a client that
// dials a primary and backup servers and reconnects, and a server that
// serves any number of clients.
package cs104

import (
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/session"
)

// Client is an IEC104 controlling station.
type Client struct {
	*session.Station
	option ClientOption
	remote atomic.String
}

// NewClient creates a client. Add at least one server to o before Start.
func NewClient(handler session.Handler, o *ClientOption) *Client {
	if o == nil {
		o = NewOption()
	}
	sf := &Client{option: *o}
	sopt := session.NewOption().
		SetRole(session.Controlling).
		SetConfig(sf.option.config).
		SetParams(&sf.option.params)
	if sf.option.provider != nil {
		sopt.SetLogProvider(sf.option.provider)
	}
	sf.Station = session.NewStation(sf.dial, handler, sopt).
		SetAutoReconnect(sf.option.autoReconnect).
		SetReconnectInterval(sf.option.reconnectInterval)
	return sf
}

// RemoteServer returns the address of the current or last connection.
func (sf *Client) RemoteServer() string {
	return sf.remote.Load()
}

// dial tries the servers in order, bounding each attempt by t0.
func (sf *Client) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if len(sf.option.servers) == 0 {
		return nil, ErrNoRemoteServer
	}
	d := net.Dialer{Timeout: sf.option.config.ConnectTimeout0}
	var errs []error
	for _, addr := range sf.option.servers {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			sf.remote.Store(addr)
			sf.Debug("connected to %s", addr)
			return conn, nil
		}
		sf.Warn("dial %s: %v", addr, err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}
