// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/session"
)

// Server is the controlled station of a serial line. It opens the port on
// Start and waits for the client to start data transfer. Wrap a
// session.ServerHandlerInterface in session.ServerHandler for typed command
// dispatch.
type Server struct {
	*session.Station
	option Option
	link   atomic.Pointer[Link]
}

// NewServer creates a server.
func NewServer(handler session.Handler, o *Option) *Server {
	sf := &Server{}
	sf.Station = newStation(&sf.option, &sf.link, session.Controlled, handler, o)
	return sf
}

// Link returns the link of the current connection, nil before the first one.
func (sf *Server) Link() *Link {
	return sf.link.Load()
}
