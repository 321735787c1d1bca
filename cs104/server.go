// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/session"
	"github.com/riclolsen/iec60870/timeout"
)

// Server is an IEC104 controlled station. Every accepted connection runs
// its own session; all sessions share one timer scheduler.
type Server struct {
	clog.Clog

	option  ServerOption
	handler session.Handler
	sched   *timeout.Scheduler

	mu       sync.Mutex
	listener net.Listener
	sessions map[*session.Session]struct{}
	closed   atomic.Bool
	accepted atomic.Int64
}

// NewServer creates a server. handler receives the events of every
// connection; wrap a session.ServerHandlerInterface in session.ServerHandler
// for typed command dispatch.
func NewServer(handler session.Handler, o *ServerOption) *Server {
	if o == nil {
		o = NewServerOption()
	}
	sf := &Server{
		Clog:     clog.NewLogger("cs104 server => "),
		option:   *o,
		handler:  handler,
		sched:    timeout.New(),
		sessions: make(map[*session.Session]struct{}),
	}
	if o.provider != nil {
		sf.SetLogProvider(o.provider)
		sf.LogMode(true)
		sf.sched.SetLogProvider(o.provider)
		sf.sched.LogMode(true)
	}
	return sf
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (sf *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return sf.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Close is called,
// then closes every session. It returns ErrServerClosed in both cases.
// A server serves once.
func (sf *Server) Serve(ctx context.Context, ln net.Listener) error {
	sf.mu.Lock()
	if sf.closed.Load() {
		sf.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	sf.listener = ln
	sf.mu.Unlock()
	sf.sched.Start()
	defer sf.sched.Stop()
	sf.Debug("listening on %s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		for _, s := range sf.Sessions() {
			_ = s.Close()
		}
		return nil
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if sf.closed.Load() || gctx.Err() != nil {
					return ErrServerClosed
				}
				return err
			}
			s, err := sf.open(conn)
			if err != nil {
				sf.Warn("reject %s: %v", conn.RemoteAddr(), err)
				_ = conn.Close()
				continue
			}
			g.Go(func() error {
				err := s.Serve()
				sf.mu.Lock()
				delete(sf.sessions, s)
				sf.mu.Unlock()
				sf.Debug("client %s gone: %v", conn.RemoteAddr(), err)
				return nil
			})
		}
	})
	err := g.Wait()
	sf.closed.Store(true)
	return err
}

func (sf *Server) open(conn net.Conn) (*session.Session, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.option.maxConnections > 0 && len(sf.sessions) >= sf.option.maxConnections {
		return nil, ErrTooManyClients
	}
	o := session.NewOption().
		SetRole(session.Controlled).
		SetConfig(sf.option.config).
		SetParams(&sf.option.params).
		SetScheduler(sf.sched).
		SetNumber(int(sf.accepted.Inc()))
	if sf.option.provider != nil {
		o.SetLogProvider(sf.option.provider)
	}
	s := session.New(conn, sf.handler, o)
	sf.sessions[s] = struct{}{}
	sf.Debug("client %s connected", conn.RemoteAddr())
	return s, nil
}

// Sessions returns the open sessions.
func (sf *Server) Sessions() []*session.Session {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	r := make([]*session.Session, 0, len(sf.sessions))
	for s := range sf.sessions {
		r = append(r, s)
	}
	return r
}

// Send broadcasts a to every session in data transfer. A session whose
// window stays full for t1 is given up with context.DeadlineExceeded.
func (sf *Server) Send(a *asdu.ASDU) error {
	ctx, cancel := context.WithTimeout(context.Background(), sf.option.config.SendUnAckTimeout1)
	defer cancel()
	return sf.SendContext(ctx, a)
}

// SendContext broadcasts a to every session in data transfer at once,
// ctx bounding the wait for each session's window.
func (sf *Server) SendContext(ctx context.Context, a *asdu.ASDU) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		sent atomic.Int64
	)
	for _, s := range sf.Sessions() {
		if !s.IsActive() {
			continue
		}
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			if err := s.SendContext(ctx, a); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			sent.Inc()
		}(s)
	}
	wg.Wait()
	if sent.Load() == 0 && len(errs) == 0 {
		return session.ErrNotActive
	}
	return errors.Join(errs...)
}

// Params returns the ASDU layout of the sessions.
func (sf *Server) Params() *asdu.Params {
	p := sf.option.params
	return &p
}

// Close stops accepting and closes every session.
func (sf *Server) Close() error {
	sf.closed.Store(true)
	sf.mu.Lock()
	ln := sf.listener
	sf.mu.Unlock()
	if ln != nil {
		return ln.Close()
	}
	return nil
}
