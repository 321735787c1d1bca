// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/config"
	"github.com/riclolsen/iec60870/cs104"
	"github.com/riclolsen/iec60870/session"
)

// outstationFlags are shared by the controlled station commands.
type outstationFlags struct {
	ca     uint16
	period time.Duration
}

func (p *outstationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint16Var(&p.ca, "ca", 0, "own common address (station file when 0)")
	cmd.Flags().DurationVar(&p.period, "period", 5*time.Second, "period of the spontaneous measurand reports")
}

func (p *outstationFlags) commonAddr(f *config.File) asdu.CommonAddr {
	if p.ca != 0 {
		return asdu.CommonAddr(p.ca)
	}
	return f.CommonAddress()
}

// serverHandler wraps o with connection logging.
func serverHandler(o *outstation, log logrus.FieldLogger, provider clog.LogProvider) session.Handler {
	l := clog.NewLogger("outstation => ")
	l.SetLogProvider(provider)
	l.LogMode(true)
	return session.ServerHandler{
		ServerHandlerInterface: o,
		Logger:                 &l,
		OnReady: func(s *session.Session) {
			log.Info("data transfer started")
		},
		OnLost: func(s *session.Session, err error) {
			log.WithError(err).Info("connection closed")
		},
	}
}

func newServerCmd(ro *rootOptions) *cobra.Command {
	var (
		listen  string
		maxConn int
		of      outstationFlags
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run a demo 104 controlled station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ro.load()
			if err != nil {
				return err
			}
			if listen != "" {
				f.TCP.Listen = listen
			}
			if cmd.Flags().Changed("max-connections") {
				f.TCP.MaxConnections = maxConn
			}
			o, addr, err := f.ServerOption()
			if err != nil {
				return err
			}
			log := f.Logger()
			p, err := f.Params()
			if err != nil {
				return err
			}

			ost := newOutstation(p, of.commonAddr(f), log)
			srv := cs104.NewServer(serverHandler(ost, log, f.LogProvider("outstation")), o)
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			go ost.simulate(ctx, srv, of.period)

			log.WithField("addr", addr).Info("server listening, Ctrl+C to exit")
			err = srv.ListenAndServe(ctx, addr)
			if errors.Is(err, cs104.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default :2404)")
	cmd.Flags().IntVar(&maxConn, "max-connections", 0, "limit concurrent connections, 0 for no limit")
	of.register(cmd)
	return cmd
}
