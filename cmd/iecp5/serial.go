// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/riclolsen/iec60870/config"
	"github.com/riclolsen/iec60870/cs101"
	"github.com/riclolsen/iec60870/session"
)

// serialFlags override the serial section of the station file.
type serialFlags struct {
	port        string
	baud        int
	parity      string
	stopBits    string
	linkAddress uint16
}

func (p *serialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.port, "port", "p", "", "serial port, e.g. /dev/ttyUSB0 or COM3")
	cmd.Flags().IntVar(&p.baud, "baud", 0, "baud rate (default 9600)")
	cmd.Flags().StringVar(&p.parity, "parity", "", "none, odd, even, mark or space (default even)")
	cmd.Flags().StringVar(&p.stopBits, "stop-bits", "", "1, 1.5 or 2 (default 1)")
	cmd.Flags().Uint16Var(&p.linkAddress, "link-address", 0, "link address (default 1)")
}

func (p *serialFlags) apply(f *config.File) {
	s := &f.Serial
	if p.port != "" {
		s.Port = p.port
	}
	if p.baud != 0 {
		s.BaudRate = p.baud
	}
	if p.parity != "" {
		s.Parity = p.parity
	}
	if p.stopBits != "" {
		s.StopBits = p.stopBits
	}
	if p.linkAddress != 0 {
		s.LinkAddress = config.Address(p.linkAddress)
	}
}

// logStats reports the counters of the current link when it goes down.
func logStats(link func() *cs101.Link, log logrus.FieldLogger) func(*session.Session, error) {
	return func(_ *session.Session, err error) {
		entry := log.WithError(err)
		if l := link(); l != nil {
			st := l.Stats()
			entry = entry.WithFields(logrus.Fields{
				"received": st.Received,
				"sent":     st.Sent,
				"filtered": st.Filtered,
				"dropped":  st.Dropped,
				"answered": st.Answered,
			})
		}
		entry.Warn("serial link lost")
	}
}

func newSerialCmd(ro *rootOptions, use string, controlling bool) *cobra.Command {
	var (
		sp serialFlags
		pf pollFlags
		of outstationFlags
	)
	cmd := &cobra.Command{
		Use:  use,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ro.load()
			if err != nil {
				return err
			}
			sp.apply(f)
			o, err := f.SerialOption()
			if err != nil {
				return err
			}
			cfg := o.Config()
			log := f.Logger().WithField("port", cfg.Serial.String())
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if controlling {
				return runSerialClient(ctx, f, o, &pf, log)
			}
			return runSerialServer(ctx, f, o, &of, log)
		},
	}
	sp.register(cmd)
	if controlling {
		cmd.Short = "Interrogate a 101 controlled station over a serial line"
		cmd.Example = "  iecp5 serial-client --port /dev/ttyUSB0 --baud 19200 --link-address 3"
		pf.register(cmd)
	} else {
		cmd.Short = "Run a demo 101 controlled station on a serial line"
		of.register(cmd)
	}
	return cmd
}

func runSerialClient(ctx context.Context, f *config.File, o *cs101.Option, pf *pollFlags, log *logrus.Entry) error {
	ready := make(chan struct{}, 1)
	h, closeBridge, err := clientHandler(f, log, o.Config().Serial.Address, ready)
	if err != nil {
		return err
	}
	defer closeBridge()

	c := cs101.NewClient(h, o)
	c.SetConnectionLostHandler(logStats(c.Link, log))
	c.SetConnectErrorHandler(func(err error) {
		log.WithError(err).Warn("open failed")
	})
	if err = c.Start(); err != nil {
		return err
	}
	defer c.Close()
	log.Info("serial client running, Ctrl+C to exit")
	poll(ctx, c, ready, pf.commonAddr(f), pf.interval, pf.counters, log)
	return nil
}

func runSerialServer(ctx context.Context, f *config.File, o *cs101.Option, of *outstationFlags, log *logrus.Entry) error {
	p, err := f.SerialParams()
	if err != nil {
		return err
	}
	ost := newOutstation(p, of.commonAddr(f), log)
	srv := cs101.NewServer(serverHandler(ost, log, f.LogProvider("outstation")), o)
	srv.SetConnectionLostHandler(logStats(srv.Link, log))
	if err = srv.Start(); err != nil {
		return err
	}
	defer srv.Close()
	log.Info("serial server running, Ctrl+C to exit")
	ost.simulate(ctx, srv, of.period)
	return nil
}
