// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/config"
	"github.com/riclolsen/iec60870/cs104"
)

// pollFlags are shared by the controlling commands.
type pollFlags struct {
	ca       uint16
	interval time.Duration
	counters bool
}

func (p *pollFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint16Var(&p.ca, "ca", 0, "common address to interrogate (station file when 0)")
	cmd.Flags().DurationVar(&p.interval, "interval", 0, "repeat the general interrogation at this period")
	cmd.Flags().BoolVar(&p.counters, "counters", false, "also send counter interrogations")
}

func (p *pollFlags) commonAddr(f *config.File) asdu.CommonAddr {
	if p.ca != 0 {
		return asdu.CommonAddr(p.ca)
	}
	return f.CommonAddress()
}

func newClientCmd(ro *rootOptions) *cobra.Command {
	var (
		servers []string
		pf      pollFlags
	)
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a 104 controlled station and interrogate it",
		Example: `  iecp5 client --server 192.168.0.10 --interval 1m
  iecp5 client -c station.yaml --server primary:2404 --server backup:2404`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ro.load()
			if err != nil {
				return err
			}
			if len(servers) > 0 {
				f.TCP.Servers = servers
			}
			o, err := f.ClientOption()
			if err != nil {
				return err
			}
			log := f.Logger()

			ready := make(chan struct{}, 1)
			h, closeBridge, err := clientHandler(f, log, strings.Join(f.TCP.Servers, ","), ready)
			if err != nil {
				return err
			}
			defer closeBridge()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			c := cs104.NewClient(h, o)
			c.SetConnectErrorHandler(func(err error) {
				log.WithError(err).Warn("connect failed")
			})
			if err = c.Start(); err != nil {
				return err
			}
			defer c.Close()
			log.WithField("servers", f.TCP.Servers).Info("client running, Ctrl+C to exit")
			poll(ctx, c, ready, pf.commonAddr(f), pf.interval, pf.counters, log)
			log.Info("shutting down")
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&servers, "server", "s", nil, "server address, repeat for backups")
	pf.register(cmd)
	return cmd
}
