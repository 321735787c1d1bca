// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riclolsen/iec60870/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "iecp5",
		Short:        "IEC 60870-5-101/104 stations",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&ro.configPath, "config", "c", "", "station file (YAML)")
	cmd.PersistentFlags().BoolVarP(&ro.verbose, "verbose", "v", false, "log link and session events at debug level")

	cmd.AddCommand(
		newClientCmd(ro),
		newServerCmd(ro),
		newSerialCmd(ro, "serial-client", true),
		newSerialCmd(ro, "serial-server", false),
	)
	return cmd
}

// load reads the station file, or starts from the defaults without one.
func (ro *rootOptions) load() (*config.File, error) {
	var (
		f   *config.File
		err error
	)
	if ro.configPath == "" {
		f, err = config.Parse(nil)
	} else {
		f, err = config.Load(ro.configPath)
	}
	if err != nil {
		return nil, err
	}
	if ro.verbose {
		f.Log.Enabled = true
		f.Log.Level = "debug"
	}
	return f, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
