// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"time"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/session"
)

// Option configures a serial station, either side of the line.
type Option struct {
	config            Config
	session           session.Config
	params            asdu.Params
	autoReconnect     bool          // reopen the port after errors
	reconnectInterval time.Duration // wait before reopening
	open              PortOpener
	provider          clog.LogProvider
}

// NewOption creates an Option with the default link, default session
// parameters and the standard 101 ASDU layout.
// The serial port address must still be set with SetSerialConfig.
func NewOption() *Option {
	return &Option{
		config:            DefaultConfig(),
		session:           session.DefaultConfig(),
		params:            *asdu.ParamsStandard101,
		autoReconnect:     true,
		reconnectInterval: session.DefaultReconnectInterval,
		open:              OpenSerial,
	}
}

// SetConfig sets the link configuration. Uses DefaultConfig() if cfg is invalid.
func (sf *Option) SetConfig(cfg Config) *Option {
	if err := cfg.Valid(); err != nil {
		sf.config = DefaultConfig()
	} else {
		sf.config = cfg
	}
	return sf
}

// SetSerialConfig sets the serial port configuration within the link config.
func (sf *Option) SetSerialConfig(cfg SerialConfig) *Option {
	sf.config.Serial = cfg
	return sf
}

// SetSessionConfig sets the sequence window and timers. Uses
// session.DefaultConfig() if cfg is invalid.
func (sf *Option) SetSessionConfig(cfg session.Config) *Option {
	if err := cfg.Valid(); err != nil {
		sf.session = session.DefaultConfig()
	} else {
		sf.session = cfg
	}
	return sf
}

// SetParams sets the ASDU parameters. Uses asdu.ParamsStandard101 if p is invalid.
func (sf *Option) SetParams(p *asdu.Params) *Option {
	if err := p.Valid(); err != nil {
		sf.params = *asdu.ParamsStandard101
	} else {
		sf.params = *p
	}
	return sf
}

// SetReconnectInterval sets the interval for attempting reconnection after a connection failure.
func (sf *Option) SetReconnectInterval(t time.Duration) *Option {
	if t > 0 {
		sf.reconnectInterval = t
	}
	return sf
}

// SetAutoReconnect enables or disables automatic reconnection attempts.
func (sf *Option) SetAutoReconnect(b bool) *Option {
	sf.autoReconnect = b
	return sf
}

// SetPortOpener replaces OpenSerial, e.g. with a TCP serial server.
func (sf *Option) SetPortOpener(open PortOpener) *Option {
	if open != nil {
		sf.open = open
	}
	return sf
}

// SetLogProvider sets the log provider and enables logging.
func (sf *Option) SetLogProvider(p clog.LogProvider) *Option {
	sf.provider = p
	return sf
}

// Config returns the link configuration.
func (sf *Option) Config() Config {
	return sf.config
}
