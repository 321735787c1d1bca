// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/session"
)

// DefaultPort is the registered IEC 60870-5-104 port.
const DefaultPort = 2404

// ClientOption client (controlling station) configuration options
type ClientOption struct {
	config            session.Config
	params            asdu.Params
	servers           []string // primary first, then backups
	autoReconnect     bool
	reconnectInterval time.Duration
	provider          clog.LogProvider
}

// NewOption creates a new ClientOption with default link parameters and
// the standard 104 ASDU layout.
func NewOption() *ClientOption {
	return &ClientOption{
		config:            session.DefaultConfig(),
		params:            *asdu.ParamsStandard104,
		autoReconnect:     true,
		reconnectInterval: session.DefaultReconnectInterval,
	}
}

// SetConfig sets the link parameters. Uses session.DefaultConfig() if cfg is invalid.
func (sf *ClientOption) SetConfig(cfg session.Config) *ClientOption {
	if err := cfg.Valid(); err != nil {
		sf.config = session.DefaultConfig()
	} else {
		sf.config = cfg
	}
	return sf
}

// SetParams sets the ASDU parameters. Uses asdu.ParamsStandard104 if p is invalid.
func (sf *ClientOption) SetParams(p *asdu.Params) *ClientOption {
	if err := p.Valid(); err != nil {
		sf.params = *asdu.ParamsStandard104
	} else {
		sf.params = *p
	}
	return sf
}

// AddRemoteServer adds a server address. The first one added is the
// primary, the others are tried in order when it cannot be reached. A
// missing port defaults to 2404.
func (sf *ClientOption) AddRemoteServer(server string) error {
	addr, err := normalizeAddr(server)
	if err != nil {
		return err
	}
	sf.servers = append(sf.servers, addr)
	return nil
}

// SetReconnectInterval sets the interval for attempting reconnection after a connection failure.
func (sf *ClientOption) SetReconnectInterval(t time.Duration) *ClientOption {
	if t > 0 {
		sf.reconnectInterval = t
	}
	return sf
}

// SetAutoReconnect enables or disables automatic reconnection attempts.
func (sf *ClientOption) SetAutoReconnect(b bool) *ClientOption {
	sf.autoReconnect = b
	return sf
}

// SetLogProvider sets the log provider and enables logging.
func (sf *ClientOption) SetLogProvider(p clog.LogProvider) *ClientOption {
	sf.provider = p
	return sf
}

// ServerOption server (controlled station) configuration options
type ServerOption struct {
	config         session.Config
	params         asdu.Params
	maxConnections int
	provider       clog.LogProvider
}

// NewServerOption returns the default server option, unlimited connections.
func NewServerOption() *ServerOption {
	return &ServerOption{
		config: session.DefaultConfig(),
		params: *asdu.ParamsStandard104,
	}
}

// SetConfig sets the link parameters. Uses session.DefaultConfig() if cfg is invalid.
func (sf *ServerOption) SetConfig(cfg session.Config) *ServerOption {
	if err := cfg.Valid(); err != nil {
		sf.config = session.DefaultConfig()
	} else {
		sf.config = cfg
	}
	return sf
}

// SetParams sets the ASDU parameters. Uses asdu.ParamsStandard104 if p is invalid.
func (sf *ServerOption) SetParams(p *asdu.Params) *ServerOption {
	if err := p.Valid(); err != nil {
		sf.params = *asdu.ParamsStandard104
	} else {
		sf.params = *p
	}
	return sf
}

// SetMaxConnections limits simultaneous clients, 0 means no limit.
func (sf *ServerOption) SetMaxConnections(n int) *ServerOption {
	if n >= 0 {
		sf.maxConnections = n
	}
	return sf
}

// SetLogProvider sets the log provider and enables logging.
func (sf *ServerOption) SetLogProvider(p clog.LogProvider) *ServerOption {
	sf.provider = p
	return sf
}

func normalizeAddr(server string) (string, error) {
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		// no port given
		host, port = strings.Trim(server, "[]"), strconv.Itoa(DefaultPort)
	}
	if _, err = strconv.ParseUint(port, 10, 16); err != nil {
		return "", &net.AddrError{Err: "invalid port", Addr: server}
	}
	return net.JoinHostPort(host, port), nil
}
