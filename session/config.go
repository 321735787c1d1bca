// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/validator.v2"
)

// Constants defining default values and ranges for the link parameters,
// companion standard 104 subclass 9.6.
const (
	ConnectTimeout0Min = 1 * time.Second
	ConnectTimeout0Max = 255 * time.Second

	SendUnAckLimitKMin = 1
	SendUnAckLimitKMax = 32767

	RecvUnAckLimitWMin = 1
	RecvUnAckLimitWMax = 32767

	SendUnAckTimeout1Min = 1 * time.Second
	SendUnAckTimeout1Max = 255 * time.Second

	RecvUnAckTimeout2Min = 1 * time.Second
	RecvUnAckTimeout2Max = 255 * time.Second

	IdleTimeout3Min = 1 * time.Second
	IdleTimeout3Max = 48 * time.Hour

	HandshakeTimeoutMin = 1 * time.Second
	HandshakeTimeoutMax = 1 * time.Hour
)

// defaults
const (
	DefaultConnectTimeout0       = 30 * time.Second
	DefaultSendUnAckLimitK       = 12
	DefaultRecvUnAckLimitW       = 8
	DefaultSendUnAckTimeout1     = 15 * time.Second
	DefaultRecvUnAckTimeout2     = 10 * time.Second
	DefaultIdleTimeout3          = 20 * time.Second
	DefaultHandshakeTimeout      = 30 * time.Second
	DefaultHandshakePollInterval = 5 * time.Second
	DefaultHandshakeRetries      = 5
)

// Config defines the link parameters of a session.
type Config struct {
	// ConnectTimeout0 bounds connection establishment, "t0" [1, 255]s.
	// Used by transports, not by the session itself.
	ConnectTimeout0 time.Duration

	// SendUnAckLimitK is the number of I-frames sent without acknowledgement
	// after which sending stops, "k" [1, 32767].
	SendUnAckLimitK uint16 `validate:"min=1,max=32767"`
	// SendUnAckTimeout1 is the acknowledgement timeout of sent frames, "t1" [1, 255]s.
	SendUnAckTimeout1 time.Duration

	// RecvUnAckLimitW is the number of I-frames received after which an
	// S-frame is sent at once, "w" [1, 32767].
	RecvUnAckLimitW uint16 `validate:"min=1,max=32767"`
	// RecvUnAckTimeout2 delays the S-frame for fewer than w frames, "t2" [1, 255]s, t2 < t1.
	RecvUnAckTimeout2 time.Duration

	// IdleTimeout3 starts a TESTFR exchange when the link is silent, "t3" [1s, 48h].
	IdleTimeout3 time.Duration

	// HandshakeTimeout bounds the wait for STARTDT con.
	HandshakeTimeout time.Duration
	// HandshakePollInterval is the STARTDT act repeat period.
	HandshakePollInterval time.Duration
	// HandshakeRetries is the number of STARTDT act repeats.
	HandshakeRetries int `validate:"min=0,max=100"`
}

// DefaultConfig default config
func DefaultConfig() Config {
	return Config{
		ConnectTimeout0:       DefaultConnectTimeout0,
		SendUnAckLimitK:       DefaultSendUnAckLimitK,
		SendUnAckTimeout1:     DefaultSendUnAckTimeout1,
		RecvUnAckLimitW:       DefaultRecvUnAckLimitW,
		RecvUnAckTimeout2:     DefaultRecvUnAckTimeout2,
		IdleTimeout3:          DefaultIdleTimeout3,
		HandshakeTimeout:      DefaultHandshakeTimeout,
		HandshakePollInterval: DefaultHandshakePollInterval,
		HandshakeRetries:      DefaultHandshakeRetries,
	}
}

// withDefaults fills zero fields with defaults and leaves the rest alone.
func (sf Config) withDefaults() Config {
	d := DefaultConfig()
	if sf.ConnectTimeout0 == 0 {
		sf.ConnectTimeout0 = d.ConnectTimeout0
	}
	if sf.SendUnAckLimitK == 0 {
		sf.SendUnAckLimitK = d.SendUnAckLimitK
	}
	if sf.SendUnAckTimeout1 == 0 {
		sf.SendUnAckTimeout1 = d.SendUnAckTimeout1
	}
	if sf.RecvUnAckLimitW == 0 {
		sf.RecvUnAckLimitW = d.RecvUnAckLimitW
	}
	if sf.RecvUnAckTimeout2 == 0 {
		sf.RecvUnAckTimeout2 = d.RecvUnAckTimeout2
	}
	if sf.IdleTimeout3 == 0 {
		sf.IdleTimeout3 = d.IdleTimeout3
	}
	if sf.HandshakeTimeout == 0 {
		sf.HandshakeTimeout = d.HandshakeTimeout
	}
	if sf.HandshakePollInterval == 0 {
		sf.HandshakePollInterval = d.HandshakePollInterval
	}
	return sf
}

// Valid applies defaults to zero fields and checks the ranges.
func (sf *Config) Valid() error {
	if sf == nil {
		return errors.New("invalid pointer")
	}
	*sf = sf.withDefaults()

	if err := validator.Validate(sf); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}
	if sf.ConnectTimeout0 < ConnectTimeout0Min || sf.ConnectTimeout0 > ConnectTimeout0Max {
		return errors.New(`ConnectTimeout0 "t0" range [1, 255]s`)
	}
	if sf.SendUnAckTimeout1 < SendUnAckTimeout1Min || sf.SendUnAckTimeout1 > SendUnAckTimeout1Max {
		return errors.New(`SendUnAckTimeout1 "t1" range [1, 255]s`)
	}
	if sf.RecvUnAckTimeout2 < RecvUnAckTimeout2Min || sf.RecvUnAckTimeout2 > RecvUnAckTimeout2Max {
		return errors.New(`RecvUnAckTimeout2 "t2" range [1, 255]s`)
	}
	if sf.RecvUnAckTimeout2 >= sf.SendUnAckTimeout1 {
		return errors.New(`RecvUnAckTimeout2 "t2" must be less than "t1"`)
	}
	if sf.IdleTimeout3 < IdleTimeout3Min || sf.IdleTimeout3 > IdleTimeout3Max {
		return errors.New(`IdleTimeout3 "t3" range [1s, 48h]`)
	}
	if sf.RecvUnAckLimitW > sf.SendUnAckLimitK {
		return errors.New(`RecvUnAckLimitW "w" must not exceed "k"`)
	}
	if sf.HandshakeTimeout < HandshakeTimeoutMin || sf.HandshakeTimeout > HandshakeTimeoutMax {
		return errors.New("HandshakeTimeout range [1s, 1h]")
	}
	if sf.HandshakePollInterval <= 0 || sf.HandshakePollInterval >= sf.HandshakeTimeout {
		return errors.New("HandshakePollInterval must be positive and less than HandshakeTimeout")
	}
	return nil
}
