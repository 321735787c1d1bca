// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package config loads station files: the YAML description of one IEC
// 60870-5 station, its transport, link parameters and ASDU layout.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/clog"
	"github.com/riclolsen/iec60870/cs101"
	"github.com/riclolsen/iec60870/cs104"
	"github.com/riclolsen/iec60870/session"
)

// ErrInvalid is returned for station files that parse but do not validate.
var ErrInvalid = errors.New("invalid station file")

// Duration accepts Go durations ("1m30s") or bare numbers of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch v.(type) {
	case int, int64, uint64, float64:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	dur, err := cast.ToDurationE(v)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Address accepts station addresses as numbers or numeric strings.
type Address uint16

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Address) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	n, err := cast.ToUint16E(v)
	if err != nil {
		return fmt.Errorf("address %v: %w", v, err)
	}
	*a = Address(n)
	return nil
}

// Log selects the logger of the station.
type Log struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format" validate:"regexp=^(text|json|zap)?$"`
}

// TCP holds the 104 transport.
type TCP struct {
	// Servers are dialed in order by a client, primary first.
	Servers []string `yaml:"servers"`
	// Listen is the server address, ":2404" when empty.
	Listen         string `yaml:"listen"`
	MaxConnections int    `yaml:"max_connections" validate:"min=0"`
}

// Serial holds the 101 transport.
type Serial struct {
	Port            string  `yaml:"port"`
	BaudRate        int     `yaml:"baud_rate" validate:"min=0"`
	DataBits        int     `yaml:"data_bits" validate:"min=0,max=8"`
	Parity          string  `yaml:"parity"`
	StopBits        string  `yaml:"stop_bits"`
	LinkAddress     Address `yaml:"link_address"`
	LinkAddressSize *int    `yaml:"link_address_size"`
}

// ASDU holds the field widths both stations agreed on.
type ASDU struct {
	CauseSize       int    `yaml:"cause_size" validate:"min=0,max=2"`
	CommonAddrSize  int    `yaml:"common_addr_size" validate:"min=0,max=2"`
	InfoObjAddrSize int    `yaml:"info_obj_addr_size" validate:"min=0,max=3"`
	OrigAddress     int    `yaml:"orig_address" validate:"min=0,max=255"`
	TimeZone        string `yaml:"time_zone"`
	// CommonAddress is the station addressed by commands.
	CommonAddress Address `yaml:"common_address"`
}

// Link holds the session parameters. Zero values take the defaults.
type Link struct {
	K                uint16   `yaml:"k"`
	W                uint16   `yaml:"w"`
	T0               Duration `yaml:"t0"`
	T1               Duration `yaml:"t1"`
	T2               Duration `yaml:"t2"`
	T3               Duration `yaml:"t3"`
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
	PollInterval     Duration `yaml:"poll_interval"`
	Retries          *int     `yaml:"retries"`
}

// Reconnect is the station reconnect policy.
type Reconnect struct {
	Disabled bool     `yaml:"disabled"`
	Interval Duration `yaml:"interval"`
}

// MQTT forwards monitoring data to a broker when Broker is set.
type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos" validate:"max=2"`
	Retain   bool   `yaml:"retain"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// File is a station file.
type File struct {
	Log       Log       `yaml:"log"`
	TCP       TCP       `yaml:"tcp"`
	Serial    Serial    `yaml:"serial"`
	ASDU      ASDU      `yaml:"asdu"`
	Link      Link      `yaml:"link"`
	Reconnect Reconnect `yaml:"reconnect"`
	MQTT      MQTT      `yaml:"mqtt"`
}

// Load reads and validates the station file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a station file. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the ranges of every section and the consistency of the
// derived link parameters.
func (f *File) Validate() error {
	if err := validator.Validate(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := f.Params(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg := f.SessionConfig()
	if err := cfg.Valid(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := logrus.ParseLevel(f.logLevel()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Params returns the ASDU layout. Zero sizes take the 104 standard widths.
func (f *File) Params() (*asdu.Params, error) {
	p := *asdu.ParamsStandard104
	if f.ASDU.CauseSize != 0 {
		p.CauseSize = f.ASDU.CauseSize
	}
	if f.ASDU.CommonAddrSize != 0 {
		p.CommonAddrSize = f.ASDU.CommonAddrSize
	}
	if f.ASDU.InfoObjAddrSize != 0 {
		p.InfoObjAddrSize = f.ASDU.InfoObjAddrSize
	}
	p.OrigAddress = asdu.OriginAddr(f.ASDU.OrigAddress)
	if f.ASDU.TimeZone != "" {
		loc, err := time.LoadLocation(f.ASDU.TimeZone)
		if err != nil {
			return nil, err
		}
		p.InfoObjTimeZone = loc
	}
	if err := p.Valid(); err != nil {
		return nil, err
	}
	return &p, nil
}

// SerialParams is Params with the 101 standard widths as defaults.
func (f *File) SerialParams() (*asdu.Params, error) {
	g := *f
	def := asdu.ParamsStandard101
	if g.ASDU.CauseSize == 0 {
		g.ASDU.CauseSize = def.CauseSize
	}
	if g.ASDU.CommonAddrSize == 0 {
		g.ASDU.CommonAddrSize = def.CommonAddrSize
	}
	if g.ASDU.InfoObjAddrSize == 0 {
		g.ASDU.InfoObjAddrSize = def.InfoObjAddrSize
	}
	return g.Params()
}

// CommonAddress returns the station address commands are sent to, 1 when
// not set.
func (f *File) CommonAddress() asdu.CommonAddr {
	if f.ASDU.CommonAddress == 0 {
		return 1
	}
	return asdu.CommonAddr(f.ASDU.CommonAddress)
}

// SessionConfig returns the link parameters, defaults for zero values.
func (f *File) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	set := func(dst *time.Duration, d Duration) {
		if d != 0 {
			*dst = time.Duration(d)
		}
	}
	if f.Link.K != 0 {
		cfg.SendUnAckLimitK = f.Link.K
	}
	if f.Link.W != 0 {
		cfg.RecvUnAckLimitW = f.Link.W
	}
	set(&cfg.ConnectTimeout0, f.Link.T0)
	set(&cfg.SendUnAckTimeout1, f.Link.T1)
	set(&cfg.RecvUnAckTimeout2, f.Link.T2)
	set(&cfg.IdleTimeout3, f.Link.T3)
	set(&cfg.HandshakeTimeout, f.Link.HandshakeTimeout)
	set(&cfg.HandshakePollInterval, f.Link.PollInterval)
	if f.Link.Retries != nil {
		cfg.HandshakeRetries = *f.Link.Retries
	}
	return cfg
}

func (f *File) reconnectInterval() time.Duration {
	if f.Reconnect.Interval == 0 {
		return session.DefaultReconnectInterval
	}
	return time.Duration(f.Reconnect.Interval)
}

// ClientOption returns the 104 client option.
func (f *File) ClientOption() (*cs104.ClientOption, error) {
	p, err := f.Params()
	if err != nil {
		return nil, err
	}
	o := cs104.NewOption().
		SetConfig(f.SessionConfig()).
		SetParams(p).
		SetAutoReconnect(!f.Reconnect.Disabled).
		SetReconnectInterval(f.reconnectInterval())
	if len(f.TCP.Servers) == 0 {
		return nil, cs104.ErrNoRemoteServer
	}
	for _, s := range f.TCP.Servers {
		if err = o.AddRemoteServer(s); err != nil {
			return nil, err
		}
	}
	if f.Log.Enabled {
		o.SetLogProvider(f.LogProvider("cs104"))
	}
	return o, nil
}

// ServerOption returns the 104 server option and the listen address.
func (f *File) ServerOption() (*cs104.ServerOption, string, error) {
	p, err := f.Params()
	if err != nil {
		return nil, "", err
	}
	o := cs104.NewServerOption().
		SetConfig(f.SessionConfig()).
		SetParams(p).
		SetMaxConnections(f.TCP.MaxConnections)
	if f.Log.Enabled {
		o.SetLogProvider(f.LogProvider("cs104"))
	}
	addr := f.TCP.Listen
	if addr == "" {
		addr = fmt.Sprintf(":%d", cs104.DefaultPort)
	}
	return o, addr, nil
}

// SerialConfig returns the 101 link configuration.
func (f *File) SerialConfig() (cs101.Config, error) {
	cfg := cs101.DefaultConfig()
	s := f.Serial
	cfg.Serial.Address = s.Port
	if s.BaudRate != 0 {
		cfg.Serial.BaudRate = s.BaudRate
	}
	if s.DataBits != 0 {
		cfg.Serial.DataBits = s.DataBits
	}
	var err error
	if s.Parity != "" {
		if cfg.Serial.Parity, err = cs101.ParseParity(s.Parity); err != nil {
			return cfg, err
		}
	}
	if cfg.Serial.StopBits, err = cs101.ParseStopBits(s.StopBits); err != nil {
		return cfg, err
	}
	if s.LinkAddress != 0 {
		cfg.LinkAddress = uint16(s.LinkAddress)
	}
	if s.LinkAddressSize != nil {
		cfg.LinkAddrSize = byte(*s.LinkAddressSize)
	}
	if err = cfg.Valid(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SerialOption returns the 101 station option.
func (f *File) SerialOption() (*cs101.Option, error) {
	cfg, err := f.SerialConfig()
	if err != nil {
		return nil, err
	}
	p, err := f.SerialParams()
	if err != nil {
		return nil, err
	}
	o := cs101.NewOption().
		SetConfig(cfg).
		SetSessionConfig(f.SessionConfig()).
		SetParams(p).
		SetAutoReconnect(!f.Reconnect.Disabled).
		SetReconnectInterval(f.reconnectInterval())
	if f.Log.Enabled {
		o.SetLogProvider(f.LogProvider("cs101"))
	}
	return o, nil
}

func (f *File) logLevel() string {
	if f.Log.Level == "" {
		return "info"
	}
	return strings.ToLower(f.Log.Level)
}

// Logger returns a logrus logger with the configured level and format.
func (f *File) Logger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	if lvl, err := logrus.ParseLevel(f.logLevel()); err == nil {
		l.SetLevel(lvl)
	}
	if f.Log.Format == "json" {
		l.Formatter = &logrus.JSONFormatter{}
	} else {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	return l
}

// LogProvider returns a clog provider writing through Logger, or through a
// zap production logger when the format is zap.
func (f *File) LogProvider(component string) clog.LogProvider {
	if f.Log.Format == "zap" {
		zc := zap.NewProductionConfig()
		if lvl, err := zapcore.ParseLevel(f.logLevel()); err == nil {
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}
		if l, err := zc.Build(); err == nil {
			return clog.NewZapProvider(l.Named(component).Sugar())
		}
	}
	return clog.NewLogrusProvider(f.Logger(), component)
}
