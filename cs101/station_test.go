// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/riclolsen/iec60870/asdu"
	"github.com/riclolsen/iec60870/session"
)

// pipeOpener hands out one end of a shared pipe per station.
func pipeOpener(end net.Conn) PortOpener {
	used := make(chan struct{}, 1)
	return func(SerialConfig) (io.ReadWriteCloser, error) {
		select {
		case used <- struct{}{}:
			return end, nil
		default:
			return nil, errors.New("port in use")
		}
	}
}

func TestSerialClientServer(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	commands := make(chan *asdu.ASDU, 4)
	srv := NewServer(session.HandlerFuncs{
		OnASDU: func(s *session.Session, a *asdu.ASDU) {
			commands <- a
			_ = s.Send(a.Mirror(asdu.ActivationCon))
		},
	}, NewOption().
		SetSerialConfig(SerialConfig{Address: "ttyB"}).
		SetPortOpener(pipeOpener(b)))

	replies := make(chan *asdu.ASDU, 4)
	ready := make(chan struct{}, 1)
	cli := NewClient(session.HandlerFuncs{
		OnReady: func(*session.Session) { ready <- struct{}{} },
		OnASDU:  func(_ *session.Session, a *asdu.ASDU) { replies <- a },
	}, NewOption().
		SetSerialConfig(SerialConfig{Address: "ttyA"}).
		SetPortOpener(pipeOpener(a)))

	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	if err := cli.Start(); err != nil {
		t.Fatal(err)
	}
	defer cli.Close()

	select {
	case <-ready:
	case <-time.After(wait):
		t.Fatal("data transfer not started")
	}
	if err := cli.InterrogationCmd(asdu.CauseOfTransmission{Cause: asdu.Activation}, 1, asdu.QOIStation); err != nil {
		t.Fatal(err)
	}
	select {
	case a := <-commands:
		if a.Type != asdu.C_IC_NA_1 {
			t.Errorf("server got %s", a.Identifier)
		}
	case <-time.After(wait):
		t.Fatal("command not received")
	}
	select {
	case a := <-replies:
		if a.Type != asdu.C_IC_NA_1 || a.Coa.Cause != asdu.ActivationCon {
			t.Errorf("client got %s", a.Identifier)
		}
	case <-time.After(wait):
		t.Fatal("confirmation not received")
	}

	if cli.Link() == nil || cli.Link().Stats().Sent == 0 {
		t.Error("client link not used")
	}
	if srv.Link() == nil || srv.Link().Stats().Received == 0 {
		t.Error("server link not used")
	}
	if cli.Params().CommonAddrSize != asdu.ParamsStandard101.CommonAddrSize {
		t.Errorf("client params %+v", cli.Params())
	}
}

func TestConfigValid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"no address", func(c *Config) { c.LinkAddrSize = 0; c.LinkAddress = 0 }, nil},
		{"address size", func(c *Config) { c.LinkAddrSize = 3 }, ErrInvalidLinkAddrLen},
		{"address fit", func(c *Config) { c.LinkAddress = 300 }, ErrLinkAddrFit},
		{"port", func(c *Config) { c.Serial.Address = "" }, ErrNoSerialPort},
		{"data bits", func(c *Config) { c.Serial.DataBits = 9 }, ErrInvalidSerial},
		{"parity", func(c *Config) { c.Serial.Parity = serial.Parity(7) }, ErrInvalidSerial},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Serial.Address = "/dev/ttyS0"
		tt.modify(&cfg)
		if err := cfg.Valid(); !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, err, tt.want)
		}
	}

	cfg := Config{Serial: SerialConfig{Address: "COM1"}}
	if err := cfg.Valid(); err != nil {
		t.Fatal(err)
	}
	if cfg.Serial.BaudRate != DefaultBaudRate || cfg.Serial.DataBits != DefaultDataBits {
		t.Errorf("defaults not applied: %+v", cfg.Serial)
	}
}

func TestSerialNotation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial.Address = "COM1"
	if s := cfg.Serial.String(); s != "COM1 9600 8E1" {
		t.Errorf("String() = %q", s)
	}
	for in, want := range map[string]serial.Parity{"N": serial.NoParity, "even": serial.EvenParity, " O ": serial.OddParity} {
		if p, err := ParseParity(in); err != nil || p != want {
			t.Errorf("ParseParity(%q) = %v, %v", in, p, err)
		}
	}
	if _, err := ParseParity("x"); !errors.Is(err, ErrInvalidSerial) {
		t.Errorf("ParseParity(x) = %v", err)
	}
	if sb, err := ParseStopBits("2"); err != nil || sb != serial.TwoStopBits {
		t.Errorf("ParseStopBits(2) = %v, %v", sb, err)
	}
	if _, err := ParseStopBits("3"); !errors.Is(err, ErrInvalidSerial) {
		t.Errorf("ParseStopBits(3) = %v", err)
	}
}

func TestOptionFallsBackOnInvalidConfig(t *testing.T) {
	o := NewOption().SetConfig(Config{LinkAddrSize: 5})
	if o.Config().LinkAddrSize != DefaultLinkAddrSize {
		t.Errorf("invalid config kept: %+v", o.Config())
	}
	if _, err := OpenSerial(SerialConfig{}); !errors.Is(err, ErrNoSerialPort) {
		t.Errorf("OpenSerial without address = %v", err)
	}
}
