// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/riclolsen/iec60870/cs104"
	"github.com/riclolsen/iec60870/session"
)

const station = `
log:
  enabled: true
  level: warn
  format: json
tcp:
  servers: ["10.0.0.1", "10.0.0.2:2405"]
  listen: "127.0.0.1:2404"
  max_connections: 4
serial:
  port: /dev/ttyS1
  baud_rate: 19200
  parity: odd
  stop_bits: "2"
  link_address: 0x21
  link_address_size: 1
asdu:
  cause_size: 2
  common_addr_size: 2
  info_obj_addr_size: 3
  orig_address: 7
  time_zone: UTC
  common_address: "257"
link:
  k: 20
  w: 10
  t1: 30
  t2: 12s
  t3: 1m
  handshake_timeout: 10s
  poll_interval: 2500ms
  retries: 0
reconnect:
  interval: 5s
mqtt:
  broker: tcp://localhost:1883
  topic: iec
  qos: 1
`

func checkError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	checkError(t, os.WriteFile(path, []byte(station), 0o600))
	f, err := Load(path)
	checkError(t, err)

	cfg := f.SessionConfig()
	if cfg.SendUnAckLimitK != 20 || cfg.RecvUnAckLimitW != 10 {
		t.Errorf("k=%d w=%d", cfg.SendUnAckLimitK, cfg.RecvUnAckLimitW)
	}
	if cfg.SendUnAckTimeout1 != 30*time.Second || cfg.RecvUnAckTimeout2 != 12*time.Second ||
		cfg.IdleTimeout3 != time.Minute || cfg.HandshakePollInterval != 2500*time.Millisecond {
		t.Errorf("timers %+v", cfg)
	}
	if cfg.HandshakeRetries != 0 || cfg.ConnectTimeout0 != session.DefaultConnectTimeout0 {
		t.Errorf("retries %d t0 %v", cfg.HandshakeRetries, cfg.ConnectTimeout0)
	}

	p, err := f.Params()
	checkError(t, err)
	if p.CauseSize != 2 || p.OrigAddress != 7 || p.InfoObjTimeZone != time.UTC {
		t.Errorf("params %+v", p)
	}
	if ca := f.CommonAddress(); ca != 0x0101 {
		t.Errorf("common address %d", ca)
	}

	sc, err := f.SerialConfig()
	checkError(t, err)
	if sc.Serial.Address != "/dev/ttyS1" || sc.Serial.BaudRate != 19200 || sc.Serial.DataBits != 8 ||
		sc.Serial.Parity != serial.OddParity || sc.Serial.StopBits != serial.TwoStopBits {
		t.Errorf("serial %+v", sc.Serial)
	}
	if sc.LinkAddress != 0x21 || sc.LinkAddrSize != 1 {
		t.Errorf("link address %d/%d", sc.LinkAddress, sc.LinkAddrSize)
	}

	if _, err = f.ClientOption(); err != nil {
		t.Error(err)
	}
	if _, addr, err := f.ServerOption(); err != nil || addr != "127.0.0.1:2404" {
		t.Errorf("ServerOption() = %q, %v", addr, err)
	}
	if _, err = f.SerialOption(); err != nil {
		t.Error(err)
	}
	if l := f.Logger(); l.GetLevel() != logrus.WarnLevel {
		t.Errorf("log level %v", l.GetLevel())
	}
	if f.MQTT.QoS != 1 || f.reconnectInterval() != 5*time.Second {
		t.Errorf("mqtt %+v reconnect %v", f.MQTT, f.reconnectInterval())
	}
}

func TestDefaults(t *testing.T) {
	f, err := Parse([]byte("tcp:\n  servers: [rtu]\n"))
	checkError(t, err)
	cfg := f.SessionConfig()
	if cfg != session.DefaultConfig() {
		t.Errorf("SessionConfig() = %+v", cfg)
	}
	p, err := f.Params()
	checkError(t, err)
	if p.CauseSize != 2 || p.CommonAddrSize != 2 || p.InfoObjAddrSize != 3 {
		t.Errorf("104 params %+v", p)
	}
	sp, err := f.SerialParams()
	checkError(t, err)
	if sp.CauseSize != 1 || sp.CommonAddrSize != 1 || sp.InfoObjAddrSize != 2 {
		t.Errorf("101 params %+v", sp)
	}
	if f.CommonAddress() != 1 || f.reconnectInterval() != session.DefaultReconnectInterval {
		t.Error("station defaults")
	}
	_, addr, err := f.ServerOption()
	checkError(t, err)
	if addr != ":2404" {
		t.Errorf("listen %q", addr)
	}
	if _, err = f.SerialConfig(); err == nil {
		t.Error("serial config without port")
	}
}

func TestInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":     "tcp:\n  server: rtu\n",
		"cause size":      "asdu:\n  cause_size: 3\n",
		"origin address":  "asdu:\n  cause_size: 1\n  orig_address: 2\n",
		"time zone":       "asdu:\n  time_zone: Mars/Olympus\n",
		"t2 above t1":     "link:\n  t1: 5s\n  t2: 6s\n",
		"w above k":       "link:\n  k: 4\n  w: 5\n",
		"log level":       "log:\n  level: loud\n",
		"log format":      "log:\n  format: xml\n",
		"qos":             "mqtt:\n  qos: 3\n",
		"duration":        "link:\n  t1: soon\n",
		"address":         "asdu:\n  common_address: -1\n",
		"max connections": "tcp:\n  max_connections: -1\n",
	}
	for name, doc := range tests {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: Parse() accepted %q", name, doc)
		}
	}
	if _, err := Parse([]byte("link:\n  k: 4\n  w: 5\n")); !errors.Is(err, ErrInvalid) {
		t.Errorf("validation error %v is not ErrInvalid", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v", err)
	}
}

func TestClientOptionNeedsServer(t *testing.T) {
	f, err := Parse([]byte("{}"))
	checkError(t, err)
	if _, err = f.ClientOption(); !errors.Is(err, cs104.ErrNoRemoteServer) {
		t.Errorf("ClientOption() = %v", err)
	}
}

func TestLogProvider(t *testing.T) {
	for _, format := range []string{"text", "json", "zap"} {
		f, err := Parse([]byte("log:\n  enabled: true\n  level: debug\n  format: " + format + "\n"))
		checkError(t, err)
		p := f.LogProvider("test")
		if p == nil {
			t.Fatalf("format %s: no provider", format)
		}
		p.Debug("format %s", format)
	}
}
