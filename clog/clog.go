// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog is the internal debug logger shared by sessions and stations.
package clog

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// LogProvider RFC5424 log message levels only Critical, Error, Warn and Debug
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog is embedded by components that log. Output is off until LogMode(true).
// The zero value logs through DefaultLogger once enabled. Set the provider
// before the component is shared between goroutines.
type Clog struct {
	provider LogProvider
	has      atomic.Bool
}

// NewLogger creates a logger that tags every message with prefix.
func NewLogger(prefix string) Clog {
	return Clog{provider: NewLogrusProvider(defaultLogger, prefix)}
}

// LogMode set enable or disable log output when you has set provider
func (sf *Clog) LogMode(enable bool) {
	sf.has.Store(enable)
}

// SetLogProvider set provider provider
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// LogProvider returns the current provider, so children can share it.
func (sf *Clog) LogProvider() LogProvider {
	if sf.provider == nil {
		return defaultProvider
	}
	return sf.provider
}

func (sf *Clog) enabled() bool {
	return sf.has.Load()
}

// Critical Log CRITICAL level message.
func (sf *Clog) Critical(format string, v ...interface{}) {
	if sf.enabled() {
		sf.LogProvider().Critical(format, v...)
	}
}

// Error Log ERROR level message.
func (sf *Clog) Error(format string, v ...interface{}) {
	if sf.enabled() {
		sf.LogProvider().Error(format, v...)
	}
}

// Warn Log WARN level message.
func (sf *Clog) Warn(format string, v ...interface{}) {
	if sf.enabled() {
		sf.LogProvider().Warn(format, v...)
	}
}

// Debug Log DEBUG level message.
func (sf *Clog) Debug(format string, v ...interface{}) {
	if sf.enabled() {
		sf.LogProvider().Debug(format, v...)
	}
}

var defaultLogger = func() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stdout
	l.SetLevel(logrus.DebugLevel)
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	return l
}()

var defaultProvider = NewLogrusProvider(defaultLogger, "")

// DefaultLogger returns the logrus logger behind NewLogger, for callers
// that want to change its level, output or formatter.
func DefaultLogger() *logrus.Logger {
	return defaultLogger
}

type logrusProvider struct {
	entry *logrus.Entry
}

var _ LogProvider = (*logrusProvider)(nil)

// NewLogrusProvider adapts a logrus logger. A non empty prefix is attached
// as the component field.
func NewLogrusProvider(l logrus.FieldLogger, prefix string) LogProvider {
	e := l.WithFields(logrus.Fields{})
	if prefix != "" {
		e = e.WithField("component", prefix)
	}
	return &logrusProvider{entry: e}
}

func (sf *logrusProvider) Critical(format string, v ...interface{}) {
	sf.entry.WithField("severity", "critical").Errorf(format, v...)
}

func (sf *logrusProvider) Error(format string, v ...interface{}) {
	sf.entry.Errorf(format, v...)
}

func (sf *logrusProvider) Warn(format string, v ...interface{}) {
	sf.entry.Warnf(format, v...)
}

func (sf *logrusProvider) Debug(format string, v ...interface{}) {
	sf.entry.Debugf(format, v...)
}
