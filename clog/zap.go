// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package clog

import "go.uber.org/zap"

type zapProvider struct {
	logger *zap.SugaredLogger
}

var _ LogProvider = (*zapProvider)(nil)

// NewZapProvider adapts a zap sugared logger.
func NewZapProvider(l *zap.SugaredLogger) LogProvider {
	return &zapProvider{logger: l}
}

func (sf *zapProvider) Critical(format string, v ...interface{}) {
	sf.logger.With("severity", "critical").Errorf(format, v...)
}

func (sf *zapProvider) Error(format string, v ...interface{}) {
	sf.logger.Errorf(format, v...)
}

func (sf *zapProvider) Warn(format string, v ...interface{}) {
	sf.logger.Warnf(format, v...)
}

func (sf *zapProvider) Debug(format string, v ...interface{}) {
	sf.logger.Debugf(format, v...)
}
