// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import "errors"

// error defined
var (
	ErrNoRemoteServer = errors.New("no remote server configured")
	ErrServerClosed   = errors.New("server closed")
	ErrTooManyClients = errors.New("too many client connections")
)
