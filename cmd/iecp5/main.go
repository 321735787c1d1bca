// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Command iecp5 runs IEC 60870-5-104 and 60870-5-101 stations from a
// station file: a controlling client that interrogates and prints or
// forwards the monitoring data, and a demo controlled station.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
