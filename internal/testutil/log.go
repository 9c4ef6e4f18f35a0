// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/mvantol/go-kern/klog"
)

func init() {
	// For test, the date is irrelevant, but microseconds are.
	log.SetFlags(log.Lmicroseconds)
	if VerboseTest() {
		klog.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger())
	}
}
