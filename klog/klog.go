// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package klog holds the kernel's structured logger. Subsystems take
// component-scoped children at boot; the default sink is stderr at
// warn level so a quiet kernel stays quiet.
package klog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
)

// SetLogger replaces the root logger. Call before Boot; component
// loggers already handed out keep their old sink.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
}

// Logger returns the root logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Component returns a child logger tagged with the subsystem name.
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("comp", name).Logger()
}
