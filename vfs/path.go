// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"strings"

	"github.com/mvantol/go-kern/errno"
)

// Delimiter separates path segments. Paths are canonical: absolute,
// no "." or "..".
const Delimiter = '/'

// CleanPath canonicalizes an absolute path: the leading delimiter is
// required, duplicate delimiters collapse, trailing delimiters are
// stripped. The root itself cleans to "/".
func CleanPath(path string) (string, errno.Status) {
	if path == "" {
		return "", errno.NullPointer
	}
	if path[0] != Delimiter {
		return "", errno.IncorrectValue
	}
	var b strings.Builder
	b.Grow(len(path))
	prevDelim := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == Delimiter {
			if prevDelim {
				continue
			}
			prevDelim = true
		} else {
			prevDelim = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	for len(out) > 1 && out[len(out)-1] == Delimiter {
		out = out[:len(out)-1]
	}
	return out, errno.OK
}

// splitSegments cuts a cleaned path into its segments. "/" yields
// none.
func splitSegments(clean string) []string {
	if clean == "/" {
		return nil
	}
	return strings.Split(clean[1:], string(Delimiter))
}

// segLess is the sibling order: shorter segments first, then
// lexicographic. Lookup walks siblings in this order and can stop as
// soon as a sibling's segment is longer than the needle.
func segLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
