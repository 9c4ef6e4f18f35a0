// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"fmt"

	"github.com/mvantol/go-kern/pqueue"
)

// ThreadInfo is a point-in-time descriptor of a live thread.
type ThreadInfo struct {
	ID       uint32
	Name     string
	Priority uint8
	Kind     Kind
	State    State
	Affinity uint64
	CPU      int32
}

// GetThreads copies up to len(buf) thread descriptors into buf under
// the thread-list lock and returns the number copied. The snapshot is
// atomic with respect to thread creation and cleaning.
func (s *Scheduler) GetThreads(buf []ThreadInfo) int {
	if len(buf) == 0 {
		return 0
	}
	n := 0
	s.infoMu.Lock()
	s.info.Each(func(node *pqueue.Node) bool {
		t := node.Payload.(*Thread)
		t.mu.Lock()
		buf[n] = ThreadInfo{
			ID:       t.id,
			Name:     t.name,
			Priority: t.prio,
			Kind:     t.kind,
			State:    t.state,
			Affinity: t.affinity,
			CPU:      t.schedCPU,
		}
		t.mu.Unlock()
		n++
		return n < len(buf)
	})
	s.infoMu.Unlock()
	return n
}

// FindThread resolves a live thread by id, nil if unknown.
func (s *Scheduler) FindThread(id uint32) *Thread {
	var found *Thread
	s.infoMu.Lock()
	s.info.Each(func(node *pqueue.Node) bool {
		t := node.Payload.(*Thread)
		if t.id == id {
			found = t
			return false
		}
		return true
	})
	s.infoMu.Unlock()
	return found
}

// Render writes the fixed text block the sysfs thread directory
// serves for one thread.
func (i ThreadInfo) Render() string {
	return fmt.Sprintf(
		"id:       %d\nname:     %s\npriority: %d\ntype:     %s\nstate:    %s\naffinity: 0x%x\ncpu:      %d\n",
		i.ID, i.Name, i.Priority, i.Kind, i.State, i.Affinity, i.CPU)
}
