// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A minimal kernel: boot, mount a few filesystems, run some threads.
package main

import (
	"flag"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/kernel"
	_ "github.com/mvantol/go-kern/kfs/devfs"
	_ "github.com/mvantol/go-kern/kfs/hostfs"
	_ "github.com/mvantol/go-kern/kfs/ramfs"
	"github.com/mvantol/go-kern/ksync"
	"github.com/mvantol/go-kern/sched"
	"github.com/mvantol/go-kern/vfs"
)

func main() {
	cpus := flag.Int("cpus", 2, "number of virtual CPUs")
	flag.Parse()

	k, st := kernel.Boot(kernel.Options{CPUs: *cpus})
	if !st.Ok() {
		log.Fatalf("boot: %v", st)
	}
	defer k.Shutdown()

	for path, fs := range map[string]string{
		"/dev":      "devfs",
		"/tmp":      "ramfs",
		"/sys/host": "hostfs",
	} {
		if _, st := k.VFS().Mount(path, fs, nil); !st.Ok() {
			log.Fatalf("mount %s: %v", path, st)
		}
	}

	var mtx ksync.Mutex
	mtx.Init(k.Scheduler(), ksync.PriorityInherit)

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		i := i
		g.Go(func() error {
			ret, cause, st := k.Run(fmt.Sprintf("worker-%d", i), 10, func(any) any {
				if st := mtx.Lock(); !st.Ok() {
					return st
				}
				defer mtx.Unlock()
				fd, st := k.Open("/dev/console", vfs.FlagWrite, 0)
				if !st.Ok() {
					return st
				}
				defer k.Close(fd)
				k.Write(fd, []byte(fmt.Sprintf("hello from worker %d\n", i)))
				return errno.OK
			}, nil)
			if !st.Ok() {
				return fmt.Errorf("worker %d: %v", i, st)
			}
			if cause != sched.CauseNormal || ret != errno.OK {
				return fmt.Errorf("worker %d exited %v/%v", i, ret, cause)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	// Show the thread table the scheduler exposes through the VFS.
	fd, st := k.Open(kernel.ThreadDir, vfs.FlagRead, 0)
	if !st.Ok() {
		log.Fatalf("open %s: %v", kernel.ThreadDir, st)
	}
	defer k.Close(fd)
	var ent vfs.DirEntry
	for k.ReadDir(fd, &ent) == 1 {
		fmt.Printf("thread %s (%s)\n", ent.Name, ent.Type)
	}
}
