/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 30 13:41:33 2017 mstenber
 * Last modified: Tue Mar 12 10:02:51 2019 mstenber
 * Edit time:     104 min
 *
 */

// Package mlog is the volume's trace and fatal-error log.
//
// Trace lines (Printf, Printf2) are written only for source files
// matching a regular expression given with the -mlog flag or the MLOG
// environment variable; with neither set, tracing costs one atomic
// load per call. Each line is indented by call depth and prefixed
// with the goroutine id, so that a FUSE request can be followed
// through fs, fat and storage.
//
// Panicf is the single fatal sink: device failures and broken on-disk
// structure end up there. It always logs, whatever the pattern, and
// then panics. Ordinary outcomes are returned as errors instead.
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fingon/go-sgf/util/gid"
)

const (
	StateUninitialized int32 = iota
	StateInitializing
	StateDisabled
	StateEnabled
)

const maxDepth = 100

// status is read atomically; everything else below is guarded by
// mutex.
var status int32 = StateUninitialized

var (
	mutex       sync.Mutex
	logger      = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
	flagPattern *string
	pattern     string
	matcher     *regexp.Regexp
	fileMatches map[string]bool
	minDepth    int
	callers     []uintptr
)

var dumpGids = true

func init() {
	flagPattern = flag.String("mlog", "", "Trace files matching the given regular expression")
	Reset()
}

// Reset forgets the pattern; the next trace call picks it up again
// from the flag or the environment.
func Reset() {
	mutex.Lock()
	defer mutex.Unlock()
	atomic.StoreInt32(&status, StateUninitialized)
	minDepth = maxDepth
	callers = make([]uintptr, maxDepth)
}

// IsEnabled reports whether any tracing may happen.
func IsEnabled() bool {
	if atomic.LoadInt32(&status) == StateUninitialized {
		mutex.Lock()
		initialize()
		mutex.Unlock()
	}
	return atomic.LoadInt32(&status) == StateEnabled
}

// SetLogger replaces the output logger until undo is called.
func SetLogger(l *log.Logger) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := logger
	logger = l
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = old
	}
}

// SetPattern overrides the flag and environment until undo is called.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := pattern
	setPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		setPattern(old)
	}
}

func setPattern(p string) {
	pattern = p
	if p == "" {
		atomic.StoreInt32(&status, StateDisabled)
		return
	}
	matcher = regexp.MustCompile(p)
	fileMatches = make(map[string]bool)
	atomic.StoreInt32(&status, StateEnabled)
}

func initialize() {
	if !atomic.CompareAndSwapInt32(&status, StateUninitialized, StateInitializing) {
		return
	}
	p := os.Getenv("MLOG")
	if *flagPattern != "" {
		p = *flagPattern
	}
	setPattern(p)
}

// Printf traces with the caller's file name; Printf2 is cheaper when
// only some files match.
func Printf(format string, args ...interface{}) {
	if atomic.LoadInt32(&status) == StateDisabled {
		return
	}
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	Printf2(file, format, args...)
}

// Printf2 traces on behalf of file (by convention the package path
// plus file name, e.g. "fs/ops").
func Printf2(file string, format string, args ...interface{}) {
	if atomic.LoadInt32(&status) == StateDisabled {
		return
	}
	mutex.Lock()
	defer mutex.Unlock()
	initialize()
	if atomic.LoadInt32(&status) != StateEnabled {
		return
	}
	match, ok := fileMatches[file]
	if !ok {
		match = matcher.MatchString(file)
		fileMatches[file] = match
	}
	if !match {
		return
	}
	depth := runtime.Callers(1, callers)
	if depth < minDepth {
		minDepth = depth
	}
	if depth > minDepth {
		format = strings.Repeat(".", depth-minDepth) + format
	}
	if dumpGids {
		format = fmt.Sprintf("%8d %s", gid.GetGoroutineID(), format)
	}
	logger.Printf(format, args...)
}

// Panicf logs the message unconditionally and panics with it.
func Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	mutex.Lock()
	l := logger
	mutex.Unlock()
	l.Output(2, "PANIC "+msg)
	panic(msg)
}
