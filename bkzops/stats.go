// Copyright (c) 2026 Colin McRae

package bkzops

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Stats collects per-phase timings and per-index clean flags for one BKZ
// invocation. Phases are named, nestable scopes entered with Enter and left
// with Exit on the returned context; the idiom
//
//	defer stats.Enter("svp").Exit()
//
// guarantees that a scope closes on every exit path, errors included, and
// that scopes close in LIFO order. All methods are safe on a nil *Stats and
// do nothing, so inner tours that do not collect statistics simply pass nil.
type Stats struct {
	startTime  time.Time
	totalTime  time.Duration
	phaseTime  map[string]time.Duration
	phaseCount map[string]int
	tourCount  int
	cleanKappa map[int]bool
	stack      []*ScopedContext
	finalized  bool
}

// ScopedContext is one open statistics scope.
type ScopedContext struct {
	s     *Stats
	name  string
	start time.Time
}

// NewStats returns an empty statistics collector.
func NewStats() *Stats {
	return &Stats{
		startTime:  time.Now(),
		phaseTime:  make(map[string]time.Duration),
		phaseCount: make(map[string]int),
		cleanKappa: make(map[int]bool),
	}
}

// Enter opens the named scope and returns its context.
func (s *Stats) Enter(name string) *ScopedContext {
	if s == nil {
		return nil
	}
	retVal := &ScopedContext{s: s, name: name, start: time.Now()}
	s.stack = append(s.stack, retVal)
	return retVal
}

// Exit closes the scope, recording its elapsed time. Any scopes nested
// inside it that are still open are closed first, preserving LIFO order
// even if an error skipped their own Exit.
func (c *ScopedContext) Exit() {
	if c == nil || c.s == nil {
		return
	}
	s := c.s
	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		s.phaseTime[top.name] += time.Since(top.start)
		s.phaseCount[top.name]++
		if top.name == "tour" {
			s.tourCount++
		}
		top.s = nil
		if top == c {
			return
		}
	}
}

// LogCleanKappa records the clean flag observed after block reduction at
// the given index. This is diagnostic only.
func (s *Stats) LogCleanKappa(kappa int, clean bool) {
	if s == nil {
		return
	}
	s.cleanKappa[kappa] = clean
}

// Finalize closes any scopes left open and fixes the total elapsed time.
func (s *Stats) Finalize() {
	if s == nil || s.finalized {
		return
	}
	for len(s.stack) > 0 {
		s.stack[len(s.stack)-1].Exit()
	}
	s.totalTime = time.Since(s.startTime)
	s.finalized = true
}

// TourCount returns the number of completed "tour" scopes.
func (s *Stats) TourCount() int {
	if s == nil {
		return 0
	}
	return s.tourCount
}

// PhaseTime returns the cumulative time spent in the named scope.
func (s *Stats) PhaseTime(name string) time.Duration {
	if s == nil {
		return 0
	}
	return s.phaseTime[name]
}

// PhaseCount returns the number of times the named scope was entered.
func (s *Stats) PhaseCount(name string) int {
	if s == nil {
		return 0
	}
	return s.phaseCount[name]
}

// CleanKappa returns the last clean flag recorded at the given index, and
// whether any flag was recorded there.
func (s *Stats) CleanKappa(kappa int) (bool, bool) {
	if s == nil {
		return false, false
	}
	clean, ok := s.cleanKappa[kappa]
	return clean, ok
}

// TotalTime returns the wall-clock time from construction to Finalize, or
// zero before Finalize.
func (s *Stats) TotalTime() time.Duration {
	if s == nil {
		return 0
	}
	return s.totalTime
}

// String returns a one-line-per-phase summary of the collected statistics.
func (s *Stats) String() string {
	if s == nil {
		return ""
	}
	names := make([]string, 0, len(s.phaseTime))
	for name := range s.phaseTime {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("tours: %d, total: %v\n", s.tourCount, s.totalTime))
	for _, name := range names {
		sb.WriteString(fmt.Sprintf(
			"%-8s: %v over %d calls\n", name, s.phaseTime[name], s.phaseCount[name],
		))
	}
	return sb.String()
}
