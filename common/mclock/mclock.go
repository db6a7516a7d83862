// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package mclock gives the dispatcher a mockable notion of time so that
// inactivity-timeout policy can be driven deterministically in tests instead
// of depending on wall-clock sleeps.
package mclock

import (
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// AbsTime represents absolute monotonic time.
type AbsTime time.Duration

// Add returns t + d.
func (t AbsTime) Add(d time.Duration) AbsTime {
	return t + AbsTime(d)
}

// Sub returns t - t2 as a duration.
func (t AbsTime) Sub(t2 AbsTime) time.Duration {
	return time.Duration(t - t2)
}

// LogValue implements slog.LogValuer.
func (t AbsTime) LogValue() slog.Value {
	return slog.DurationValue(time.Duration(t))
}

// Clock abstracts over wall-clock time, letting tests substitute a
// Simulated clock for System.
type Clock interface {
	Now() AbsTime
	Sleep(time.Duration)
	NewTimer(time.Duration) ChanTimer
	After(time.Duration) <-chan AbsTime
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer represents a cancellable delayed event.
type Timer interface {
	// Stop cancels the timer. It returns false if the timer has already
	// expired or been stopped.
	Stop() bool
}

// ChanTimer is a Timer that delivers its firing time on a channel.
type ChanTimer interface {
	Timer
	// C returns the timer's firing channel.
	C() <-chan AbsTime
	// Reset reschedules the timer to fire after d.
	Reset(time.Duration)
}

// System implements Clock using the real wall clock.
type System struct{}

// Now returns the current monotonic time.
func (System) Now() AbsTime { return AbsTime(monotimeSince()) }

func (System) Sleep(d time.Duration) { time.Sleep(d) }

func (System) After(d time.Duration) <-chan AbsTime {
	ch := make(chan AbsTime, 1)
	time.AfterFunc(d, func() { ch <- System{}.Now() })
	return ch
}

func (System) NewTimer(d time.Duration) ChanTimer {
	ch := make(chan AbsTime, 1)
	t := time.AfterFunc(d, func() { ch <- System{}.Now() })
	return &systemTimer{timer: t, ch: ch}
}

func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type systemTimer struct {
	timer *time.Timer
	ch    chan AbsTime
}

func (t *systemTimer) C() <-chan AbsTime { return t.ch }
func (t *systemTimer) Stop() bool        { return t.timer.Stop() }
func (t *systemTimer) Reset(d time.Duration) {
	t.timer.Reset(d)
}

var processStart = time.Now()

func monotimeSince() time.Duration { return time.Since(processStart) }

// Simulated implements Clock for tests: time only advances when Run is
// called, making inactivity-timeout behavior reproducible.
type Simulated struct {
	mu     sync.Mutex
	now    AbsTime
	timers simTimerHeap
	cond   *sync.Cond
}

type simTimer struct {
	s        *Simulated
	at       AbsTime
	callback func()
	ch       chan AbsTime
	removed  bool
}

type simTimerHeap []*simTimer

func (s *Simulated) init() {
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
}

// Now returns the current virtual time.
func (s *Simulated) Now() AbsTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Run advances the virtual clock by d, firing any timers scheduled at or
// before the new time in order.
func (s *Simulated) Run(d time.Duration) {
	s.mu.Lock()
	s.init()
	end := s.now.Add(d)

	for len(s.timers) > 0 {
		ft := s.timers.nextTime()
		if ft == nil || *ft > end {
			break
		}
		t := s.timers.popNext()
		s.now = t.at
		if t.removed {
			continue
		}
		s.mu.Unlock()
		if t.callback != nil {
			t.callback()
		}
		if t.ch != nil {
			t.ch <- t.at
		}
		s.mu.Lock()
	}
	s.now = end
	s.cond.Broadcast()
	s.mu.Unlock()
}

// ActiveTimers returns the number of timers that have not yet fired or been
// stopped.
func (s *Simulated) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.removed {
			n++
		}
	}
	return n
}

// WaitForTimers blocks until at least n timers are pending, used to
// synchronize with goroutines that call Sleep concurrently.
func (s *Simulated) WaitForTimers(n int) {
	s.mu.Lock()
	s.init()
	for s.activeTimersLocked() < n {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

func (s *Simulated) activeTimersLocked() int {
	n := 0
	for _, t := range s.timers {
		if !t.removed {
			n++
		}
	}
	return n
}

func (s *Simulated) schedule(d time.Duration, callback func(), ch chan AbsTime) *simTimer {
	s.mu.Lock()
	s.init()
	t := &simTimer{s: s, at: s.now.Add(d), callback: callback, ch: ch}
	s.timers = append(s.timers, t)
	s.cond.Broadcast()
	s.mu.Unlock()
	return t
}

func (s *Simulated) Sleep(d time.Duration) {
	done := make(chan struct{})
	s.schedule(d, func() { close(done) }, nil)
	<-done
}

func (s *Simulated) After(d time.Duration) <-chan AbsTime {
	ch := make(chan AbsTime, 1)
	s.schedule(d, nil, ch)
	return ch
}

func (s *Simulated) AfterFunc(d time.Duration, f func()) Timer {
	return s.schedule(d, f, nil)
}

func (s *Simulated) NewTimer(d time.Duration) ChanTimer {
	ch := make(chan AbsTime, 1)
	t := s.schedule(d, nil, ch)
	return &simChanTimer{simTimer: t}
}

// Stop cancels the timer if it has not already fired.
func (t *simTimer) Stop() bool {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.removed {
		return false
	}
	for _, other := range s.timers {
		if other == t {
			t.removed = true
			return true
		}
	}
	return false
}

type simChanTimer struct {
	*simTimer
}

func (t *simChanTimer) C() <-chan AbsTime { return t.ch }
func (t *simChanTimer) Reset(d time.Duration) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t.removed = true
	nt := &simTimer{s: s, at: s.now.Add(d), ch: t.ch}
	s.timers = append(s.timers, nt)
	t.simTimer = nt
}

func (h simTimerHeap) nextTime() *AbsTime {
	if len(h) == 0 {
		return nil
	}
	min := h[0].at
	for _, t := range h[1:] {
		if t.at < min {
			min = t.at
		}
	}
	return &min
}

// popNext removes and returns the timer with the smallest fire time.
func (h *simTimerHeap) popNext() *simTimer {
	s := *h
	idx := 0
	for i, t := range s {
		if t.at < s[idx].at {
			idx = i
		}
	}
	next := s[idx]
	s[idx] = s[len(s)-1]
	*h = s[:len(s)-1]
	return next
}
