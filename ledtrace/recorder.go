// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ledtrace records the level history of an output pin and renders
// it as a timing diagram.
//
// It is useful to check blink patterns without a logic analyzer: wrap the
// LED pin in a Recorder, run the scheduler, then Render the edges.
package ledtrace

import (
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Clock is a monotonic millisecond counter wrapping at 2^32. sysled.Clock
// satisfies it.
type Clock interface {
	Millis() uint32
}

// Edge is a level change observed on the pin.
type Edge struct {
	Millis uint32
	Level  gpio.Level
}

// Recorder is a gpio.PinOut forwarding every write to the wrapped pin and
// timestamping level changes.
type Recorder struct {
	gpio.PinOut
	clk Clock

	mu     sync.Mutex
	edges  []Edge
	writes int
}

// NewRecorder wraps pin.
func NewRecorder(pin gpio.PinOut, clk Clock) *Recorder {
	return &Recorder{PinOut: pin, clk: clk}
}

// Out implements gpio.PinOut. Failed writes are not recorded.
func (r *Recorder) Out(l gpio.Level) error {
	if err := r.PinOut.Out(l); err != nil {
		return err
	}
	now := r.clk.Millis()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if n := len(r.edges); n == 0 || r.edges[n-1].Level != l {
		r.edges = append(r.edges, Edge{Millis: now, Level: l})
	}
	return nil
}

// Edges returns a copy of the recorded edges. The first entry is the first
// write to the pin.
func (r *Recorder) Edges() []Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Edge(nil), r.edges...)
}

// Writes returns the number of successful Out calls, redundant ones
// included.
func (r *Recorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Transitions returns the number of level changes after the first write.
func (r *Recorder) Transitions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.edges) == 0 {
		return 0
	}
	return len(r.edges) - 1
}

// LevelAt returns the level the pin had at ms. ok is false before the
// first write. Timestamps are compared relative to the first edge so the
// lookup works across a clock wrap.
func (r *Recorder) LevelAt(ms uint32) (l gpio.Level, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.edges) == 0 {
		return gpio.Low, false
	}
	origin := r.edges[0].Millis
	at := ms - origin
	if at > 1<<31 {
		return gpio.Low, false
	}
	for _, e := range r.edges {
		if e.Millis-origin > at {
			break
		}
		l, ok = e.Level, true
	}
	return l, ok
}

// Reset forgets the recorded history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = r.edges[:0]
	r.writes = 0
}

var _ gpio.PinOut = &Recorder{}
