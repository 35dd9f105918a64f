// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysled

import "time"

// Clock is a monotonic millisecond counter. It wraps around at 2^32.
type Clock interface {
	Millis() uint32
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint32

// Millis implements Clock.
func (f ClockFunc) Millis() uint32 {
	return f()
}

// SystemClock counts milliseconds since its creation using the monotonic
// reading of time.Now.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a SystemClock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Millis implements Clock.
func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// Elapsed returns the milliseconds from since to now. The result is correct
// across one wrap of the counter.
func Elapsed(since, now uint32) uint32 {
	return now - since
}
