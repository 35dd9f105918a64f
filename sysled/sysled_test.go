// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysled

import (
	"errors"
	"strings"
	"testing"

	"github.com/GermanBionicSystems/sysled/ledtrace"
	"github.com/GermanBionicSystems/sysled/regmap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type fakeClock struct {
	ms uint32
}

func (c *fakeClock) Millis() uint32 {
	return c.ms
}

type failingPin struct {
	gpiotest.Pin
	fail bool
}

var errStuck = errors.New("pin stuck")

func (p *failingPin) Out(l gpio.Level) error {
	if p.fail {
		return errStuck
	}
	return p.Pin.Out(l)
}

// fakeRegisters serves a fixed LED_CTRL record.
type fakeRegisters struct {
	changed bool
	data    []byte
	readErr error
	cleared int
}

func (r *fakeRegisters) Changed(id regmap.RegionID) bool {
	return id == regmap.LEDCtrl && r.changed
}

func (r *fakeRegisters) Read(id regmap.RegionID, buf []byte) (int, error) {
	if r.readErr != nil {
		return 0, r.readErr
	}
	return copy(buf, r.data), nil
}

func (r *fakeRegisters) ClearChanged(id regmap.RegionID) {
	r.changed = false
	r.cleared++
}

type fixture struct {
	clk  *fakeClock
	pin  *gpiotest.Pin
	rec  *ledtrace.Recorder
	regs *regmap.Map
	dev  *Dev
}

func newFixture(t *testing.T, start uint32, opts *Opts) *fixture {
	f := &fixture{
		clk:  &fakeClock{ms: start},
		pin:  &gpiotest.Pin{N: "LED", Num: 17},
		regs: regmap.New(),
	}
	f.rec = ledtrace.NewRecorder(f.pin, f.clk)
	f.dev = New(f.rec, f.clk, f.regs, opts)
	if err := f.dev.Init(); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) writeLED(t *testing.T, on bool) {
	b, err := regmap.LEDCtrlRecord{LEDState: on}.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if err := f.regs.Write(regmap.LEDCtrl, b); err != nil {
		t.Fatal(err)
	}
}

// tick advances the clock by step and runs one scheduler tick.
func (f *fixture) tick(t *testing.T, step uint32) {
	f.clk.ms += step
	if err := f.dev.PeriodicWork(); err != nil {
		t.Fatal(err)
	}
}

func TestInit(t *testing.T) {
	var tests = []struct {
		polarity Polarity
		level    gpio.Level
	}{
		{ActiveHigh, gpio.Low},
		{ActiveLow, gpio.High},
	}
	for _, test := range tests {
		f := newFixture(t, 0, &Opts{Polarity: test.polarity})
		if f.pin.L != test.level {
			t.Errorf("polarity %d: pin=%s after Init, want %s", test.polarity, f.pin.L, test.level)
		}
		if f.dev.Mode() != Off || f.dev.IsOn() {
			t.Errorf("polarity %d: Mode()=%s IsOn()=%t", test.polarity, f.dev.Mode(), f.dev.IsOn())
		}
	}
}

func TestPolarity(t *testing.T) {
	f := newFixture(t, 0, &Opts{Polarity: ActiveLow})
	if err := f.dev.Enable(); err != nil {
		t.Fatal(err)
	}
	if f.pin.L != gpio.Low || !f.dev.IsOn() {
		t.Errorf("active low Enable: pin=%s IsOn()=%t", f.pin.L, f.dev.IsOn())
	}
	if err := f.dev.Disable(); err != nil {
		t.Fatal(err)
	}
	if f.pin.L != gpio.High || f.dev.IsOn() {
		t.Errorf("active low Disable: pin=%s IsOn()=%t", f.pin.L, f.dev.IsOn())
	}
}

func TestModeFollowsLastCall(t *testing.T) {
	f := newFixture(t, 0, nil)
	calls := []struct {
		name string
		do   func() error
		mode Mode
	}{
		{"enable", f.dev.Enable, On},
		{"blink", func() error { f.dev.Blink(10, 20); return nil }, Blinking},
		{"disable", f.dev.Disable, Off},
		{"disable", f.dev.Disable, Off},
		{"blink", func() error { f.dev.Blink(1, 1); return nil }, Blinking},
		{"enable", f.dev.Enable, On},
		{"halt", f.dev.Halt, Off},
	}
	for i, c := range calls {
		if err := c.do(); err != nil {
			t.Fatal(err)
		}
		if f.dev.Mode() != c.mode {
			t.Errorf("#%d %s: Mode()=%s, want %s", i, c.name, f.dev.Mode(), c.mode)
		}
		f.tick(t, 5)
		if f.dev.Mode() != c.mode {
			t.Errorf("#%d %s: Mode()=%s after tick, want %s", i, c.name, f.dev.Mode(), c.mode)
		}
	}
}

func TestIdempotent(t *testing.T) {
	f := newFixture(t, 0, nil)
	base := f.rec.Writes()
	for range 2 {
		if err := f.dev.Enable(); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.rec.Writes() - base; n != 1 {
		t.Errorf("two Enable() wrote the pin %d times, want 1", n)
	}
	for range 2 {
		if err := f.dev.Disable(); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.rec.Writes() - base; n != 2 {
		t.Errorf("Enable/Disable pairs wrote the pin %d times, want 2", n)
	}
	// Steady modes are never touched by periodic work.
	for range 10 {
		f.tick(t, 100)
	}
	if n := f.rec.Writes() - base; n != 2 {
		t.Errorf("periodic work wrote the pin in Off mode")
	}
}

func TestBlinkDoesNotToggle(t *testing.T) {
	f := newFixture(t, 0, nil)
	if err := f.dev.Enable(); err != nil {
		t.Fatal(err)
	}
	w := f.rec.Writes()
	f.dev.Blink(100, 200)
	if f.rec.Writes() != w || !f.dev.IsOn() {
		t.Error("Blink() touched the pin")
	}
	if on, off := f.dev.Durations(); on != 100 || off != 200 {
		t.Errorf("Durations()=%d,%d", on, off)
	}
	// The LED was on: it stays on for the whole on interval.
	f.tick(t, 99)
	if !f.dev.IsOn() {
		t.Error("turned off before the on interval elapsed")
	}
	f.tick(t, 1)
	if f.dev.IsOn() {
		t.Error("still on after the on interval elapsed")
	}
}

func TestBlinkTiming(t *testing.T) {
	starts := []uint32{0, 7, 1234, 0xffffffff - 150}
	for _, start := range starts {
		f := newFixture(t, start, nil)
		f.dev.Blink(100, 200)
		// The LED is off: the first rising edge comes after the off
		// interval.
		var t0 uint32
		found := false
		for i := 0; i < 300 && !found; i++ {
			f.tick(t, 1)
			if f.dev.IsOn() {
				t0, found = f.clk.ms, true
			}
		}
		if !found {
			t.Fatalf("start %d: LED never turned on", start)
		}
		if d := t0 - start; d != 200 {
			t.Errorf("start %d: first on after %dms, want 200", start, d)
		}
		for ms := uint32(1); ms < 1500; ms++ {
			f.tick(t, 1)
			want := ms%300 < 100
			if f.dev.IsOn() != want {
				t.Fatalf("start %d: at t0+%d IsOn()=%t, want %t", start, ms, f.dev.IsOn(), want)
			}
		}
		l, ok := f.rec.LevelAt(t0 + 150)
		if !ok || l != gpio.Low {
			t.Errorf("start %d: recorded level at t0+150 = %s", start, l)
		}
	}
}

func TestBlinkScenario(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.rec.Reset()
	f.dev.Blink(50, 50)
	if err := f.dev.PeriodicWork(); err != nil {
		t.Fatal(err)
	}
	for range 19 {
		f.tick(t, 10)
	}
	if f.clk.ms != 190 {
		t.Fatalf("clock at %d", f.clk.ms)
	}
	// Four segments of 50ms each, starting dark.
	for ms := uint32(0); ms < 200; ms += 10 {
		want := gpio.Level(ms/50%2 == 1)
		got, ok := f.rec.LevelAt(ms)
		if ms < 50 {
			if ok {
				t.Errorf("pin written at %dms", ms)
			}
			continue
		}
		if got != want {
			t.Errorf("level at %dms = %s, want %s", ms, got, want)
		}
	}
	if n := f.rec.Writes(); n != 3 {
		t.Errorf("Writes()=%d, want 3", n)
	}
}

func TestBlinkZeroDurations(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.dev.Blink(0, 0)
	for i := range 6 {
		f.tick(t, 1)
		if want := i%2 == 0; f.dev.IsOn() != want {
			t.Fatalf("tick %d: IsOn()=%t, want %t", i, f.dev.IsOn(), want)
		}
	}
	// Same instant ticks also toggle.
	before := f.dev.IsOn()
	f.tick(t, 0)
	if f.dev.IsOn() == before {
		t.Error("zero interval did not toggle on a same-instant tick")
	}
}

func TestBlinkZeroOn(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.dev.Blink(0, 30)
	f.tick(t, 30)
	if !f.dev.IsOn() {
		t.Fatal("not on after off interval")
	}
	f.tick(t, 1)
	if f.dev.IsOn() {
		t.Fatal("zero on interval did not turn off on the next tick")
	}
}

func TestBlinkAcrossWrap(t *testing.T) {
	f := newFixture(t, 0xffffffff-55, nil)
	f.rec.Reset()
	f.dev.Blink(100, 100)
	for range 100 {
		f.tick(t, 10)
	}
	// 1000ms at a 100ms half period, starting dark.
	if n := f.rec.Writes(); n != 10 {
		t.Errorf("Writes()=%d, want 10", n)
	}
	edges := f.rec.Edges()
	for i := 1; i < len(edges); i++ {
		if d := Elapsed(edges[i-1].Millis, edges[i].Millis); d != 100 {
			t.Errorf("edge %d: %dms after previous, want 100", i, d)
		}
	}
}

func TestElapsed(t *testing.T) {
	var tests = []struct {
		since, now, want uint32
	}{
		{0, 0, 0},
		{10, 110, 100},
		{0xfffffff0, 0x10, 0x20},
		{0xffffffff, 0, 1},
	}
	for _, test := range tests {
		if got := Elapsed(test.since, test.now); got != test.want {
			t.Errorf("Elapsed(%#x, %#x)=%d, want %d", test.since, test.now, got, test.want)
		}
	}
}

func TestRegisterSync(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.writeLED(t, true)
	f.tick(t, 1)
	if f.dev.Mode() != On || !f.dev.IsOn() {
		t.Errorf("after LED_CTRL on: Mode()=%s IsOn()=%t", f.dev.Mode(), f.dev.IsOn())
	}
	if f.regs.Changed(regmap.LEDCtrl) {
		t.Error("changed flag not cleared")
	}
	// Without a new write nothing is re-applied.
	if err := f.dev.Disable(); err != nil {
		t.Fatal(err)
	}
	f.tick(t, 1)
	if f.dev.Mode() != Off {
		t.Errorf("stale LED_CTRL re-applied: Mode()=%s", f.dev.Mode())
	}
	f.writeLED(t, false)
	f.tick(t, 1)
	if f.dev.Mode() != Off || f.dev.IsOn() {
		t.Errorf("after LED_CTRL off: Mode()=%s IsOn()=%t", f.dev.Mode(), f.dev.IsOn())
	}
}

func TestRegisterSyncOverridesBlink(t *testing.T) {
	// LED lit and due to turn off, or dark and due to turn on: the host
	// request wins in both cases.
	for _, lit := range []bool{true, false} {
		f := newFixture(t, 0, nil)
		f.dev.Blink(100, 100)
		f.tick(t, 100)
		if !f.dev.IsOn() {
			t.Fatal("blink did not start")
		}
		if !lit {
			f.tick(t, 100)
		}
		f.writeLED(t, false)
		f.tick(t, 100)
		if f.dev.Mode() != Off || f.dev.IsOn() {
			t.Errorf("lit=%t: Mode()=%s IsOn()=%t, want Off and dark", lit, f.dev.Mode(), f.dev.IsOn())
		}
		f.tick(t, 1000)
		if f.dev.IsOn() {
			t.Errorf("lit=%t: blinking resumed", lit)
		}
	}
}

func TestRegisterSyncNeverBlinks(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.dev.Blink(10, 10)
	f.writeLED(t, true)
	f.tick(t, 1)
	if f.dev.Mode() != On {
		t.Errorf("Mode()=%s, want On", f.dev.Mode())
	}
}

func TestRegisterErrors(t *testing.T) {
	pin := &gpiotest.Pin{}
	regs := &fakeRegisters{changed: true, readErr: errors.New("bus fault")}
	d := New(pin, &fakeClock{}, regs, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	err := d.PeriodicWork()
	if err == nil || !strings.HasPrefix(err.Error(), "sysled: ") {
		t.Errorf("PeriodicWork()=%v", err)
	}
	if !regs.changed {
		t.Error("flag cleared on read error")
	}

	regs.readErr = nil
	regs.data = []byte{1, 0}
	if err := d.PeriodicWork(); !errors.Is(err, regmap.ErrChecksum) {
		t.Errorf("PeriodicWork()=%v, want ErrChecksum", err)
	}
	if regs.changed {
		t.Error("flag left set on a malformed record")
	}
	if d.Mode() != Off {
		t.Errorf("malformed record applied: Mode()=%s", d.Mode())
	}
}

func TestPinErrors(t *testing.T) {
	pin := &failingPin{}
	d := New(pin, &fakeClock{}, nil, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	pin.fail = true
	if err := d.Enable(); !errors.Is(err, errStuck) {
		t.Errorf("Enable()=%v", err)
	}
	if d.IsOn() {
		t.Error("IsOn() after failed write")
	}
	pin.fail = false
	if err := d.Enable(); err != nil {
		t.Fatal(err)
	}
	if !d.IsOn() || pin.L != gpio.High {
		t.Error("retry did not turn the LED on")
	}
}

func TestNilRegisters(t *testing.T) {
	d := New(&gpiotest.Pin{}, ClockFunc(func() uint32 { return 0 }), nil, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.PeriodicWork(); err != nil {
		t.Error(err)
	}
}

func TestString(t *testing.T) {
	d := New(&gpiotest.Pin{N: "GPIO17", Num: 17}, &fakeClock{}, nil, nil)
	if s := d.String(); s != "sysled{GPIO17(17)}" {
		t.Errorf("String()=%q", s)
	}
	var tests = []struct {
		m Mode
		s string
	}{
		{Off, "Off"}, {On, "On"}, {Blinking, "Blinking"}, {Mode(9), "Mode(9)"},
	}
	for _, test := range tests {
		if test.m.String() != test.s {
			t.Errorf("Mode(%d).String()=%q, want %q", uint8(test.m), test.m.String(), test.s)
		}
	}
}

func TestSystemClock(t *testing.T) {
	c := NewSystemClock()
	a := c.Millis()
	b := c.Millis()
	if Elapsed(a, b) > 1000 {
		t.Errorf("clock went backwards or jumped: %d then %d", a, b)
	}
}
