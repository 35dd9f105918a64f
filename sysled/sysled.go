// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysled drives the system status LED of an embedded controller.
//
// The LED is either off, on or blinking with configurable on and off
// intervals. Blinking is performed by PeriodicWork, which the caller's
// scheduler must invoke on every tick; no timer or goroutine is started by
// this package. PeriodicWork also applies the state requested by the host
// through the LED_CTRL region of the register map.
//
// A Dev is not safe for concurrent use. If PeriodicWork and the control
// methods can run from different goroutines (or an interrupt handler on
// TinyGo), the caller must serialize them.
package sysled

import (
	"fmt"

	"github.com/GermanBionicSystems/sysled/regmap"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// Mode is the operating mode of the LED.
type Mode uint8

const (
	// Off keeps the LED dark.
	Off Mode = iota
	// On keeps the LED lit.
	On
	// Blinking alternates the LED between lit and dark.
	Blinking
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "Off"
	case On:
		return "On"
	case Blinking:
		return "Blinking"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Polarity tells which electrical level lights the LED.
type Polarity uint8

const (
	// ActiveHigh LEDs are lit when the pin is driven high.
	ActiveHigh Polarity = iota
	// ActiveLow LEDs are lit when the pin is driven low, usually because
	// they are wired between the supply and the pin.
	ActiveLow
)

// Registers is the subset of the register map used by the LED. It is
// implemented by *regmap.Map.
type Registers interface {
	Changed(id regmap.RegionID) bool
	Read(id regmap.RegionID, buf []byte) (int, error)
	ClearChanged(id regmap.RegionID)
}

// Opts holds the board specific wiring of the LED.
type Opts struct {
	Polarity Polarity
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Polarity: ActiveHigh,
}

// Dev is a status LED connected to a single GPIO.
type Dev struct {
	pin  gpio.PinOut
	clk  Clock
	regs Registers
	opts Opts

	mode Mode
	// timestamp is the instant of the last blink toggle.
	timestamp uint32
	// on mirrors the level driven onto the pin, in logical terms.
	on    bool
	onMs  uint16
	offMs uint16

	buf [regmap.LEDCtrlSize]byte
}

// New returns a Dev driving pin. Init must be called before any other
// method.
//
// regs may be nil when the LED is not exposed through a register map. opts
// may be nil, in which case DefaultOpts is used.
func New(pin gpio.PinOut, clk Clock, regs Registers, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Dev{pin: pin, clk: clk, regs: regs, opts: *opts}
}

// Init configures the pin as a push-pull output driving the LED off and
// resets the LED to Off.
func (d *Dev) Init() error {
	d.mode = Off
	d.timestamp = 0
	d.onMs, d.offMs = 0, 0
	return d.turnOff()
}

// Disable turns the LED off.
func (d *Dev) Disable() error {
	d.mode = Off
	if d.on {
		return d.turnOff()
	}
	return nil
}

// Enable turns the LED on.
func (d *Dev) Enable() error {
	d.mode = On
	if !d.on {
		return d.turnOn()
	}
	return nil
}

// Blink makes the LED alternate between onMs lit and offMs dark.
//
// The pin is not touched here: the current level is kept and the next
// toggle happens in PeriodicWork once the matching interval has elapsed
// from now. A zero interval toggles on every tick.
func (d *Dev) Blink(onMs, offMs uint16) {
	d.mode = Blinking
	d.onMs = onMs
	d.offMs = offMs
	d.timestamp = d.clk.Millis()
}

// PeriodicWork applies a pending LED_CTRL change, then advances blinking.
//
// It must be called on every scheduler tick. The shortest visible blink
// interval is bounded by the tick period.
func (d *Dev) PeriodicWork() error {
	if err := d.syncRegisters(); err != nil {
		return err
	}
	if d.mode != Blinking {
		return nil
	}
	now := d.clk.Millis()
	elapsed := Elapsed(d.timestamp, now)
	if d.on {
		if elapsed >= uint32(d.onMs) {
			if err := d.turnOff(); err != nil {
				return err
			}
			d.timestamp = now
		}
	} else if elapsed >= uint32(d.offMs) {
		if err := d.turnOn(); err != nil {
			return err
		}
		d.timestamp = now
	}
	return nil
}

// Mode returns the current operating mode.
func (d *Dev) Mode() Mode {
	return d.mode
}

// IsOn reports whether the LED is currently lit.
func (d *Dev) IsOn() bool {
	return d.on
}

// Durations returns the blink intervals in milliseconds. They are only
// meaningful in Blinking mode.
func (d *Dev) Durations() (onMs, offMs uint16) {
	return d.onMs, d.offMs
}

// Halt implements conn.Resource. It turns the LED off.
func (d *Dev) Halt() error {
	return d.Disable()
}

func (d *Dev) String() string {
	return fmt.Sprintf("sysled{%s}", d.pin)
}

// syncRegisters applies the host requested state. Only On and Off can be
// requested this way; Blinking is reserved to the local API.
func (d *Dev) syncRegisters() error {
	if d.regs == nil || !d.regs.Changed(regmap.LEDCtrl) {
		return nil
	}
	n, err := d.regs.Read(regmap.LEDCtrl, d.buf[:])
	if err != nil {
		// The flag stays set, the next tick retries.
		return wrap(err)
	}
	var rec regmap.LEDCtrlRecord
	if err := rec.UnmarshalBinary(d.buf[:n]); err != nil {
		d.regs.ClearChanged(regmap.LEDCtrl)
		return wrap(err)
	}
	if rec.LEDState {
		err = d.Enable()
	} else {
		err = d.Disable()
	}
	if err != nil {
		return err
	}
	d.regs.ClearChanged(regmap.LEDCtrl)
	return nil
}

// turnOn and turnOff are the only places where polarity is resolved.
func (d *Dev) turnOn() error {
	if err := d.pin.Out(d.level(true)); err != nil {
		return wrap(err)
	}
	d.on = true
	return nil
}

func (d *Dev) turnOff() error {
	if err := d.pin.Out(d.level(false)); err != nil {
		return wrap(err)
	}
	d.on = false
	return nil
}

func (d *Dev) level(lit bool) gpio.Level {
	if d.opts.Polarity == ActiveLow {
		return gpio.Level(!lit)
	}
	return gpio.Level(lit)
}

func wrap(err error) error {
	return fmt.Errorf("sysled: %w", err)
}

var _ conn.Resource = &Dev{}
var _ fmt.Stringer = &Dev{}
