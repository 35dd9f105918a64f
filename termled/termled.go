// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termled implements a gpio.PinOut that shows its level as a
// colored block on the terminal using ANSI color codes.
//
// Useful to run the status LED logic on a workstation, before the board is
// wired.
package termled

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ErrNotImplemented is returned by PWM.
var ErrNotImplemented = errors.New("termled: not implemented")

// Opts represents the options available for the emulated LED.
type Opts struct {
	Name string
	// Lit is the color shown while the pin is high.
	Lit color.NRGBA
	// W is where the LED is drawn. Defaults to a colorable stdout.
	W       io.Writer
	Palette *ansi256.Palette

	_ struct{}
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Name: "TERMLED",
	Lit:  color.NRGBA{R: 0, G: 255, B: 0, A: 255},
}

// Pin is an emulated output pin. It is not safe for concurrent use.
type Pin struct {
	name    string
	lit     color.NRGBA
	w       io.Writer
	palette ansi256.Palette
	level   gpio.Level
	buf     bytes.Buffer
}

// New returns a Pin drawing on the console.
func New(opts *Opts) *Pin {
	if opts == nil {
		opts = &DefaultOpts
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	name := opts.Name
	if name == "" {
		name = DefaultOpts.Name
	}
	return &Pin{name: name, lit: opts.Lit, w: w, palette: *p}
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.level = l
	return p.refresh()
}

// Read returns the last level written.
func (p *Pin) Read() gpio.Level {
	return p.level
}

// PWM is not supported.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

// Halt implements conn.Resource.
//
// It restores the terminal colors.
func (p *Pin) Halt() error {
	_, err := io.WriteString(p.w, "\n\033[0m")
	return err
}

// Name returns the name of the pin.
func (p *Pin) Name() string {
	return p.name
}

// Number returns -1, the pin is not backed by hardware.
func (p *Pin) Number() int {
	return -1
}

// Deprecated: returns "Out"
func (p *Pin) Function() string {
	return "Out"
}

func (p *Pin) String() string {
	return p.name
}

func (p *Pin) refresh() error {
	c := color.NRGBA{A: 255}
	if p.level {
		c = p.lit
	}
	p.buf.Reset()
	_, _ = p.buf.WriteString("\r\033[0m")
	_, _ = io.WriteString(&p.buf, p.palette.Block(c))
	_, _ = fmt.Fprintf(&p.buf, "\033[0m %s %-4s", p.name, p.level)
	_, err := p.buf.WriteTo(p.w)
	return err
}

var _ gpio.PinOut = &Pin{}
