// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledtrace

import (
	"errors"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/gpio"
)

// RenderOpts controls the timing diagram.
type RenderOpts struct {
	Width    int
	Height   int
	FontSize float64
	// GridMs is the spacing of the vertical time grid. 0 disables it.
	GridMs uint32
	Title  string
}

// DefaultRenderOpts is the recommended default options.
var DefaultRenderOpts = RenderOpts{
	Width:    800,
	Height:   140,
	FontSize: 12,
	GridMs:   100,
}

const margin = 40.0

// Render draws edges between from and until as a square wave. Timestamps
// are taken relative to from, so a window spanning a clock wrap renders
// correctly.
func Render(edges []Edge, from, until uint32, opts *RenderOpts) (image.Image, error) {
	if opts == nil {
		opts = &DefaultRenderOpts
	}
	span := until - from
	if span == 0 {
		return nil, errors.New("ledtrace: empty time window")
	}
	if opts.Width <= 2*margin || opts.Height <= 2*margin {
		return nil, fmt.Errorf("ledtrace: image %dx%d too small", opts.Width, opts.Height)
	}
	face, err := loadFace(opts.FontSize)
	if err != nil {
		return nil, err
	}
	w, h := float64(opts.Width), float64(opts.Height)
	x := func(ms uint32) float64 {
		return margin + float64(ms-from)*(w-2*margin)/float64(span)
	}
	yHigh, yLow := margin, h-margin
	y := func(l gpio.Level) float64 {
		if l {
			return yHigh
		}
		return yLow
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(face)

	if opts.GridMs != 0 {
		dc.SetRGB(0.85, 0.85, 0.85)
		dc.SetLineWidth(1)
		for t := uint32(0); t <= span; t += opts.GridMs {
			dc.DrawLine(x(from+t), yHigh-8, x(from+t), yLow+8)
			dc.Stroke()
			dc.DrawStringAnchored(fmt.Sprintf("%d", t), x(from+t), yLow+22, 0.5, 0)
			if t+opts.GridMs < t {
				break
			}
		}
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored("H", margin/2, yHigh, 0.5, 0.35)
	dc.DrawStringAnchored("L", margin/2, yLow, 0.5, 0.35)
	if opts.Title != "" {
		dc.DrawStringAnchored(opts.Title, w/2, margin/2, 0.5, 0.35)
	}

	dc.SetRGB(0.1, 0.4, 0.9)
	dc.SetLineWidth(2)
	level, known := levelBefore(edges, from)
	if known {
		dc.MoveTo(x(from), y(level))
	}
	for _, e := range edges {
		rel := e.Millis - from
		if rel > span {
			continue
		}
		ex := x(e.Millis)
		if known {
			dc.LineTo(ex, y(level))
			dc.LineTo(ex, y(e.Level))
		} else {
			dc.MoveTo(ex, y(e.Level))
			known = true
		}
		level = e.Level
	}
	if known {
		dc.LineTo(x(until), y(level))
		dc.Stroke()
	}
	return dc.Image(), nil
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("ledtrace: %w", err)
	}
	return nil
}

// levelBefore returns the level in effect at from, taking into account
// only edges recorded before it.
func levelBefore(edges []Edge, from uint32) (gpio.Level, bool) {
	var l gpio.Level
	known := false
	for _, e := range edges {
		if from-e.Millis > 1<<31 || e.Millis == from {
			break
		}
		l, known = e.Level, true
	}
	return l, known
}

func loadFace(size float64) (font.Face, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("ledtrace: %w", err)
	}
	if size <= 0 {
		size = DefaultRenderOpts.FontSize
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}
