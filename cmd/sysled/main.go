// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// sysled drives the system status LED from the command line.
//
// Without -pin, the LED is emulated on the terminal. Commands are read from
// stdin, one per line:
//
//	on           request the LED on through the LED_CTRL register
//	off          request the LED off through the LED_CTRL register
//	blink ON OFF blink with ON and OFF milliseconds
//
// Use -trace to save a timing diagram of the run when exiting.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/sysled/ledtrace"
	"github.com/GermanBionicSystems/sysled/regmap"
	"github.com/GermanBionicSystems/sysled/sysled"
	"github.com/GermanBionicSystems/sysled/termled"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type command struct {
	led         *bool
	onMs, offMs uint16
}

// parseBlink parses "ON,OFF" milliseconds.
func parseBlink(s string) (onMs, offMs uint16, err error) {
	on, off, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid blink %q: want ON,OFF", s)
	}
	return parseDurations(on, off)
}

func parseDurations(on, off string) (uint16, uint16, error) {
	a, err := strconv.ParseUint(strings.TrimSpace(on), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid on duration: %w", err)
	}
	b, err := strconv.ParseUint(strings.TrimSpace(off), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid off duration: %w", err)
	}
	return uint16(a), uint16(b), nil
}

func parseCommand(line string) (command, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return command{}, errors.New("empty command")
	}
	switch f[0] {
	case "on", "off":
		if len(f) != 1 {
			return command{}, fmt.Errorf("%s takes no argument", f[0])
		}
		v := f[0] == "on"
		return command{led: &v}, nil
	case "blink":
		if len(f) != 3 {
			return command{}, errors.New("usage: blink ON OFF")
		}
		on, off, err := parseDurations(f[1], f[2])
		return command{onMs: on, offMs: off}, err
	default:
		return command{}, fmt.Errorf("unknown command %q", f[0])
	}
}

// readCommands forwards register requests to regs and blink requests to
// blinks until r is exhausted.
func readCommands(r io.Reader, regs *regmap.Map, blinks chan<- command) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		if strings.TrimSpace(s.Text()) == "" {
			continue
		}
		c, err := parseCommand(s.Text())
		if err != nil {
			log.Print(err)
			continue
		}
		if c.led == nil {
			blinks <- c
			continue
		}
		rec, _ := regmap.LEDCtrlRecord{LEDState: *c.led}.MarshalBinary()
		if err := regs.Write(regmap.LEDCtrl, rec); err != nil {
			log.Print(err)
		}
	}
}

func openPin(name string) (gpio.PinOut, error) {
	if name == "" {
		return termled.New(nil), nil
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to find %s", name)
	}
	return p, nil
}

func mainImpl() error {
	pinName := flag.String("pin", "", "GPIO driving the LED; empty emulates it on the terminal")
	activeLow := flag.Bool("active-low", false, "LED is lit when the pin is low")
	tick := flag.Duration("tick", 10*time.Millisecond, "scheduler tick period")
	blink := flag.String("blink", "", "start blinking with ON,OFF milliseconds")
	duration := flag.Duration("duration", 0, "exit after this duration; 0 runs until interrupted")
	trace := flag.String("trace", "", "save a PNG timing diagram to this file on exit")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	if *tick <= 0 {
		return errors.New("-tick must be positive")
	}

	pin, err := openPin(*pinName)
	if err != nil {
		return err
	}
	clk := sysled.NewSystemClock()
	rec := ledtrace.NewRecorder(pin, clk)
	regs := regmap.New()
	opts := sysled.DefaultOpts
	if *activeLow {
		opts.Polarity = sysled.ActiveLow
	}
	led := sysled.New(rec, clk, regs, &opts)
	if err := led.Init(); err != nil {
		return err
	}
	start := clk.Millis()
	if *blink != "" {
		on, off, err := parseBlink(*blink)
		if err != nil {
			return err
		}
		led.Blink(on, off)
	}

	blinks := make(chan command)
	go readCommands(os.Stdin, regs, blinks)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	var stop <-chan time.Time
	if *duration > 0 {
		stop = time.After(*duration)
	}
	t := time.NewTicker(*tick)
	defer t.Stop()

loop:
	for {
		select {
		case <-quit:
			break loop
		case <-stop:
			break loop
		case c := <-blinks:
			led.Blink(c.onMs, c.offMs)
		case <-t.C:
			if err := led.PeriodicWork(); err != nil {
				log.Print(err)
			}
		}
	}

	err = led.Halt()
	if h, ok := pin.(*termled.Pin); ok {
		_ = h.Halt()
	}
	if *trace != "" {
		img, err2 := ledtrace.Render(rec.Edges(), start, clk.Millis(), &ledtrace.RenderOpts{
			Width:    1200,
			Height:   160,
			FontSize: ledtrace.DefaultRenderOpts.FontSize,
			GridMs:   gridFor(clk.Millis() - start),
			Title:    led.String(),
		})
		if err2 == nil {
			err2 = ledtrace.SavePNG(*trace, img)
		}
		if err == nil {
			err = err2
		}
	}
	return err
}

// gridFor picks a grid spacing giving about ten divisions.
func gridFor(spanMs uint32) uint32 {
	for _, g := range []uint32{10, 50, 100, 500, 1000, 5000, 10000, 60000} {
		if spanMs/g <= 12 {
			return g
		}
	}
	return 600000
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "sysled: %s.\n", err)
		os.Exit(1)
	}
}
