// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package regmap implements the register map shared between the embedded
// controller and its host.
//
// The map is split in fixed size regions. The host writes a region as a
// whole; a write marks the region as changed until the consumer clears the
// flag. Every region record ends with a CRC8 of its payload, which is
// verified on write so consumers only ever read validated records.
package regmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/sysled/common"
)

// RegionID identifies a region of the register map.
type RegionID uint8

const (
	// LEDCtrl holds the desired state of the system LED.
	LEDCtrl RegionID = iota
)

var (
	// ErrUnknownRegion is returned when accessing a region not in the map.
	ErrUnknownRegion = errors.New("unknown region")
	// ErrSize is returned when a record does not match the region size.
	ErrSize = errors.New("invalid record size")
	// ErrChecksum is returned when a record fails CRC validation.
	ErrChecksum = errors.New("record checksum mismatch")
)

var regionSizes = map[RegionID]int{
	LEDCtrl: LEDCtrlSize,
}

func (id RegionID) String() string {
	switch id {
	case LEDCtrl:
		return "LED_CTRL"
	default:
		return fmt.Sprintf("RegionID(%d)", uint8(id))
	}
}

type region struct {
	data    []byte
	changed bool
}

// Map is the register map. It is safe for concurrent use: the host side
// usually writes from a different goroutine than the one consuming regions.
type Map struct {
	mu      sync.Mutex
	regions map[RegionID]*region
}

// New returns a Map with every known region zeroed and unchanged.
func New() *Map {
	m := &Map{regions: make(map[RegionID]*region, len(regionSizes))}
	for id, size := range regionSizes {
		m.regions[id] = &region{data: make([]byte, size)}
	}
	return m
}

// Size returns the record size of the region, including the CRC byte.
func (m *Map) Size(id RegionID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return 0, wrap(id, ErrUnknownRegion)
	}
	return len(r.data), nil
}

// Write replaces the content of a region and flags it as changed.
//
// The record must be exactly the region size and its last byte must be the
// CRC8 of the preceding bytes.
func (m *Map) Write(id RegionID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return wrap(id, ErrUnknownRegion)
	}
	if len(data) != len(r.data) {
		return wrap(id, fmt.Errorf("%w: got %d bytes, want %d", ErrSize, len(data), len(r.data)))
	}
	if err := checkCRC(data); err != nil {
		return wrap(id, err)
	}
	copy(r.data, data)
	r.changed = true
	return nil
}

// Changed reports whether the region was written since the last
// ClearChanged. Unknown regions never change.
func (m *Map) Changed(id RegionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	return ok && r.changed
}

// Read copies the region record into buf and returns the number of bytes
// copied. buf must be at least the region size.
func (m *Map) Read(id RegionID, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return 0, wrap(id, ErrUnknownRegion)
	}
	if len(buf) < len(r.data) {
		return 0, wrap(id, fmt.Errorf("%w: buffer of %d bytes, want %d", ErrSize, len(buf), len(r.data)))
	}
	return copy(buf, r.data), nil
}

// ClearChanged acknowledges the last write to the region.
func (m *Map) ClearChanged(id RegionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.regions[id]; ok {
		r.changed = false
	}
}

func checkCRC(record []byte) error {
	n := len(record) - 1
	if n < 0 {
		return ErrSize
	}
	if got, want := record[n], common.CRC8(record[:n]); got != want {
		return fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrChecksum, got, want)
	}
	return nil
}

func wrap(id RegionID, err error) error {
	return fmt.Errorf("regmap: %s: %w", id, err)
}
