// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regmap

import (
	"fmt"

	"github.com/GermanBionicSystems/sysled/common"
)

// LEDCtrlSize is the size of the LED_CTRL record: one flags byte and the
// CRC8.
const LEDCtrlSize = 2

const ledStateBit = 0x01

// LEDCtrlRecord is the decoded LED_CTRL region.
type LEDCtrlRecord struct {
	// LEDState is true when the host wants the LED lit.
	LEDState bool
}

// MarshalBinary encodes the record, CRC included.
func (r LEDCtrlRecord) MarshalBinary() ([]byte, error) {
	var flags byte
	if r.LEDState {
		flags |= ledStateBit
	}
	return common.AppendCRC8([]byte{flags}), nil
}

// UnmarshalBinary decodes a LED_CTRL record. Reserved flag bits are
// ignored.
func (r *LEDCtrlRecord) UnmarshalBinary(b []byte) error {
	if len(b) != LEDCtrlSize {
		return fmt.Errorf("regmap: %s: %w: got %d bytes, want %d", LEDCtrl, ErrSize, len(b), LEDCtrlSize)
	}
	if err := checkCRC(b); err != nil {
		return wrap(LEDCtrl, err)
	}
	r.LEDState = b[0]&ledStateBit != 0
	return nil
}
