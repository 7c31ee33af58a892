// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heart

import (
	"errors"
	"testing"
	"time"
)

var decodeTests = []struct {
	name string
	data []byte
	bpm  int
	err  error
}{
	{name: "typical", data: []byte{0x00, 75}, bpm: 75},
	{name: "flags ignored", data: []byte{0x16, 62}, bpm: 62},
	{name: "lower bound", data: []byte{0x00, 30}, bpm: 30},
	{name: "upper bound", data: []byte{0x00, 240}, bpm: 240},
	{name: "below range", data: []byte{0x00, 29}, err: ErrOutOfRange},
	{name: "above range", data: []byte{0x00, 241}, err: ErrOutOfRange},
	{name: "empty", data: nil, err: ErrInvalidFormat},
	{name: "short", data: []byte{0x00}, err: ErrInvalidFormat},
	{name: "long", data: []byte{0x00, 75, 0x01}, err: ErrInvalidFormat},
}

func TestDecode(t *testing.T) {
	at := time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)
	for _, test := range decodeTests {
		r, err := Decode(at, test.data)
		if !errors.Is(err, test.err) {
			t.Errorf("%s: unexpected error: got %v, want %v", test.name, err, test.err)
			continue
		}
		if test.err != nil {
			continue
		}
		if r.BPM != test.bpm {
			t.Errorf("%s: unexpected rate: got %d, want %d", test.name, r.BPM, test.bpm)
		}
		if !r.At.Equal(at) {
			t.Errorf("%s: unexpected observation time: got %v, want %v", test.name, r.At, at)
		}
	}
}
