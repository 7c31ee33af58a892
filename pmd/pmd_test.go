// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmd

import (
	"bytes"
	"errors"
	"testing"
)

func TestControlCommand(t *testing.T) {
	start := ControlCommand(true)
	want := []byte{0x02, 0x00, 0x00, 0x01, 0x82, 0x00, 0x01, 0x01, 0x0e, 0x00}
	if !bytes.Equal(start, want) {
		t.Errorf("unexpected start command: got %#x, want %#x", start, want)
	}
	stop := ControlCommand(false)
	want = []byte{0x02, 0x00, 0x00, 0x01, 0x82, 0x00, 0x01, 0x01, 0x00, 0x00}
	if !bytes.Equal(stop, want) {
		t.Errorf("unexpected stop command: got %#x, want %#x", stop, want)
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []Sample
		wantErr error
	}{
		{
			name: "single sample",
			data: []byte{0x02, 0x34, 0x12, 0x01, 0x00, 0x00},
			want: []Sample{{Timestamp: 0x1234, Microvolts: 0.25}},
		},
		{
			name: "negative sample",
			data: []byte{0x02, 0x00, 0x00, 0xff, 0xff, 0xff},
			want: []Sample{{Timestamp: 0, Microvolts: -0.25}},
		},
		{
			name: "shared timestamp",
			data: []byte{0x02, 0x10, 0x00, 0x04, 0x00, 0x00, 0xfc, 0xff, 0xff, 0x00, 0x01, 0x00},
			want: []Sample{
				{Timestamp: 16, Microvolts: 1},
				{Timestamp: 16, Microvolts: -1},
				{Timestamp: 16, Microvolts: 64},
			},
		},
		{
			name: "empty payload",
			data: []byte{0x02, 0x00, 0x00},
			want: nil,
		},
		{
			name: "other frame type",
			data: []byte{0x01, 0x00, 0x00, 0x01, 0x02, 0x03},
			want: nil,
		},
		{
			name: "empty frame",
			data: nil,
			want: nil,
		},
		{
			name:    "truncated header",
			data:    []byte{0x02, 0x00},
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "ragged payload",
			data:    []byte{0x02, 0x00, 0x00, 0x01, 0x02},
			wantErr: ErrInvalidFormat,
		},
	}
	for _, test := range tests {
		got, err := DecodeFrame(test.data)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("%s: unexpected error: got %v, want %v", test.name, err, test.wantErr)
			continue
		}
		if test.wantErr != nil {
			continue
		}
		if len(got) != len(test.want) {
			t.Errorf("%s: unexpected sample count: got %d, want %d", test.name, len(got), len(test.want))
			continue
		}
		for i, s := range got {
			if s != test.want[i] {
				t.Errorf("%s: unexpected sample %d: got %+v, want %+v", test.name, i, s, test.want[i])
			}
		}
	}
}
