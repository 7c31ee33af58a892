// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package battery

import (
	"errors"
	"testing"
)

type fakeConn struct {
	data []byte
	err  error
}

func (c fakeConn) ReadCharacteristic(characteristic string) ([]byte, error) {
	if characteristic != LevelCharacteristicID {
		return nil, errors.New("unexpected characteristic")
	}
	return c.data, c.err
}

func TestLevel(t *testing.T) {
	got, err := Level(fakeConn{data: []byte{83}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 83 {
		t.Errorf("unexpected level: got %d, want 83", got)
	}

	readErr := errors.New("read refused")
	if _, err := Level(fakeConn{err: readErr}); !errors.Is(err, readErr) {
		t.Errorf("unexpected error: got %v, want %v", err, readErr)
	}

	if _, err := Level(fakeConn{}); err == nil {
		t.Error("expected error for empty response")
	}
}
