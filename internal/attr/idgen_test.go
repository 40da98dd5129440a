// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package attr

import (
	"strings"
	"testing"
)

func TestRandomID(t *testing.T) {
	id := RandomID()
	if len(id) != IDLen {
		t.Errorf("wrong length for random ID: want=%d, got=%d", IDLen, len(id))
	}
	if id == RandomID() {
		t.Error("two random IDs should not be equal")
	}
}

func TestRandomLen(t *testing.T) {
	for _, n := range []int{1, 7, 10, 32} {
		id := RandomLen(n)
		if len(id) != n {
			t.Errorf("wrong length for RandomLen(%d): got=%d", n, len(id))
		}
		if strings.ContainsAny(id, "<>&'\"") {
			t.Errorf("random ID contains reserved characters: %q", id)
		}
	}
}
