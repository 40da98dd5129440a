// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package logger

import (
	"log/slog"
	"strings"
	"testing"
)

func TestCompactOutput(t *testing.T) {
	var b strings.Builder
	log := New(&b, Options{Level: slog.LevelInfo, NoColor: true})

	log.Debug("hidden")
	log.Info("session failure", "code", "hangup", "text", "gone")

	out := b.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record emitted below the configured level")
	}
	if !strings.Contains(out, "INFO session failure code=hangup text=gone") {
		t.Errorf("wrong record format: %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("want one line, got %q", out)
	}
}

func TestWithAttrs(t *testing.T) {
	var b strings.Builder
	log := New(&b, Options{Level: slog.LevelInfo, NoColor: true}).With("component", "ws")

	log.Info("connected")
	if !strings.Contains(b.String(), "component=ws") {
		t.Errorf("bound attribute missing: %q", b.String())
	}
}
