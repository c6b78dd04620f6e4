// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 0, ""},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		got := TruncateRunes(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("TruncateRunes(%q, %d) produced invalid UTF-8", tt.in, tt.max)
		}
	}
}

func TestTruncateWidthHandlesWideRunes(t *testing.T) {
	got := TruncateWidth("漢字漢字漢字", 7)
	if !utf8.ValidString(got) {
		t.Fatalf("invalid UTF-8: %q", got)
	}
	// 7 columns fit two wide runes plus the ellipsis.
	if got != "漢字..." {
		t.Errorf("TruncateWidth = %q", got)
	}
}

func TestNormalizeInput(t *testing.T) {
	if got := NormalizeInput("  hello  "); got != "hello" {
		t.Errorf("NormalizeInput = %q", got)
	}
	if got := NormalizeInput("   \t\n "); got != "" {
		t.Errorf("whitespace-only input = %q, want empty", got)
	}
	// Decomposed e + combining acute normalizes to the composed form.
	if got := NormalizeInput("é"); got != "é" {
		t.Errorf("NFC normalization = %q, want %q", got, "é")
	}
}
