package utils

import (
	"strings"
	"testing"
)

func TestParseID(t *testing.T) {
	if id, ok := ParseID("42"); !ok || id != 42 {
		t.Errorf("ParseID(42) = %d, %v", id, ok)
	}
	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		if _, ok := ParseID(bad); ok {
			t.Errorf("ParseID(%q) should fail", bad)
		}
	}
}

func TestNormalizeTagName(t *testing.T) {
	if got := NormalizeTagName("  Deep Work "); got != "deep work" {
		t.Errorf("NormalizeTagName = %q, want %q", got, "deep work")
	}
}

func TestValidTagName(t *testing.T) {
	for _, ok := range []string{"go", "Health & Wellness", "c++", "研究/笔记", strings.Repeat("界", 100)} {
		if !ValidTagName(ok) {
			t.Errorf("ValidTagName(%q) = false, want true", ok)
		}
	}
	for _, bad := range []string{"", "   ", strings.Repeat("a", 101)} {
		if ValidTagName(bad) {
			t.Errorf("ValidTagName(%q) = true, want false", bad)
		}
	}
}
