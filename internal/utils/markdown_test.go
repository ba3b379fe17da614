package utils

import (
	"strings"
	"testing"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := RenderMarkdown("**bold** <script>alert(1)</script>")
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("expected bold markup, got %q", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("script tag should be removed, got %q", out)
	}
}

func TestRenderMarkdownImages(t *testing.T) {
	out := RenderMarkdown("![cover](https://example.com/a.png)")
	if !strings.Contains(out, `loading="lazy"`) {
		t.Errorf("expected lazy image, got %q", out)
	}
}

func TestRenderMarkdownBlank(t *testing.T) {
	if got := RenderMarkdown("   "); got != "" {
		t.Errorf("RenderMarkdown(blank) = %q, want empty", got)
	}
}
