package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func TestShouldUseColorEnv(t *testing.T) {
	t.Run("NO_COLOR wins", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("CLICOLOR_FORCE", "1")
		if ShouldUseColor() {
			t.Error("NO_COLOR set, colour should be off")
		}
	})
	t.Run("CLICOLOR=0", func(t *testing.T) {
		unsetenv(t, "NO_COLOR")
		t.Setenv("CLICOLOR", "0")
		t.Setenv("CLICOLOR_FORCE", "1")
		if ShouldUseColor() {
			t.Error("CLICOLOR=0 should disable colour")
		}
	})
	t.Run("CLICOLOR_FORCE", func(t *testing.T) {
		unsetenv(t, "NO_COLOR")
		t.Setenv("CLICOLOR", "")
		t.Setenv("CLICOLOR_FORCE", "1")
		if !ShouldUseColor() {
			t.Error("CLICOLOR_FORCE should enable colour")
		}
	})
}

func TestIconsFallBackToASCII(t *testing.T) {
	t.Setenv("TASKER_NO_EMOJI", "1")
	if got := iconPass.String(); got != "[x]" {
		t.Errorf("pass icon = %q", got)
	}
	if got := iconPending.String(); got != "[ ]" {
		t.Errorf("pending icon = %q", got)
	}
}

func TestRenderMarkdownPlainWithoutColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	md := "# Plan\n\n- call the bank\n"
	if got := RenderMarkdown(md); got != md {
		t.Errorf("got %q", got)
	}
}

func TestPageWritesDirectlyToBuffer(t *testing.T) {
	var buf bytes.Buffer
	content := strings.Repeat("row\n", 200)
	if err := Page(&buf, content, PagerOptions{}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != content {
		t.Error("content should be written unchanged")
	}
}

func TestPagerCommand(t *testing.T) {
	t.Setenv("TASKER_PAGER", "")
	t.Setenv("PAGER", "more -s")
	if got := pagerCommand(); strings.Join(got, " ") != "more -s" {
		t.Errorf("got %v", got)
	}
	t.Setenv("TASKER_PAGER", "bat --plain")
	if got := pagerCommand(); got[0] != "bat" {
		t.Errorf("TASKER_PAGER should win, got %v", got)
	}
	t.Setenv("TASKER_PAGER", "")
	t.Setenv("PAGER", "")
	if got := pagerCommand(); got[0] != "less" {
		t.Errorf("default = %v", got)
	}
}
