package debug

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogDisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetEnabled(false)

	Log("hidden %d", 1)
	LogTiming("op", time.Millisecond)
	Assert(false, "not checked while disabled")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLogEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetEnabled(true)
	SetOutput(&buf)
	defer SetEnabled(false)

	Log("stale target %s", "0/1")
	LogIf(false, "skipped")
	LogIf(true, "kept")
	LogEnterExit("walk")()

	out := buf.String()
	for _, want := range []string{"stale target 0/1", "kept", "-> walk", "<- walk"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("LogIf(false) should not log, got %q", out)
	}
}

func TestAssertPanicsWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetEnabled(true)
	SetOutput(&buf)
	defer SetEnabled(false)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Assert(false, "boom")
}
