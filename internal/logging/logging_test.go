package logging

import (
	"os"
	"strings"
	"testing"
)

// captureStderr redirects os.Stderr for the duration of fn and returns what
// was written to it.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	fn()

	w.Close()
	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	r.Close()
	return string(buf[:n])
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{LevelDebug: "DEBUG", LevelInfo: "INFO", LevelWarn: "WARN", LevelError: "ERROR"}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestInfofWritesToStderr(t *testing.T) {
	orig := MinLevel
	MinLevel = LevelInfo
	defer func() { MinLevel = orig }()

	out := captureStderr(t, func() { Infof("link ok: %d modules", 3) })
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "link ok: 3 modules") {
		t.Fatalf("Infof output = %q", out)
	}
}

func TestDebugfSuppressedBelowMinLevel(t *testing.T) {
	orig := MinLevel
	MinLevel = LevelInfo
	defer func() { MinLevel = orig }()

	out := captureStderr(t, func() { Debugf("noisy") })
	if out != "" {
		t.Fatalf("Debugf should be suppressed at MinLevel=Info, got %q", out)
	}
}

func TestErrorfAlwaysEmitted(t *testing.T) {
	orig := MinLevel
	MinLevel = LevelError
	defer func() { MinLevel = orig }()

	out := captureStderr(t, func() { Errorf("translation failed for %s", "Foo.bar") })
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "Foo.bar") {
		t.Fatalf("Errorf output = %q", out)
	}
}
