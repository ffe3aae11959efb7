package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsole(&buf, false)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}

	buf.Reset()
	verbose := NewConsole(&buf, true)
	verbose.Debug().Msg("verbose")
	if !strings.Contains(buf.String(), "verbose") {
		t.Fatalf("verbose logger dropped a debug line: %q", buf.String())
	}
}
