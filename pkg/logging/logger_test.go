package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"fatal":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", Output: &buf})

	l.Info("signed", "format", "cms")
	l.Debug("hidden")
	l.Warnf("plaintext key written to %s", "dek.bin")

	out := buf.String()
	assert.Contains(t, out, "msg=signed")
	assert.Contains(t, out, "format=cms")
	assert.Contains(t, out, "plaintext key written to dek.bin")
	assert.NotContains(t, out, "hidden")
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: FormatJSON, Output: &buf}).With("backend", "local")

	l.Debugf("digest %s", "sha256")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "digest sha256", rec["msg"])
	assert.Equal(t, "local", rec["backend"])
}

func TestLogger_Errors(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})

	l.MaybeError(nil)
	assert.Empty(t, buf.String())

	l.MaybeError(errors.New("token closed"))
	l.Error(errors.New("sign failed"), "mode", "direct-token")
	l.Errorf("code %d", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "token closed")
	assert.Contains(t, lines[1], "mode=direct-token")
	assert.Contains(t, lines[2], "code 7")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("nothing")
	l.Errorf("still nothing")
}
