package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHandlerLevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	log.With("domain", "labor").WithGroup("stage").Warn("slow", "ms", 120)
	log.Error("down")
	log.Info("Collaboration requested")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, colorYellow+"WARN  slow domain=labor stage.ms=120")
	assert.Contains(t, out, colorRed+"ERROR down")
	assert.Contains(t, out, colorGreen+"INFO  Collaboration requested")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
