package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "production", "warn")

	logger.Info().Msg("dropped")
	logger.Warn().Str("appointment_id", "ap-1").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kept", line["message"])
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "ap-1", line["appointment_id"])
	require.Equal(t, serviceName, line["service"])
	require.Contains(t, line, "caller")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger := newWithWriter(&bytes.Buffer{}, "production", "chatty")
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNew_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "development", "debug")

	logger.Debug().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
