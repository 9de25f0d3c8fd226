package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "stakingd", Env: "test", Level: "debug"})
	logger.Debug("applied", slog.String("op", "stake"), MaskField("user", "cook1abc"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "applied", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "stakingd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "stake", line["op"])
	require.Equal(t, RedactedValue, line["user"])
	require.Contains(t, line, "timestamp")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskField(t *testing.T) {
	require.True(t, IsAllowlisted(" Pool "))

	addr := "cook1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqxyz9"
	require.Equal(t, "cook…xyz9", MaskField("caller", addr).Value.String())
	require.Equal(t, RedactedValue, MaskField("client", "10.0.0.1").Value.String())
	require.Equal(t, RedactedValue, MaskField("secret", "hunter2").Value.String())
	require.Equal(t, "stake", MaskField("op", "stake").Value.String())
	require.Equal(t, "", MaskField("user", "").Value.String())
}
