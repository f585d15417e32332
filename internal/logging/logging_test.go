package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/spirits-ledger/internal/logging"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.NewWithWriter(&buf, "warn", "json")
	require.NoError(t, err)

	log.Info().Msg("dropped")
	log.Warn().Str("op", "transfer").Msg("operation rejected")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "transfer", rec["op"])
	assert.Equal(t, "operation rejected", rec["message"])
	assert.Contains(t, rec, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.NewWithWriter(&buf, "", "console")
	require.NoError(t, err)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestNewWithWriter_Rejects(t *testing.T) {
	_, err := logging.NewWithWriter(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)
	_, err = logging.NewWithWriter(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
