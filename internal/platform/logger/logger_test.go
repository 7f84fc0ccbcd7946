package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")

	log.Info("dropped")
	log.Warn("search exceeded latency budget", "duration_ms", 71)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "search exceeded latency budget", entry["msg"])
	assert.Equal(t, "shepherd", entry["service"])
	assert.EqualValues(t, 71, entry["duration_ms"])
}
