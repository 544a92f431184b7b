package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "prod", "json")
	log.Debug("hidden")
	log.Info("usage committed", "usage_id", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "usage committed", rec["msg"])
	assert.Equal(t, "abc", rec["usage_id"])
	assert.Equal(t, "makerspace", rec["service"])
}

func TestDevTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "dev", "text")
	log.Debug("catalog refreshed", "materials", 3)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "materials=3")
}
