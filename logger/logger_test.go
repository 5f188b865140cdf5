package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProdWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("prod", &buf)

	log.Debug("hidden", nil)
	log.Info("cache cleared", map[string]interface{}{"entries": 3})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cache cleared", line["msg"])
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, float64(3), line["fields"].(map[string]interface{})["entries"])
}

func TestDevWritesTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("dev", &buf)

	log.Debug("fetching", map[string]interface{}{"key": "land-details-42"})

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "land-details-42")
}
