package logging

import (
	"bytes"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestConfigure_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure(&buf, "warn", "json"))

	log.Info("hidden")
	log.WithField("rows", 3).Warn("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, float64(3), entry["rows"])
}

func TestConfigure_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure(&buf, "debug", "text"))

	log.Debug("store opened")
	assert.Contains(t, buf.String(), "store opened")
}

func TestConfigure_Rejects(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Configure(&buf, "loud", "text"))
	assert.Error(t, Configure(&buf, "info", "xml"))
}
