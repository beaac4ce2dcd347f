package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Prod(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "prod")

	log.Debug("hidden")
	log.Info("visible", "id", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, float64(4), entry["id"])
}

func TestNew_Dev(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "dev")

	log.Debug("debug line", "id", 1)

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), `msg="debug line"`)
	assert.Contains(t, buf.String(), "id=1")
}

func TestNew_StagingIsJSONAtDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "staging").Debug("d")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
}
