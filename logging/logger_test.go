package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/crytic/schlau/logging/colors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddAndRemoveWriter ensures writers are deduplicated and can be removed again.
func TestAddAndRemoveWriter(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)

	var structured, unstructured bytes.Buffer
	logger.AddWriter(&structured, STRUCTURED)
	logger.AddWriter(&unstructured, UNSTRUCTURED)
	logger.AddWriter(&structured, STRUCTURED)
	assert.Len(t, logger.writers, 2)

	logger.Info("deployed ", "contract")
	assert.Contains(t, structured.String(), `"message":"deployed contract"`)
	assert.Contains(t, unstructured.String(), "deployed contract")

	logger.RemoveWriter(&structured)
	assert.Len(t, logger.writers, 1)
	structured.Reset()
	logger.Info("second")
	assert.Empty(t, structured.String())
	assert.Contains(t, unstructured.String(), "second")
}

// TestStructuredInfoAndError verifies that StructuredLogInfo and errors become fields instead of message text.
func TestStructuredInfoAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.WarnLevel, false, &buf)

	logger.Info("not emitted")
	assert.Empty(t, buf.String())

	logger.Warn("call failed", StructuredLogInfo{"selector": "0x9bae9d5e"}, errors.New("trapped"))

	var event map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event))
	assert.Equal(t, "call failed", event["message"])
	assert.Equal(t, "trapped", event["error"])
	info, ok := event["info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0x9bae9d5e", info["selector"])
}

// TestSubLoggerContext checks that sub-loggers carry their key-value pairs and inherit writers.
func TestSubLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.DebugLevel, false, &buf)
	sub := logger.NewSubLogger("module", "ledger").NewSubLogger("sandbox", "abc")

	sub.Debug("hello")
	line := buf.String()
	assert.Contains(t, line, `"module":"ledger"`)
	assert.Contains(t, line, `"sandbox":"abc"`)

	buf.Reset()
	logger.Debug("root")
	assert.NotContains(t, buf.String(), "module")
}

// TestBuildMsgsColors verifies console and plain renderings of a colored argument list.
func TestBuildMsgsColors(t *testing.T) {
	colors.SetEnabled(true)
	defer colors.SetEnabled(true)

	console, plain, err, info := buildMsgs("a", colors.Bold, 1, colors.Reset, "b")
	assert.NoError(t, err)
	assert.Nil(t, info)
	assert.Equal(t, "a1b", plain)
	assert.True(t, strings.HasPrefix(console, "a"))

	colors.SetEnabled(false)
	console, _, _, _ = buildMsgs("a", colors.Bold, 1, colors.Reset, "b")
	assert.Equal(t, "a1b", console)
}
