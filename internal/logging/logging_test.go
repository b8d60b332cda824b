package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestLogSymbolFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogSymbolFailure(logger, "aapl", errors.New("boom"))

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "error", event["level"])
	assert.Equal(t, "aapl", event["symbol"])
	assert.Equal(t, "boom", event["error"])
	assert.Equal(t, "collect_failed", event["event"])
}

func TestLogAPICallIsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	LogAPICall(logger, "GET", "/stock/aapl/earnings", time.Millisecond, nil)
	assert.Empty(t, buf.String())

	LogAPICall(logger.Level(zerolog.DebugLevel), "GET", "/stock/aapl/earnings", time.Millisecond, nil)
	assert.Contains(t, buf.String(), `"endpoint":"/stock/aapl/earnings"`)
}
