package logger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestStoreOperationFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "debug", Output: &buf})

	l.LogStoreOperation("Chapters", "upsert", 3*time.Millisecond, nil)
	line := buf.Bytes()
	assert.Equal(t, "readerstore", gjson.GetBytes(line, "service").String())
	assert.Equal(t, "Chapters", gjson.GetBytes(line, "table").String())
	assert.Equal(t, "upsert", gjson.GetBytes(line, "operation").String())
	assert.Equal(t, "debug", gjson.GetBytes(line, "level").String())

	buf.Reset()
	l.LogStoreOperation("Chapters", "scan", time.Millisecond, errors.New("boom"))
	assert.Equal(t, "warn", gjson.GetBytes(buf.Bytes(), "level").String())
	assert.Equal(t, "boom", gjson.GetBytes(buf.Bytes(), "error").String())
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "warn", Output: &buf})
	l.Component("sweeper").Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Component("sweeper").Warn().Msg("shown")
	require.NotZero(t, buf.Len())
	assert.Equal(t, "sweeper", gjson.GetBytes(buf.Bytes(), "component").String())
}

func TestGrpcRequestLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Output: &buf})
	l.GrpcLogger("/x/Y").LogGrpcRequest("/x/Y", time.Second, errors.New("bad"))
	assert.Equal(t, "error", gjson.GetBytes(buf.Bytes(), "level").String())
	assert.Equal(t, "/x/Y", gjson.GetBytes(buf.Bytes(), "method").String())
}
