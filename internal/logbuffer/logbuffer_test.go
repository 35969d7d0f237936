package logbuffer

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_CapturesZerolog(t *testing.T) {
	buf := New(10)
	logger := zerolog.New(buf).With().Str("component", "evaluator").Logger()

	logger.Warn().Str("station", "Test Pier").Msg("Alert created")

	entries := buf.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "evaluator", entries[0].Component)
	assert.Equal(t, "Alert created", entries[0].Message)
	assert.Contains(t, entries[0].Raw, `"station":"Test Pier"`)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestBuffer_RawLines(t *testing.T) {
	buf := New(2)
	_, err := buf.Write([]byte("plain text\n"))
	require.NoError(t, err)

	entries := buf.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "plain text", entries[0].Message)
}

func TestBuffer_Wraps(t *testing.T) {
	buf := New(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(buf, "line %d\n", i)
	}

	entries := buf.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "line 2", entries[0].Message)
	assert.Equal(t, "line 4", entries[2].Message)

	recent := buf.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "line 3", recent[0].Message)

	assert.Len(t, buf.Recent(10), 3)

	buf.Clear()
	assert.Empty(t, buf.Entries())
}
