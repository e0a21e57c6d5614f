package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCapture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prevOut, prevErr := stdout, stderr
	prevMode := IsJSON()
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	SetWriters(out, errBuf)
	t.Cleanup(func() {
		stdout, stderr = prevOut, prevErr
		SetJSON(prevMode)
	})
	return out, errBuf
}

func TestJSONMode(t *testing.T) {
	withCapture(t)

	assert.False(t, IsJSON())
	SetJSON(true)
	assert.True(t, IsJSON())
	SetJSON(false)
	assert.False(t, IsJSON())
}

func TestJSON(t *testing.T) {
	out, errBuf := withCapture(t)

	require.NoError(t, JSON(map[string]int{"runs": 3}))
	assert.Equal(t, "{\n  \"runs\": 3\n}\n", out.String())
	assert.Empty(t, errBuf.String())
}

func TestJSONError(t *testing.T) {
	out, _ := withCapture(t)

	require.NoError(t, JSONError(errors.New("boom"), 2))

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, "boom", payload.Message)
	assert.Equal(t, 2, payload.Code)
}

func TestTable(t *testing.T) {
	out, errBuf := withCapture(t)

	Table([]string{"CHECK", "RESULT"}, [][]string{
		{"clickhouse", "passed"},
		{"redis", "failed"},
	})

	assert.Empty(t, out.String())
	got := errBuf.String()
	assert.Contains(t, got, "CHECK")
	assert.Contains(t, got, "clickhouse  passed")
	assert.Contains(t, got, "redis")
}
