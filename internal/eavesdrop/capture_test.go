package eavesdrop

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures.cbor")
	now := time.Date(2024, 3, 1, 12, 0, 0, 123, time.UTC)

	for i, c := range []Capture{
		{Time: now, Vendor: "hunter", Window: "1001011", Bits: "0101", Valid: true},
		{Time: now.Add(time.Second), Vendor: "hunter", Window: "1"},
	} {
		f, err := OpenCaptureFile(path)
		require.NoError(t, err, i)
		f.Record(c)
		require.NoError(t, f.Close())
		require.NoError(t, f.Close(), "close is idempotent")
		f.Record(c) // ignored after close
	}

	raw, err := os.Open(path)
	require.NoError(t, err)
	defer raw.Close()

	r := NewCaptureReader(raw)
	first, err := r.Next()
	require.NoError(t, err)
	assert.True(t, first.Time.Equal(now))
	assert.Equal(t, "0101", first.Bits)
	assert.True(t, first.Valid)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", second.Window)
	assert.False(t, second.Valid)

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

type sliceRecorder struct{ captures []Capture }

func (s *sliceRecorder) Record(c Capture) { s.captures = append(s.captures, c) }

func TestRecognizerRecordsWindows(t *testing.T) {
	e := newEnv(t)
	valid := window(t, "1011", "fan1")
	rx := &scriptedReceiver{polls: [][]string{{valid, "1"}}}
	rec := &sliceRecorder{}
	r := newRecognizer(t, e, rx, Options{Recorder: rec})

	pollAll(t, r, 1)
	require.Len(t, rec.captures, 2)
	assert.True(t, rec.captures[0].Valid)
	assert.Equal(t, "011011110001", rec.captures[0].Bits)
	assert.False(t, rec.captures[1].Valid)
	assert.Equal(t, "hunter", rec.captures[1].Vendor)
}
