package eavesdrop

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Capture is one received window and what the decoder made of it.
type Capture struct {
	Time   time.Time `cbor:"1,keyasint"`
	Vendor string    `cbor:"2,keyasint"`
	Window string    `cbor:"3,keyasint"`
	Bits   string    `cbor:"4,keyasint,omitempty"`
	Valid  bool      `cbor:"5,keyasint"`
}

var (
	captureEncMode cbor.EncMode
	captureDecMode cbor.DecMode
)

func init() {
	var err error
	captureEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture CBOR encoder mode: %v", err))
	}
	captureDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture CBOR decoder mode: %v", err))
	}
}

// CaptureFile appends captures to a file as a CBOR sequence.
// It is safe for concurrent use.
type CaptureFile struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// OpenCaptureFile opens path for appending, creating it with 0644.
func OpenCaptureFile(path string) (*CaptureFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	return &CaptureFile{file: f, encoder: captureEncMode.NewEncoder(f)}, nil
}

// Record appends c. Encoding errors are ignored so recording never
// disturbs the poll loop.
func (c *CaptureFile) Record(capture Capture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	_ = c.encoder.Encode(capture)
}

// Close closes the file. Later Record calls are ignored.
func (c *CaptureFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}

// CaptureReader iterates over a CBOR capture sequence.
type CaptureReader struct {
	decoder *cbor.Decoder
}

// NewCaptureReader reads captures from r.
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{decoder: captureDecMode.NewDecoder(r)}
}

// Next returns the next capture, or io.EOF.
func (r *CaptureReader) Next() (Capture, error) {
	var c Capture
	if err := r.decoder.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Capture{}, io.EOF
		}
		return Capture{}, err
	}
	return c, nil
}

var _ Recorder = (*CaptureFile)(nil)
