package ydlidar

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"
)

// ReplayPort is a Port that plays back a raw capture of a G2 scan session:
// the scan command response header followed by scan packets. It lets the
// driver run without hardware.
type ReplayPort struct {
	// Loop restarts playback after the response header at end of data.
	Loop bool

	mu      sync.Mutex
	data    []byte
	pos     int
	dtr     bool
	closed  bool
	written [][]byte
}

// NewReplayPort returns a ReplayPort over data.
func NewReplayPort(data []byte, loop bool) (*ReplayPort, error) {
	if len(data) < responseHeaderSize || data[0] != preCommand || data[1] != 0x5A {
		return nil, fmt.Errorf("capture does not start with a response header")
	}
	return &ReplayPort{Loop: loop, data: data}, nil
}

// OpenReplayPort reads a capture file.
func OpenReplayPort(fname string, loop bool) (*ReplayPort, error) {
	c, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	return NewReplayPort(c, loop)
}

func (r *ReplayPort) Read(p []byte) (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, fmt.Errorf("port closed")
	}
	if r.pos >= len(r.data) && r.Loop && len(r.data) > responseHeaderSize {
		r.pos = responseHeaderSize
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	r.mu.Unlock()

	if n == 0 {
		// Idle line: behave like a read timeout.
		time.Sleep(time.Millisecond)
	}
	return n, nil
}

// Write records commands. A start scan command rewinds playback.
func (r *ReplayPort) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, fmt.Errorf("port closed")
	}
	r.written = append(r.written, bytes.Clone(p))
	if bytes.Equal(p, []byte{preCommand, startScanning}) {
		r.pos = 0
	}
	return len(p), nil
}

// Commands returns the writes seen so far.
func (r *ReplayPort) Commands() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.written...)
}

func (r *ReplayPort) SetDTR(dtr bool) error {
	r.mu.Lock()
	r.dtr = dtr
	r.mu.Unlock()
	return nil
}

// DTR reports whether the motor would be enabled.
func (r *ReplayPort) DTR() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dtr
}

func (r *ReplayPort) SetReadTimeout(time.Duration) error { return nil }
func (r *ReplayPort) ResetInputBuffer() error             { return nil }
func (r *ReplayPort) ResetOutputBuffer() error            { return nil }

func (r *ReplayPort) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
