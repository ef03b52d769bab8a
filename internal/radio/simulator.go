package radio

import (
	"fmt"
	"sync"
	"time"
)

// DefaultSimulatorTimeout is how long a Simulator waits for an injected
// capture before reporting a timeout.
const DefaultSimulatorTimeout = time.Second

// Call records one driver invocation made on a Simulator.
type Call struct {
	Method string
	Args   []any
}

// Simulator is an in-memory Transceiver. It records every call, plays
// back injected captures and can be told to fail. It backs the
// "simulated" radio driver and the package tests.
type Simulator struct {
	mu       sync.Mutex
	calls    []Call
	sent     [][]byte
	failures map[string]error
	closed   bool

	captures chan Capture
	timeout  time.Duration
}

// NewSimulator creates a Simulator whose Receive waits up to timeout for
// an injected capture. A non-positive timeout uses DefaultSimulatorTimeout.
func NewSimulator(timeout time.Duration) *Simulator {
	if timeout <= 0 {
		timeout = DefaultSimulatorTimeout
	}
	return &Simulator{
		failures: make(map[string]error),
		captures: make(chan Capture, 64),
		timeout:  timeout,
	}
}

// Inject queues a capture for Receive.
func (s *Simulator) Inject(data []byte) {
	s.captures <- Capture{Data: data, Timestamp: time.Now()}
}

// FailNext makes the next call to method return err.
func (s *Simulator) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Calls returns a copy of the recorded calls.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Methods returns the recorded method names in order.
func (s *Simulator) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Method
	}
	return out
}

// Sent returns the transmitted blocks.
func (s *Simulator) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// ClearCalls forgets recorded calls and transmissions.
func (s *Simulator) ClearCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.sent = nil
}

func (s *Simulator) record(method string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("simulator %s: closed", method)
	}
	s.calls = append(s.calls, Call{Method: method, Args: args})
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *Simulator) SetModulation(m Modulation) error { return s.record("SetModulation", m) }
func (s *Simulator) SetFrequency(hz uint32) error     { return s.record("SetFrequency", hz) }
func (s *Simulator) SetBaudRate(baud uint32) error    { return s.record("SetBaudRate", baud) }
func (s *Simulator) SetChannelSpacing(hz uint32) error {
	return s.record("SetChannelSpacing", hz)
}
func (s *Simulator) SetChannel(channel uint8) error { return s.record("SetChannel", channel) }
func (s *Simulator) SetPower(level uint8) error     { return s.record("SetPower", level) }
func (s *Simulator) SetPacketLength(n int) error    { return s.record("SetPacketLength", n) }
func (s *Simulator) SetReceiveMode() error          { return s.record("SetReceiveMode") }
func (s *Simulator) SetIdleMode() error             { return s.record("SetIdleMode") }
func (s *Simulator) Reset() error                   { return s.record("Reset") }

// Transmit records the block and its repeat count.
func (s *Simulator) Transmit(data []byte, count int) error {
	if err := s.record("Transmit", len(data), count); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]byte(nil), data...))
	return nil
}

// Receive returns the next injected capture, or a timeout.
func (s *Simulator) Receive() (Capture, error) {
	if err := s.record("Receive"); err != nil {
		return Capture{}, err
	}
	select {
	case c := <-s.captures:
		return c, nil
	case <-time.After(s.timeout):
		return Capture{}, fmt.Errorf("%w: no capture within %s", ErrTransportTimeout, s.timeout)
	}
}

// Close marks the simulator closed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
