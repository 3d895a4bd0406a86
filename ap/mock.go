package ap

import (
	"sync"

	"github.com/go-errors/errors"
)

// check MockAp compliance to its interface during compile time
var _ Ap = (*MockAp)(nil)

// MockAp fakes an access point for development and tests.
type MockAp struct {
	mu sync.Mutex

	// StartErr, when set, fails every start.
	StartErr error

	ssid    string
	running bool
	starts  int
	stops   int
}

func NewMockAp(ssid string) *MockAp {
	return &MockAp{
		ssid: ssid,
	}
}

func (m *MockAp) Ssid() string {
	return m.ssid
}

func (m *MockAp) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StartErr != nil {
		return m.StartErr
	}

	if m.running {
		return errors.New("access point already started")
	}

	m.running = true
	m.starts++

	return nil
}

func (m *MockAp) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.running = false
		m.stops++
	}

	return nil
}

// Running reports whether the fake access point is currently up.
func (m *MockAp) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

// Starts reports how often the access point was raised.
func (m *MockAp) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.starts
}

// Stops reports how often the access point was torn down.
func (m *MockAp) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stops
}
