package network

import (
	"context"
	"sync"
)

// check MockWifi compliance to its interface during compile time
var _ Wifi = (*MockWifi)(nil)

// MockWifi fakes a radio for development and tests. Scan results and
// join outcomes are scripted by the caller.
type MockWifi struct {
	mu sync.Mutex

	// Networks is returned by every scan.
	Networks []*Network
	// ScanErr, when set, fails every scan.
	ScanErr error
	// ConnectFunc decides the outcome of a join attempt. A nil func
	// accepts everything.
	ConnectFunc func(credentials *Credentials) error

	started  bool
	scans    int
	connects []*Credentials
}

func NewMockWifi() *MockWifi {
	return &MockWifi{}
}

func (m *MockWifi) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true

	return nil
}

func (m *MockWifi) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = false

	return nil
}

func (m *MockWifi) Scan(ctx context.Context) ([]*Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scans++

	if m.ScanErr != nil {
		return nil, m.ScanErr
	}

	networks := make([]*Network, len(m.Networks))
	copy(networks, m.Networks)

	return networks, nil
}

func (m *MockWifi) Connect(ctx context.Context, credentials *Credentials) error {
	m.mu.Lock()
	connect := m.ConnectFunc
	m.connects = append(m.connects, credentials)
	m.mu.Unlock()

	if connect == nil {
		return nil
	}

	return connect(credentials)
}

// Scans reports how many scans have run.
func (m *MockWifi) Scans() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.scans
}

// Connects reports the join attempts seen so far.
func (m *MockWifi) Connects() []*Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()

	connects := make([]*Credentials, len(m.connects))
	copy(connects, m.connects)

	return connects
}
