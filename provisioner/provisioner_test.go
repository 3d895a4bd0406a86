package provisioner

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/go-errors/errors"
	"github.com/greenoaklabs/portald/ap"
	"github.com/greenoaklabs/portald/connectivity"
	"github.com/greenoaklabs/portald/network"
	"github.com/greenoaklabs/portald/portal"
	"github.com/greenoaklabs/portald/portaldb"
)

// scriptedChecker reports Offline until flipped.
type scriptedChecker struct {
	mu     sync.Mutex
	online bool
	checks int
}

func (s *scriptedChecker) Check(ctx context.Context) connectivity.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checks++

	if s.online {
		return connectivity.Online
	}

	return connectivity.Offline
}

func (s *scriptedChecker) setOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = online
}

func (s *scriptedChecker) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.checks
}

// captureHandler records the sessions it is handed and serves nothing.
type captureHandler struct {
	mu       sync.Mutex
	sessions []*portal.Session
}

func (h *captureHandler) SetSession(session *portal.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions = append(h.sessions, session)
}

func (h *captureHandler) Serve(lis net.Listener) error {
	<-make(chan struct{})
	return nil
}

func (h *captureHandler) Sessions() []*portal.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := make([]*portal.Session, len(h.sessions))
	copy(sessions, h.sessions)

	return sessions
}

func latestSession(c *qt.C, handler *captureHandler, state portal.State) *portal.Session {
	c.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sessions := handler.Sessions()
		if len(sessions) > 0 {
			session := sessions[len(sessions)-1]
			if session.State() == state {
				return session
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.Fatalf("no session reached %v", state)

	return nil
}

func TestProvisionsWhenOffline(t *testing.T) {
	c := qt.New(t)

	checker := &scriptedChecker{}
	handler := &captureHandler{}

	wifi := network.NewMockWifi()
	wifi.Networks = []*network.Network{
		{Ssid: "Home", Security: network.SecurityPersonal, Signal: -50},
	}
	wifi.ConnectFunc = func(credentials *network.Credentials) error {
		checker.setOnline(true)
		return nil
	}

	p := New(&Config{
		Checker:       checker,
		Wifi:          wifi,
		AccessPoint:   ap.NewMockAp("device-1234"),
		Handler:       handler,
		ListenAddr:    "127.0.0.1:0",
		ProbeInterval: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- p.Run()
	}()

	session := latestSession(c, handler, portal.StateAwaitingSubmission)

	err := session.Submit(&network.Credentials{Ssid: "Home", Passphrase: "secret123"})
	c.Assert(err, qt.IsNil)

	// the device is online now, no further sessions are started
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(handler.Sessions(), qt.HasLen, 1)

	p.Shutdown()
	c.Assert(<-done, qt.IsNil)
}

func TestDoesNotProvisionWhileOnline(t *testing.T) {
	c := qt.New(t)

	checker := &scriptedChecker{online: true}
	handler := &captureHandler{}

	p := New(&Config{
		Checker:       checker,
		Wifi:          network.NewMockWifi(),
		AccessPoint:   ap.NewMockAp("device-1234"),
		Handler:       handler,
		ListenAddr:    "127.0.0.1:0",
		ProbeInterval: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- p.Run()
	}()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	c.Assert(checker.Checks() > 1, qt.IsTrue)
	c.Assert(handler.Sessions(), qt.HasLen, 0)

	p.Shutdown()
	c.Assert(<-done, qt.IsNil)
}

func TestGivesUpAfterConsecutiveFailures(t *testing.T) {
	c := qt.New(t)

	wifi := network.NewMockWifi()
	wifi.ScanErr = errors.New("radio gone")

	p := New(&Config{
		Checker:       &scriptedChecker{},
		Wifi:          wifi,
		AccessPoint:   ap.NewMockAp("device-1234"),
		Handler:       &captureHandler{},
		ListenAddr:    "127.0.0.1:0",
		ProbeInterval: 10 * time.Millisecond,
		Backoff:       10 * time.Millisecond,
		MaxFailures:   3,
	})

	err := p.Run()
	c.Assert(err, qt.ErrorMatches, "giving up after 3 consecutive session failures: .*")
	c.Assert(wifi.Scans(), qt.Equals, 3)
}

func TestResumesPollingAfterSessionTimeout(t *testing.T) {
	c := qt.New(t)

	checker := &scriptedChecker{}
	handler := &captureHandler{}

	p := New(&Config{
		Checker:        checker,
		Wifi:           network.NewMockWifi(),
		AccessPoint:    ap.NewMockAp("device-1234"),
		Handler:        handler,
		ListenAddr:     "127.0.0.1:0",
		ProbeInterval:  10 * time.Millisecond,
		SessionTimeout: 20 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- p.Run()
	}()

	// a timed out session is not a failure, the loop keeps polling and
	// opens another one
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(handler.Sessions()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(len(handler.Sessions()) >= 2, qt.IsTrue)

	p.Shutdown()
	c.Assert(<-done, qt.IsNil)
}

func TestShutdownTearsDownRunningSession(t *testing.T) {
	c := qt.New(t)

	handler := &captureHandler{}
	accessPoint := ap.NewMockAp("device-1234")

	p := New(&Config{
		Checker:       &scriptedChecker{},
		Wifi:          network.NewMockWifi(),
		AccessPoint:   accessPoint,
		Handler:       handler,
		ListenAddr:    "127.0.0.1:0",
		ProbeInterval: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- p.Run()
	}()

	latestSession(c, handler, portal.StateAwaitingSubmission)
	c.Assert(accessPoint.Running(), qt.IsTrue)

	p.Shutdown()
	c.Assert(<-done, qt.IsNil)
	c.Assert(accessPoint.Running(), qt.IsFalse)
}

func TestSavesCredentialsOnSuccess(t *testing.T) {
	c := qt.New(t)

	db, err := portaldb.Open(filepath.Join(c.TempDir(), "data"))
	c.Assert(err, qt.IsNil)
	defer db.Close()

	checker := &scriptedChecker{}
	handler := &captureHandler{}

	wifi := network.NewMockWifi()
	wifi.Networks = []*network.Network{
		{Ssid: "Home", Security: network.SecurityPersonal, Signal: -50},
	}
	wifi.ConnectFunc = func(credentials *network.Credentials) error {
		checker.setOnline(true)
		return nil
	}

	p := New(&Config{
		Checker:       checker,
		Wifi:          wifi,
		AccessPoint:   ap.NewMockAp("device-1234"),
		Handler:       handler,
		DB:            db,
		ListenAddr:    "127.0.0.1:0",
		ProbeInterval: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- p.Run()
	}()

	session := latestSession(c, handler, portal.StateAwaitingSubmission)

	err = session.Submit(&network.Credentials{Ssid: "Home", Passphrase: "secret123"})
	c.Assert(err, qt.IsNil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		saved, err := db.GetWifiConnection()
		c.Assert(err, qt.IsNil)
		if saved != nil {
			c.Assert(saved.Ssid, qt.Equals, "Home")
			c.Assert(saved.Psk, qt.Equals, "secret123")
			p.Shutdown()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	c.Fatalf("credentials were never saved")
}

func TestAttemptsSavedConnectionFirst(t *testing.T) {
	c := qt.New(t)

	db, err := portaldb.Open(filepath.Join(c.TempDir(), "data"))
	c.Assert(err, qt.IsNil)
	defer db.Close()

	err = db.SetWifiConnection(&portaldb.WifiConnection{
		Ssid: "Home",
		Psk:  "secret123",
	})
	c.Assert(err, qt.IsNil)

	checker := &scriptedChecker{}

	wifi := network.NewMockWifi()
	wifi.ConnectFunc = func(credentials *network.Credentials) error {
		if credentials.Ssid == "Home" && credentials.Passphrase == "secret123" {
			checker.setOnline(true)
			return nil
		}
		return &network.JoinError{Reason: network.ReasonCredentialInvalid, Ssid: credentials.Ssid}
	}

	handler := &captureHandler{}

	p := New(&Config{
		Checker:       checker,
		Wifi:          wifi,
		AccessPoint:   ap.NewMockAp("device-1234"),
		Handler:       handler,
		DB:            db,
		ListenAddr:    "127.0.0.1:0",
		ProbeInterval: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- p.Run()
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// the saved profile brought the device online, no portal was needed
	c.Assert(wifi.Connects(), qt.HasLen, 1)
	c.Assert(handler.Sessions(), qt.HasLen, 0)

	p.Shutdown()
	c.Assert(<-done, qt.IsNil)
}
