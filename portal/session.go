// Package portal owns one provisioning attempt end-to-end: raise the
// access point and the local web server, collect a submission, attempt
// the join and report the outcome. At most one session runs at a time.
package portal

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/greenoaklabs/portald/ap"
	"github.com/greenoaklabs/portald/connectivity"
	"github.com/greenoaklabs/portald/network"
)

// Handler serves the captive portal page and its API for one session.
type Handler interface {
	SetSession(session *Session)
	Serve(lis net.Listener) error
}

type Outcome int

const (
	// OutcomeSucceeded means connectivity was established, either
	// through an accepted submission or on its own.
	OutcomeSucceeded Outcome = iota
	// OutcomeTimedOut means the session timeout elapsed.
	OutcomeTimedOut
	// OutcomeAborted means the operator stopped the session.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "SUCCEEDED"
	case OutcomeTimedOut:
		return "TIMED OUT"
	case OutcomeAborted:
		return "ABORTED"
	default:
		return "INVALID OUTCOME"
	}
}

// Result reports how a session ended.
type Result struct {
	Outcome Outcome
	// Credentials that established connectivity. Nil when the device
	// came online without a submission.
	Credentials *network.Credentials
}

type Config struct {
	Wifi        network.Wifi
	AccessPoint ap.Ap
	// Handler serves the portal. Optional in tests that drive the
	// session directly.
	Handler Handler
	// ListenAddr of the local web server, e.g. "192.168.42.1:80".
	ListenAddr string
	// Checker is polled while awaiting input so a session can end
	// successfully when connectivity appears on its own. Optional.
	Checker connectivity.Checker
	// SessionTimeout bounds the whole session so the access point is
	// never left open indefinitely. 0 disables the timeout.
	SessionTimeout time.Duration
	// ScanTimeout bounds the network scan.
	ScanTimeout time.Duration
	// JoinTimeout bounds one join attempt.
	JoinTimeout time.Duration
	Logger      Logger
}

type nextClient struct {
	sync.Mutex
	id uint32
}

// Session is the state machine of one provisioning attempt.
type Session struct {
	log         Logger
	wifi        network.Wifi
	accessPoint ap.Ap
	handler     Handler
	listenAddr  string
	checker     connectivity.Checker

	sessionTimeout time.Duration
	scanTimeout    time.Duration
	joinTimeout    time.Duration
	onlineInterval time.Duration

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	lastError  string
	networks   []*network.Network
	apUp       bool
	clients    map[uint32]*Client
	nextClient nextClient

	submissions chan *network.Credentials
	rescans     chan struct{}
	listener    net.Listener
}

func NewSession(config *Config) *Session {
	session := &Session{
		wifi:           config.Wifi,
		accessPoint:    config.AccessPoint,
		handler:        config.Handler,
		listenAddr:     config.ListenAddr,
		checker:        config.Checker,
		sessionTimeout: config.SessionTimeout,
		scanTimeout:    config.ScanTimeout,
		joinTimeout:    config.JoinTimeout,
		state:          StateScanning,
		clients:        make(map[uint32]*Client),
		submissions:    make(chan *network.Credentials, 1),
		rescans:        make(chan struct{}, 1),
	}

	if session.scanTimeout == 0 {
		session.scanTimeout = 30 * time.Second
	}

	if session.joinTimeout == 0 {
		session.joinTimeout = 30 * time.Second
	}

	if session.onlineInterval == 0 {
		session.onlineInterval = 2 * time.Second
	}

	if config.Logger != nil {
		session.log = config.Logger
	} else {
		session.log = noopLogger{}
	}

	return session
}

// Run drives the session to completion. It returns a result for every
// orderly end and an error only for failures that are fatal to the
// session. The access point and the local web server are torn down on
// every exit path.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	defer s.teardown()

	var timeout <-chan time.Time
	if s.sessionTimeout > 0 {
		timer := time.NewTimer(s.sessionTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	if s.handler != nil {
		lis, err := net.Listen("tcp", s.listenAddr)
		if err != nil {
			s.setState(StateFailed)
			return nil, &FatalError{Kind: KindAccessPointStartFailure, Err: errors.Errorf("could not listen on %v: %v", s.listenAddr, err)}
		}

		s.listener = lis
		s.handler.SetSession(s)

		go func() {
			err := s.handler.Serve(lis)
			if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
				s.log.Errorf("Portal server stopped: %v", err)
			}
		}()

		s.log.Infof("Serving portal on %v", s.listenAddr)
	}

	var online <-chan time.Time
	if s.checker != nil {
		ticker := time.NewTicker(s.onlineInterval)
		defer ticker.Stop()
		online = ticker.C
	}

	for {
		// Scanning: the radio is free here, both on entry and after a
		// join attempt or rescan released the access point.
		s.setState(StateScanning)

		networks, err := s.scan(ctx)
		if err != nil {
			s.setError(err.Error())
			s.setState(StateFailed)
			return nil, &FatalError{Kind: KindScanFailure, Err: err}
		}

		err = s.accessPoint.Start()
		if err != nil {
			s.setError(err.Error())
			s.setState(StateFailed)
			return nil, &FatalError{Kind: KindAccessPointStartFailure, Err: err}
		}

		s.mu.Lock()
		s.apUp = true
		s.networks = networks
		s.mu.Unlock()

		s.setState(StateAwaitingSubmission)

	waiting:
		for {
			select {
			case credentials := <-s.submissions:
				// Submit already moved the state to Applying
				err := s.apply(ctx, credentials)
				if err == nil {
					s.setState(StateSucceeded)
					return &Result{Outcome: OutcomeSucceeded, Credentials: credentials}, nil
				}

				s.log.Warnf("Join attempt failed: %v", err)
				s.setError(err.Error())

				// The access point is down after the attempt; cycle
				// through Scanning so the user can retry
				break waiting
			case <-s.rescans:
				s.log.Infof("Rescan requested, discarding network list")
				s.stopAccessPoint()
				break waiting
			case <-timeout:
				s.log.Infof("Session timeout reached, no input received")
				s.setError("no input received")
				s.setState(StateFailed)
				return &Result{Outcome: OutcomeTimedOut}, nil
			case <-online:
				if s.checker.Check(ctx) == connectivity.Online {
					s.log.Infof("Connectivity established without a submission")
					s.setState(StateSucceeded)
					return &Result{Outcome: OutcomeSucceeded}, nil
				}
			case <-ctx.Done():
				s.log.Infof("Session stopped: %v", ctx.Err())
				s.setState(StateFailed)
				return &Result{Outcome: OutcomeAborted}, nil
			}
		}
	}
}

func (s *Session) scan(ctx context.Context) ([]*network.Network, error) {
	scanCtx, cancel := context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	networks, err := s.wifi.Scan(scanCtx)
	if err != nil {
		return nil, errors.Errorf("could not scan for networks: %v", err)
	}

	s.log.Infof("Found %v networks", len(networks))

	return networks, nil
}

func (s *Session) apply(ctx context.Context, credentials *network.Credentials) error {
	s.log.Infof("Applying submission for %v", credentials.Ssid)

	// The radio is owned by exactly one phase at a time: release the
	// access point before the join claims it
	s.stopAccessPoint()

	joinCtx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()

	return s.wifi.Connect(joinCtx, credentials)
}

// Submit hands a credential submission to the session. It is accepted
// only while the session awaits input; acceptance atomically moves the
// session to Applying so a submission is consumed exactly once.
func (s *Session) Submit(credentials *network.Credentials) error {
	if credentials == nil || credentials.Ssid == "" {
		return errors.New("submission requires an ssid")
	}

	s.mu.Lock()

	if s.state != StateAwaitingSubmission {
		s.mu.Unlock()
		return ErrSubmissionRejected
	}

	s.state = StateApplying
	s.mu.Unlock()

	s.notify()

	s.submissions <- credentials

	return nil
}

// Rescan discards the current network list and re-enters Scanning,
// tearing down and re-raising the access point. The radio cannot scan
// while it operates as an access point.
func (s *Session) Rescan() error {
	s.mu.Lock()

	if s.state != StateAwaitingSubmission {
		s.mu.Unlock()
		return ErrRescanRejected
	}

	s.state = StateScanning
	s.networks = nil
	s.mu.Unlock()

	s.notify()

	s.rescans <- struct{}{}

	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startedAt
}

// LastError is the user-facing reason of the most recent failure
// within this session, empty when there was none.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastError
}

// Networks is the directory listing of the current scan cycle. The
// slice is replaced wholesale on every scan, never mutated, so callers
// may read it without tearing.
func (s *Session) Networks() []*network.Network {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.networks
}

// Subscribe registers for state updates. The Updates channel closes
// when the session ends.
func (s *Session) Subscribe() *Client {
	client := &Client{
		updates: make(chan *Update, 8),
		session: s,
	}
	client.Updates = client.updates

	s.nextClient.Lock()
	client.Id = s.nextClient.id
	s.nextClient.id++
	s.nextClient.Unlock()

	s.mu.Lock()
	s.clients[client.Id] = client
	s.mu.Unlock()

	return client
}

func (s *Session) deleteClient(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(client.updates)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.notify()
}

func (s *Session) setError(lastError string) {
	s.mu.Lock()
	s.lastError = lastError
	s.mu.Unlock()

	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	update := &Update{
		State:     s.state,
		LastError: s.lastError,
	}

	for _, client := range s.clients {
		select {
		case client.updates <- update:
		default:
			// slow consumers miss intermediate updates
		}
	}
}

func (s *Session) stopAccessPoint() {
	s.mu.Lock()
	apUp := s.apUp
	s.apUp = false
	s.mu.Unlock()

	if !apUp {
		return
	}

	err := s.accessPoint.Stop()
	if err != nil {
		s.log.Errorf("Could not stop access point: %v", err)
	}
}

// teardown runs on every exit path. The radio must never be left in
// access point mode past the session.
func (s *Session) teardown() {
	s.stopAccessPoint()

	if s.listener != nil {
		err := s.listener.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Errorf("Could not close portal listener: %v", err)
		}
		s.listener = nil
	}

	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[uint32]*Client)
	s.mu.Unlock()

	for _, client := range clients {
		close(client.updates)
	}
}
