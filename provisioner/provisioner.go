// Package provisioner is the top-level control loop: poll for
// connectivity, and while there is none, run one provisioning session
// at a time to completion.
package provisioner

import (
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/greenoaklabs/portald/ap"
	"github.com/greenoaklabs/portald/connectivity"
	"github.com/greenoaklabs/portald/network"
	"github.com/greenoaklabs/portald/portal"
	"github.com/greenoaklabs/portald/portaldb"
)

type Config struct {
	Checker     connectivity.Checker
	Wifi        network.Wifi
	AccessPoint ap.Ap
	Handler     portal.Handler
	// DB optionally persists the single profile of the most recent
	// successful provisioning.
	DB *portaldb.DB
	// ListenAddr of the portal web server during a session.
	ListenAddr string
	// ProbeInterval between connectivity polls.
	ProbeInterval time.Duration
	// Backoff after a session failed fatally.
	Backoff time.Duration
	// MaxFailures aborts the loop after this many consecutive fatal
	// session failures, leaving the restart to the supervisor. 0
	// retries forever.
	MaxFailures int

	SessionTimeout time.Duration
	ScanTimeout    time.Duration
	JoinTimeout    time.Duration

	Logger Logger
	// PortalLogger is handed to each session.
	PortalLogger portal.Logger
}

type Provisioner struct {
	checker      connectivity.Checker
	wifi         network.Wifi
	accessPoint  ap.Ap
	handler      portal.Handler
	db           *portaldb.DB
	listenAddr   string
	probeInt     time.Duration
	backoff      time.Duration
	maxFailures  int
	sessionTmout time.Duration
	scanTimeout  time.Duration
	joinTimeout  time.Duration
	log          Logger
	portalLog    portal.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func New(config *Config) *Provisioner {
	p := &Provisioner{
		checker:      config.Checker,
		wifi:         config.Wifi,
		accessPoint:  config.AccessPoint,
		handler:      config.Handler,
		db:           config.DB,
		listenAddr:   config.ListenAddr,
		probeInt:     config.ProbeInterval,
		backoff:      config.Backoff,
		maxFailures:  config.MaxFailures,
		sessionTmout: config.SessionTimeout,
		scanTimeout:  config.ScanTimeout,
		joinTimeout:  config.JoinTimeout,
		portalLog:    config.PortalLogger,
		done:         make(chan struct{}),
	}

	if p.probeInt == 0 {
		p.probeInt = 10 * time.Second
	}

	if p.backoff == 0 {
		p.backoff = 10 * time.Second
	}

	if config.Logger != nil {
		p.log = config.Logger
	} else {
		p.log = noopLogger{}
	}

	return p
}

// Run blocks until Shutdown is called or the loop gives up after too
// many consecutive fatal session failures.
func (p *Provisioner) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-p.done
		cancel()
	}()

	err := p.wifi.Start()
	if err != nil {
		return errors.Errorf("could not start wifi: %v", err)
	}

	defer func() {
		err := p.wifi.Stop()
		if err != nil {
			p.log.Errorf("Could not stop wifi: %v", err)
		}
	}()

	p.maybeConnectSaved(ctx)

	failures := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if p.checker.Check(ctx) == connectivity.Online {
			p.log.Debugf("Online.")
			failures = 0

			if !p.sleep(ctx, p.probeInt) {
				return nil
			}

			continue
		}

		p.log.Infof("No connectivity, starting a provisioning session")

		session := portal.NewSession(&portal.Config{
			Wifi:           p.wifi,
			AccessPoint:    p.accessPoint,
			Handler:        p.handler,
			ListenAddr:     p.listenAddr,
			Checker:        p.checker,
			SessionTimeout: p.sessionTmout,
			ScanTimeout:    p.scanTimeout,
			JoinTimeout:    p.joinTimeout,
			Logger:         p.portalLog,
		})

		result, err := session.Run(ctx)
		if err != nil {
			failures++
			p.log.Errorf("Session failed: %v", err)

			if p.maxFailures > 0 && failures >= p.maxFailures {
				return errors.Errorf("giving up after %v consecutive session failures: %v", failures, err)
			}

			if !p.sleep(ctx, p.backoff) {
				return nil
			}

			continue
		}

		failures = 0

		switch result.Outcome {
		case portal.OutcomeSucceeded:
			p.log.Infof("Provisioning succeeded")

			if result.Credentials != nil {
				p.saveConnection(result.Credentials)
			}
		case portal.OutcomeTimedOut:
			p.log.Infof("Session ended without input, resuming polling")
		case portal.OutcomeAborted:
			return nil
		}

		if !p.sleep(ctx, p.probeInt) {
			return nil
		}
	}
}

// Shutdown stops the loop and deterministically tears down a running
// session, access point included, before Run returns.
func (p *Provisioner) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
}

// maybeConnectSaved attempts the profile saved by a previous
// successful provisioning before any portal is raised.
func (p *Provisioner) maybeConnectSaved(ctx context.Context) {
	if p.db == nil {
		return
	}

	saved, err := p.db.GetWifiConnection()
	if err != nil {
		p.log.Warnf("Could not read saved connection: %v", err)
		return
	}

	if saved == nil {
		p.log.Debugf("No saved connection available")
		return
	}

	p.log.Infof("Attempting saved network %v", saved.Ssid)

	joinTimeout := p.joinTimeout
	if joinTimeout == 0 {
		joinTimeout = 30 * time.Second
	}

	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	err = p.wifi.Connect(joinCtx, &network.Credentials{
		Ssid:       saved.Ssid,
		Identity:   saved.Identity,
		Passphrase: saved.Psk,
	})
	if err != nil {
		p.log.Warnf("Could not join saved network: %v", err)
	}
}

func (p *Provisioner) saveConnection(credentials *network.Credentials) {
	if p.db == nil {
		return
	}

	err := p.db.SetWifiConnection(&portaldb.WifiConnection{
		Ssid:     credentials.Ssid,
		Identity: credentials.Identity,
		Psk:      credentials.Passphrase,
	})
	if err != nil {
		p.log.Errorf("Could not save connection: %v", err)
	}
}

func (p *Provisioner) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
