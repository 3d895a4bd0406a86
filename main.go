package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/greenoaklabs/portald/ap"
	"github.com/greenoaklabs/portald/api"
	"github.com/greenoaklabs/portald/connectivity"
	"github.com/greenoaklabs/portald/network"
	"github.com/greenoaklabs/portald/portaldb"
	"github.com/greenoaklabs/portald/provisioner"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// portaldMain is the true entry point for portald. This is required
// since defers created in the top-level scope of a main method aren't
// executed if os.Exit() is called.
func portaldMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	// The portal SSID is derived from the device's own host name
	// unless explicitly configured
	name := cfg.Name
	if name == "" {
		name, err = os.Hostname()
		if err != nil {
			return errors.Errorf("Could not determine host name: %v", err)
		}
	}

	log.Infof("Provisioning access point will be named %v.", name)

	// portal.db persistently stores the saved network profile
	db, err := portaldb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open portal.db: %v", err)
	}

	log.Info("Opened portal.db.")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close portal.db: %v", err)
		} else {
			log.Info("Closed portal.db.")
		}
	}()

	// The connectivity prober deciding when the portal is needed
	checker := connectivity.NewHTTPChecker(&connectivity.Config{
		Url:     cfg.ProbeUrl,
		Timeout: cfg.ProbeTimeout,
		Logger:  log.New().WithField("system", "connectivity"),
	})

	log.Infof("Probing %v for connectivity.", cfg.ProbeUrl)

	// The wifi radio and the provisioning access point
	var wifi network.Wifi
	var accessPoint ap.Ap

	switch cfg.Net {
	case "wpa":
		iface := cfg.Interface
		if iface == "" {
			iface, err = network.DiscoverInterface()
			if err != nil {
				return errors.Errorf("Could not discover a wifi interface: %v", err)
			}

			log.Infof("Discovered wifi interface %v.", iface)
		}

		wifi = network.NewWpaWifi(&network.Config{
			Interface: iface,
			Logger:    log.New().WithField("system", "network"),
		})

		accessPoint = ap.NewHostapdAp(&ap.HostapdApConfig{
			Interface:  iface,
			Ssid:       name,
			Passphrase: cfg.PortalPassphrase,
			Gateway:    net.ParseIP(cfg.Gateway),
			Logger:     log.New().WithField("system", "ap"),
		})

		log.Info("Created wpa_supplicant network.")
	case "mock":
		mock := network.NewMockWifi()
		mock.Networks = []*network.Network{
			{Ssid: "Example", Security: network.SecurityPersonal, Signal: -40},
		}
		wifi = mock

		accessPoint = ap.NewMockAp(name)

		log.Info("Created a mock network.")
	default:
		return errors.Errorf("Unknown networking type %v", cfg.Net)
	}

	// The portal web server, shared across sessions
	handler := api.New(&api.Config{
		Log: log.New().WithField("system", "api"),
	})

	log.Info("Created portal handler.")

	// Central loop alternating between polling and provisioning
	p := provisioner.New(&provisioner.Config{
		Checker:        checker,
		Wifi:           wifi,
		AccessPoint:    accessPoint,
		Handler:        handler,
		DB:             db,
		ListenAddr:     cfg.Listen,
		ProbeInterval:  cfg.ProbeInterval,
		Backoff:        cfg.Backoff,
		MaxFailures:    cfg.MaxFailures,
		SessionTimeout: cfg.SessionTimeout,
		ScanTimeout:    cfg.ScanTimeout,
		JoinTimeout:    cfg.JoinTimeout,
		Logger:         log.New().WithField("system", "provisioner"),
		PortalLogger:   log.New().WithField("system", "portal"),
	})

	log.Info("Created provisioner.")

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping provisioner...")
		p.Shutdown()
	}()

	// Tell the supervisor we are up
	_, err = daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warnf("Could not notify systemd: %v", err)
	}

	// blocks until the provisioner is shut down
	err = p.Run()
	if err != nil {
		return errors.Errorf("Failed running provisioner: %v", err)
	}

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will
	// properly be executed in the case of a graceful shutdown.
	if err := portaldMain(); err != nil {
		log.WithError(err).Println("Failed running portald.")
		os.Exit(1)
	}
}
