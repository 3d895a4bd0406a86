package main

import (
	"time"

	"github.com/jessevdk/go-flags"
)

type config struct {
	ShowVersion bool   `long:"version" description:"Display version information and exit"`
	Debug       bool   `long:"debug" description:"Start in debug mode"`
	DataDir     string `long:"datadir" description:"Directory to store the settings database in" default:"./data"`

	Name      string `long:"name" description:"Displayed name of the provisioning access point. Defaults to the device's host name"`
	Interface string `long:"interface" description:"Wifi interface to provision. Discovered automatically when left empty"`
	Net       string `long:"net" description:"Networking implementation" choice:"wpa" choice:"mock" default:"wpa"`

	Listen           string `long:"listen" description:"Address the portal web server listens on" default:"192.168.42.1:80"`
	Gateway          string `long:"gateway" description:"Gateway address of the provisioning network" default:"192.168.42.1"`
	PortalPassphrase string `long:"portal-passphrase" description:"Optionally protect the provisioning network itself with WPA2"`

	ProbeUrl      string        `long:"probe-url" description:"Endpoint probed to determine connectivity" default:"http://connectivity-check.ubuntu.com/"`
	ProbeInterval time.Duration `long:"probe-interval" description:"Interval between connectivity probes" default:"10s"`
	ProbeTimeout  time.Duration `long:"probe-timeout" description:"Timeout of a single connectivity probe" default:"5s"`

	SessionTimeout time.Duration `long:"session-timeout" description:"Ends a provisioning session that received no input. 0 keeps the portal open indefinitely" default:"10m"`
	ScanTimeout    time.Duration `long:"scan-timeout" description:"Timeout of a network scan" default:"30s"`
	JoinTimeout    time.Duration `long:"join-timeout" description:"Timeout of a join attempt" default:"30s"`

	Backoff     time.Duration `long:"backoff" description:"Pause before retrying after a failed session" default:"10s"`
	MaxFailures int           `long:"max-failures" description:"Give up after this many consecutive failed sessions and leave the restart to the supervisor. 0 retries forever" default:"5"`
}

func loadConfig() (*config, error) {
	cfg := &config{}

	_, err := flags.Parse(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
