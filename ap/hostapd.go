package ap

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
)

// check HostapdAp compliance to its interface during compile time
var _ Ap = (*HostapdAp)(nil)

const defaultGateway = "192.168.42.1"

type HostapdApConfig struct {
	// Interface the access point is raised on.
	Interface string
	// Ssid the access point advertises.
	Ssid string
	// Passphrase optionally protects the provisioning network itself
	// with WPA2. Open when empty.
	Passphrase string
	// Gateway is the portal address handed out over DHCP and answered
	// for every DNS name, so that joining clients land on the portal.
	Gateway net.IP
	Logger  Logger
}

// HostapdAp raises an access point by running hostapd and dnsmasq as
// child processes and assigning the gateway address to the interface.
type HostapdAp struct {
	log        Logger
	iface      string
	ssid       string
	passphrase string
	gateway    net.IP

	mu       sync.Mutex
	confPath string
	hostapd  *exec.Cmd
	dnsmasq  *exec.Cmd
}

func NewHostapdAp(config *HostapdApConfig) *HostapdAp {
	a := &HostapdAp{
		iface:      config.Interface,
		ssid:       config.Ssid,
		passphrase: config.Passphrase,
		gateway:    config.Gateway,
	}

	if a.gateway == nil {
		a.gateway = net.ParseIP(defaultGateway)
	}

	if config.Logger != nil {
		a.log = config.Logger
	} else {
		a.log = noopLogger{}
	}

	return a
}

func (a *HostapdAp) Ssid() string {
	return a.ssid
}

func (a *HostapdAp) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hostapd != nil {
		return errors.New("access point already started")
	}

	a.log.Infof("Starting access point %v on %v...", a.ssid, a.iface)

	err := a.assignGateway()
	if err != nil {
		return errors.Errorf("could not assign gateway address: %v", err)
	}

	err = a.startHostapd()
	if err != nil {
		a.teardown()
		return err
	}

	err = a.startDnsmasq()
	if err != nil {
		a.teardown()
		return err
	}

	a.log.Infof("Access point %v started", a.ssid)

	return nil
}

func (a *HostapdAp) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.teardown()

	a.log.Infof("Access point %v stopped", a.ssid)

	return nil
}

func (a *HostapdAp) assignGateway() error {
	err := exec.Command("ip", "link", "set", "dev", a.iface, "up").Run()
	if err != nil {
		return errors.Errorf("could not bring %v up: %v", a.iface, err)
	}

	err = exec.Command("ip", "addr", "flush", "dev", a.iface).Run()
	if err != nil {
		return errors.Errorf("could not flush addresses of %v: %v", a.iface, err)
	}

	err = exec.Command("ip", "addr", "add", fmt.Sprintf("%v/24", a.gateway), "dev", a.iface).Run()
	if err != nil {
		return errors.Errorf("could not assign %v to %v: %v", a.gateway, a.iface, err)
	}

	return nil
}

func (a *HostapdAp) startHostapd() error {
	conf := a.hostapdConf()

	confPath := filepath.Join(os.TempDir(), fmt.Sprintf("portald-hostapd-%v.conf", os.Getpid()))

	err := os.WriteFile(confPath, []byte(conf), 0600)
	if err != nil {
		return errors.Errorf("could not write hostapd config: %v", err)
	}

	a.confPath = confPath

	cmd := exec.Command("hostapd", confPath)

	err = cmd.Start()
	if err != nil {
		return errors.Errorf("could not start hostapd: %v", err)
	}

	// hostapd exits right away when the radio is busy or the driver
	// refuses AP mode. Give it a moment to fail before reporting the
	// access point as up.
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	select {
	case err := <-exited:
		return errors.Errorf("hostapd exited immediately: %v", err)
	case <-time.After(time.Second):
	}

	a.hostapd = cmd

	return nil
}

func (a *HostapdAp) hostapdConf() string {
	lines := []string{
		fmt.Sprintf("interface=%v", a.iface),
		"driver=nl80211",
		fmt.Sprintf("ssid=%v", a.ssid),
		"hw_mode=g",
		"channel=6",
	}

	if a.passphrase != "" {
		lines = append(lines,
			"wpa=2",
			fmt.Sprintf("wpa_passphrase=%v", a.passphrase),
			"wpa_key_mgmt=WPA-PSK",
			"rsn_pairwise=CCMP",
		)
	}

	return strings.Join(lines, "\n") + "\n"
}

func (a *HostapdAp) startDnsmasq() error {
	rangeStart := make(net.IP, len(a.gateway))
	copy(rangeStart, a.gateway)
	rangeStart = rangeStart.To4()
	rangeStart[3] = 2

	rangeEnd := make(net.IP, len(rangeStart))
	copy(rangeEnd, rangeStart)
	rangeEnd[3] = 254

	cmd := exec.Command("dnsmasq",
		"--keep-in-foreground",
		"--bind-interfaces",
		fmt.Sprintf("--interface=%v", a.iface),
		"--except-interface=lo",
		"--no-poll",
		"--no-resolv",
		fmt.Sprintf("--dhcp-range=%v,%v,24h", rangeStart, rangeEnd),
		fmt.Sprintf("--dhcp-option=option:router,%v", a.gateway),
		// Answer every DNS name with the portal address so captive
		// portal detection on phones opens the configuration page
		fmt.Sprintf("--address=/#/%v", a.gateway),
	)

	err := cmd.Start()
	if err != nil {
		return errors.Errorf("could not start dnsmasq: %v", err)
	}

	go func() {
		_ = cmd.Wait()
	}()

	a.dnsmasq = cmd

	return nil
}

// teardown stops whatever parts are running. Must be called with the
// mutex held. Errors are logged rather than returned since teardown is
// mandatory on every exit path.
func (a *HostapdAp) teardown() {
	if a.dnsmasq != nil {
		if err := a.dnsmasq.Process.Kill(); err != nil {
			a.log.Errorf("Could not kill dnsmasq: %v", err)
		}
		a.dnsmasq = nil
	}

	if a.hostapd != nil {
		if err := a.hostapd.Process.Kill(); err != nil {
			a.log.Errorf("Could not kill hostapd: %v", err)
		}
		a.hostapd = nil
	}

	if a.confPath != "" {
		if err := os.Remove(a.confPath); err != nil {
			a.log.Debugf("Could not remove hostapd config: %v", err)
		}
		a.confPath = ""
	}

	if err := exec.Command("ip", "addr", "flush", "dev", a.iface).Run(); err != nil {
		a.log.Errorf("Could not flush addresses of %v: %v", a.iface, err)
	}
}
