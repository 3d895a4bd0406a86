package network

import (
	"context"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/greenoaklabs/portald/network/wpa"
)

// check WpaWifi compliance to its interface during compile time
var _ Wifi = (*WpaWifi)(nil)

const defaultScanRetries = 10

type Config struct {
	// Interface is the wifi interface name. Discovered over nl80211
	// when left empty.
	Interface string
	// ScanRetries bounds how often an empty scan result is retried
	// before it is reported as-is. The list of visible networks may
	// take a moment to fill after the radio leaves access point mode.
	ScanRetries int
	Logger      Logger
}

type WpaWifi struct {
	log         Logger
	wpa         *wpa.Wpa
	ifname      string
	iface       *wpa.Interface
	scanRetries int
}

func NewWpaWifi(config *Config) *WpaWifi {
	wifi := &WpaWifi{
		ifname:      config.Interface,
		wpa:         wpa.New(),
		scanRetries: config.ScanRetries,
	}

	if wifi.scanRetries == 0 {
		wifi.scanRetries = defaultScanRetries
	}

	if config.Logger != nil {
		wifi.log = config.Logger
	} else {
		wifi.log = noopLogger{}
	}

	return wifi
}

func (w *WpaWifi) Start() error {
	if w.ifname == "" {
		ifname, err := DiscoverInterface()
		if err != nil {
			return errors.Errorf("could not discover wifi interface: %v", err)
		}

		w.log.Infof("Discovered wifi interface %v", ifname)
		w.ifname = ifname
	}

	err := w.wpa.Start()
	if err != nil {
		return errors.Errorf("could not start wpa: %v", err)
	}

	iface, err := w.wpa.GetInterface(w.ifname)
	if err != nil {
		_ = w.Stop()
		return errors.Errorf("could not find interface %v: %v", w.ifname, err)
	}

	w.iface = iface

	return nil
}

func (w *WpaWifi) Stop() error {
	err := w.wpa.Stop()
	if err != nil {
		return errors.Errorf("could not stop wpa: %v", err)
	}

	return nil
}

func (w *WpaWifi) Scan(ctx context.Context) ([]*Network, error) {
	for attempt := 0; ; attempt++ {
		networks, err := w.scanOnce(ctx)
		if err != nil {
			return nil, err
		}

		if len(networks) > 0 {
			return networks, nil
		}

		if attempt >= w.scanRetries {
			w.log.Warnf("No networks found after %v attempts, giving up", attempt+1)
			return networks, nil
		}

		w.log.Debugf("No networks found, retry #%v", attempt+1)

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, errors.Errorf("scan aborted: %v", ctx.Err())
		}
	}
}

func (w *WpaWifi) scanOnce(ctx context.Context) ([]*Network, error) {
	doneClient, err := w.iface.ScanDone()
	if err != nil {
		return nil, errors.Errorf("could not listen for scan completion: %v", err)
	}
	defer doneClient.Cancel()

	err = w.iface.Scan()
	if err != nil {
		return nil, errors.Errorf("could not scan: %v", err)
	}

	select {
	case <-doneClient.ScanDone:
	case <-ctx.Done():
		return nil, errors.Errorf("scan aborted: %v", ctx.Err())
	}

	bsss, err := w.iface.BSSs()
	if err != nil {
		return nil, errors.Errorf("could not get scan results: %v", err)
	}

	var networks []*Network

	for _, bss := range bsss {
		b, err := bss.GetAll()
		if err != nil {
			w.log.Debugf("Skipping %v: %v", bss, err)
			continue
		}

		networks = append(networks, &Network{
			Ssid:     b.Ssid,
			Security: ClassifySecurity(b.KeyMgmt, b.Privacy),
			Signal:   b.Signal,
		})
	}

	return purgeNetworks(networks), nil
}

func (w *WpaWifi) Connect(ctx context.Context, credentials *Credentials) error {
	err := w.iface.RemoveAllNetworks()
	if err != nil {
		return errors.Errorf("could not remove previous networks: %v", err)
	}

	stateClient, err := w.iface.StateChanged()
	if err != nil {
		return errors.Errorf("could not watch supplicant state: %v", err)
	}
	defer stateClient.Cancel()

	net, err := w.iface.AddNetwork(&wpa.NetworkArgs{
		Ssid:       credentials.Ssid,
		Identity:   credentials.Identity,
		Passphrase: credentials.Passphrase,
		Enterprise: credentials.Identity != "",
	})
	if err != nil {
		return errors.Errorf("could not add network: %v", err)
	}

	err = w.iface.SelectNetwork(net)
	if err != nil {
		_ = w.iface.RemoveNetwork(net)
		return errors.Errorf("could not select network: %v", err)
	}

	w.log.Infof("Connecting to %v...", credentials.Ssid)

	sawHandshake := false
	disconnects := 0

	for {
		select {
		case state := <-stateClient.States:
			w.log.Debugf("Supplicant state %v", state)

			switch state {
			case "completed":
				return nil
			case "4way_handshake", "group_handshake":
				sawHandshake = true
			case "disconnected":
				// A disconnect after reaching the handshake means the
				// network rejected our key. Before the handshake it
				// may just be the radio settling, so allow a few.
				if sawHandshake {
					_ = w.iface.RemoveNetwork(net)
					return &JoinError{Reason: ReasonCredentialInvalid, Ssid: credentials.Ssid}
				}

				disconnects++
				if disconnects >= 3 {
					_ = w.iface.RemoveNetwork(net)
					return &JoinError{Reason: ReasonAssociationFailure, Ssid: credentials.Ssid}
				}
			}
		case <-ctx.Done():
			_ = w.iface.Disconnect()
			_ = w.iface.RemoveNetwork(net)
			return &JoinError{Reason: ReasonTimeout, Ssid: credentials.Ssid}
		}
	}
}

// ClassifySecurity maps the advertised key management suites of a
// network to its class. 802.1X suites make it enterprise, any other
// suite or bare privacy flag makes it personal, everything else is
// open.
func ClassifySecurity(keyMgmt []string, privacy bool) Security {
	for _, suite := range keyMgmt {
		if strings.Contains(strings.ToLower(suite), "eap") {
			return SecurityEnterprise
		}
	}

	if len(keyMgmt) > 0 || privacy {
		return SecurityPersonal
	}

	return SecurityOpen
}
