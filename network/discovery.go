package network

import (
	"github.com/go-errors/errors"
	"github.com/mdlayher/wifi"
)

// DiscoverInterface returns the name of the first wifi interface
// reported over nl80211. Used when no interface is configured.
func DiscoverInterface() (string, error) {
	client, err := wifi.New()
	if err != nil {
		return "", errors.Errorf("could not create nl80211 client: %v", err)
	}
	defer client.Close()

	interfaces, err := client.Interfaces()
	if err != nil {
		return "", errors.Errorf("could not list wifi interfaces: %v", err)
	}

	for _, iface := range interfaces {
		// P2P management devices show up without a netdev name
		if iface.Name == "" {
			continue
		}

		return iface.Name, nil
	}

	return "", errors.New("no wifi interface found")
}
