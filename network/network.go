package network

import (
	"context"
	"sort"
)

// Security classifies how a wifi network authenticates clients. The
// classification only decides which form fields a join attempt needs:
// an identity for enterprise networks, a passphrase for anything
// secured, nothing for open ones.
type Security int

const (
	SecurityOpen Security = iota
	SecurityPersonal
	SecurityEnterprise
)

func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "open"
	case SecurityPersonal:
		return "personal"
	case SecurityEnterprise:
		return "enterprise"
	default:
		return "unknown"
	}
}

// ParseSecurity is the inverse of Security.String. Unknown names
// parse as personal, the conservative default for form validation.
func ParseSecurity(s string) Security {
	switch s {
	case "open":
		return SecurityOpen
	case "enterprise":
		return SecurityEnterprise
	default:
		return SecurityPersonal
	}
}

// Network is one visible wifi network from the most recent scan. A
// listing is only valid for the scan cycle that produced it and is
// always replaced wholesale, never mutated.
type Network struct {
	Ssid     string
	Security Security
	// Signal strength, higher is better. Only the ordering matters.
	Signal int
}

// Credentials carries one submitted join request. It is consumed by
// exactly one join attempt and never persisted beyond it.
type Credentials struct {
	Ssid       string
	Identity   string
	Passphrase string
}

// Wifi is the radio collaborator: one-shot scans and blocking joins.
// The radio cannot scan while operating as an access point, so Scan is
// only valid while no access point is up.
type Wifi interface {
	Start() error
	Stop() error
	Scan(ctx context.Context) ([]*Network, error)
	Connect(ctx context.Context, credentials *Credentials) error
}

// purgeNetworks drops hidden networks and collapses duplicate SSIDs,
// keeping the strongest entry of each name. The result is sorted by
// descending signal so the portal lists the best candidates first.
func purgeNetworks(networks []*Network) []*Network {
	bySsid := make(map[string]*Network)
	var order []string

	for _, network := range networks {
		if network.Ssid == "" {
			continue
		}

		if seen, ok := bySsid[network.Ssid]; ok {
			if network.Signal > seen.Signal {
				bySsid[network.Ssid] = network
			}
			continue
		}

		bySsid[network.Ssid] = network
		order = append(order, network.Ssid)
	}

	purged := make([]*Network, 0, len(order))
	for _, ssid := range order {
		purged = append(purged, bySsid[ssid])
	}

	sort.SliceStable(purged, func(i, j int) bool {
		return purged[i].Signal > purged[j].Signal
	})

	return purged
}
