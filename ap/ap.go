// Package ap owns the temporary provisioning access point. While it is
// up, the wireless radio belongs to it exclusively; the caller has to
// stop the access point before using the radio for anything else.
package ap

type Ap interface {
	Start() error
	Stop() error
	// Ssid is the name the access point advertises.
	Ssid() string
}
