// Package form is the provisioning form's state machine: select a
// network, supply credentials, submit, react to the outcome. It is
// deliberately free of any rendering so transitions and validation can
// be exercised deterministically.
package form

import (
	"github.com/go-errors/errors"
	"github.com/greenoaklabs/portald/network"
)

type State int

const (
	// StateIdle shows the network list.
	StateIdle State = iota
	// StateNetworkSelected captures identity and passphrase.
	StateNetworkSelected
	// StateSubmitting hands the submission to the portal.
	StateSubmitting
	// StateAwaitingOutcome waits for the session to report the join
	// result.
	StateAwaitingOutcome
	// StateReloading waits for a fresh network listing.
	StateReloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateNetworkSelected:
		return "NETWORK_SELECTED"
	case StateSubmitting:
		return "SUBMITTING"
	case StateAwaitingOutcome:
		return "AWAITING_OUTCOME"
	case StateReloading:
		return "RELOADING"
	default:
		return "INVALID STATE"
	}
}

// Portal is the surface of the provisioning session the form drives.
// Implemented by the HTTP client below and, in tests, directly.
type Portal interface {
	Networks() ([]*network.Network, error)
	Submit(credentials *network.Credentials) error
	Rescan() error
}

// Notice is the presentational outcome shown to the user.
type Notice struct {
	Success bool
	Message string
}

type Config struct {
	Portal Portal
	Logger Logger
}

type Controller struct {
	portal Portal
	log    Logger

	state    State
	networks []*network.Network
	selected *network.Network

	ssid       string
	identity   string
	passphrase string

	notice *Notice
}

func NewController(config *Config) *Controller {
	controller := &Controller{
		portal: config.Portal,
		state:  StateIdle,
	}

	if config.Logger != nil {
		controller.log = config.Logger
	} else {
		controller.log = noopLogger{}
	}

	return controller
}

func (c *Controller) State() State {
	return c.state
}

// Networks is the listing the form currently renders.
func (c *Controller) Networks() []*network.Network {
	return c.networks
}

// Notice is the most recent success or error notice, nil when none.
func (c *Controller) Notice() *Notice {
	return c.notice
}

// Values returns the last-entered form values. They are preserved
// across a failed attempt so the user can correct them.
func (c *Controller) Values() (ssid string, identity string, passphrase string) {
	return c.ssid, c.identity, c.passphrase
}

// Load fetches the initial network listing.
func (c *Controller) Load() error {
	networks, err := c.portal.Networks()
	if err != nil {
		return errors.Errorf("could not load networks: %v", err)
	}

	c.networks = networks

	return nil
}

// Select picks a network by name, or takes a freely typed SSID when
// nothing of that name is listed. Freely typed networks are assumed to
// be personally secured, the conservative default.
func (c *Controller) Select(ssid string) error {
	if c.state != StateIdle && c.state != StateNetworkSelected {
		return errors.Errorf("cannot select a network in state %v", c.state)
	}

	if ssid == "" {
		return errors.New("ssid must not be empty")
	}

	c.selected = nil
	for _, n := range c.networks {
		if n.Ssid == ssid {
			c.selected = n
			break
		}
	}

	c.ssid = ssid
	c.state = StateNetworkSelected

	return nil
}

// SetIdentity records the identity field, required for enterprise
// networks only.
func (c *Controller) SetIdentity(identity string) {
	c.identity = identity
}

// SetPassphrase records the passphrase field, required for anything
// but open networks.
func (c *Controller) SetPassphrase(passphrase string) {
	c.passphrase = passphrase
}

func (c *Controller) security() network.Security {
	if c.selected != nil {
		return c.selected.Security
	}

	return network.SecurityPersonal
}

func (c *Controller) validate() error {
	if c.ssid == "" {
		return errors.New("ssid must not be empty")
	}

	security := c.security()

	if security == network.SecurityEnterprise && c.identity == "" {
		return errors.New("identity is required for enterprise networks")
	}

	if security != network.SecurityOpen && c.passphrase == "" {
		return errors.New("passphrase is required for secured networks")
	}

	return nil
}

// Submit validates the form and hands the submission to the portal.
// On acceptance the form awaits the outcome; on rejection it stays on
// the filled-in form with an error notice.
func (c *Controller) Submit() error {
	if c.state != StateNetworkSelected {
		return errors.Errorf("cannot submit in state %v", c.state)
	}

	err := c.validate()
	if err != nil {
		c.notice = &Notice{Message: err.Error()}
		return err
	}

	c.state = StateSubmitting
	c.notice = nil

	credentials := &network.Credentials{
		Ssid:       c.ssid,
		Passphrase: c.passphrase,
	}

	if c.security() == network.SecurityEnterprise {
		credentials.Identity = c.identity
	}

	err = c.portal.Submit(credentials)
	if err != nil {
		c.log.Warnf("Submission was not accepted: %v", err)
		c.state = StateNetworkSelected
		c.notice = &Notice{Message: err.Error()}
		return err
	}

	c.state = StateAwaitingOutcome

	return nil
}

// HandleOutcome reacts to the session's reported join result. Success
// returns the form to the idle listing with a success notice; failure
// returns to the filled-in form so the user can correct and resubmit.
func (c *Controller) HandleOutcome(success bool, message string) error {
	if c.state != StateAwaitingOutcome {
		return errors.Errorf("cannot handle an outcome in state %v", c.state)
	}

	if success {
		c.state = StateIdle
		c.selected = nil
		c.ssid = ""
		c.identity = ""
		c.passphrase = ""
		c.notice = &Notice{Success: true, Message: message}
	} else {
		c.state = StateNetworkSelected
		c.notice = &Notice{Message: message}
	}

	return nil
}

// Reload requests a fresh scan. Allowed from any state; the stale
// listing is discarded right away.
func (c *Controller) Reload() error {
	err := c.portal.Rescan()
	if err != nil {
		c.notice = &Notice{Message: err.Error()}
		return err
	}

	c.state = StateReloading
	c.networks = nil
	c.selected = nil

	return nil
}

// FinishReload fetches the fresh listing once the portal has scanned
// again, completing a reload.
func (c *Controller) FinishReload() error {
	if c.state != StateReloading {
		return errors.Errorf("cannot finish a reload in state %v", c.state)
	}

	networks, err := c.portal.Networks()
	if err != nil {
		return errors.Errorf("could not load networks: %v", err)
	}

	c.networks = networks
	c.state = StateIdle

	return nil
}
