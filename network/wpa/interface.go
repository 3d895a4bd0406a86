package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

type Interface struct {
	wpa *Wpa
	obj dbus.BusObject
}

func (i *Interface) Scan() error {
	call := i.obj.Call("fi.w1.wpa_supplicant1.Interface.Scan", 0, map[string]interface{}{
		"Type": "active",
	})
	if call.Err != nil {
		return errors.Errorf("could not scan: %v", call.Err)
	}

	return nil
}

type ScanDoneClient struct {
	ScanDone <-chan bool
	Cancel   func()
}

func (i *Interface) ScanDone() (*ScanDoneClient, error) {
	changeChan := make(chan bool)
	signalChan := make(chan *dbus.Signal)

	client := &ScanDoneClient{
		ScanDone: changeChan,
		Cancel: func() {
			i.wpa.conn.RemoveSignal(signalChan)

			_ = i.wpa.conn.BusObject().RemoveMatchSignal(interfaceIface, "ScanDone", dbus.WithMatchObjectPath(i.obj.Path()))

			close(signalChan)
			close(changeChan)
		},
	}

	go func() {
		i.wpa.conn.Signal(signalChan)

		for {
			signal, ok := <-signalChan
			if !ok {
				return
			}

			if signal.Name == "fi.w1.wpa_supplicant1.Interface.ScanDone" && signal.Path == i.obj.Path() {
				if done, ok := signal.Body[0].(bool); ok {
					changeChan <- done
				}
			}
		}
	}()

	call := i.wpa.conn.BusObject().AddMatchSignal(interfaceIface, "ScanDone", dbus.WithMatchObjectPath(i.obj.Path()))
	if call.Err != nil {
		return nil, errors.Errorf("could not add signal: %v", call.Err)
	}

	return client, nil
}

type StateClient struct {
	States <-chan string
	Cancel func()
}

// StateChanged watches the interface's supplicant state through
// PropertiesChanged signals. States of interest during a join are
// "associating", "4way_handshake", "completed" and "disconnected".
func (i *Interface) StateChanged() (*StateClient, error) {
	stateChan := make(chan string)
	signalChan := make(chan *dbus.Signal)

	client := &StateClient{
		States: stateChan,
		Cancel: func() {
			i.wpa.conn.RemoveSignal(signalChan)

			_ = i.wpa.conn.BusObject().RemoveMatchSignal(interfaceIface, "PropertiesChanged", dbus.WithMatchObjectPath(i.obj.Path()))

			close(signalChan)
			close(stateChan)
		},
	}

	go func() {
		i.wpa.conn.Signal(signalChan)

		for {
			signal, ok := <-signalChan
			if !ok {
				return
			}

			if signal.Name != "fi.w1.wpa_supplicant1.Interface.PropertiesChanged" || signal.Path != i.obj.Path() {
				continue
			}

			props, ok := signal.Body[0].(map[string]dbus.Variant)
			if !ok {
				continue
			}

			if val, ok := props["State"]; ok {
				if state, ok := val.Value().(string); ok {
					stateChan <- state
				}
			}
		}
	}()

	call := i.wpa.conn.BusObject().AddMatchSignal(interfaceIface, "PropertiesChanged", dbus.WithMatchObjectPath(i.obj.Path()))
	if call.Err != nil {
		return nil, errors.Errorf("could not add signal: %v", call.Err)
	}

	return client, nil
}

func (i *Interface) State() (string, error) {
	v, err := i.obj.GetProperty("fi.w1.wpa_supplicant1.Interface.State")
	if err != nil {
		return "", errors.Errorf("could not get state: %v", err)
	}

	state, ok := v.Value().(string)
	if !ok {
		return "", errors.Errorf("could not convert state: %v", v)
	}

	return state, nil
}

func (i *Interface) BSSs() ([]*BSS, error) {
	v, err := i.obj.GetProperty("fi.w1.wpa_supplicant1.Interface.BSSs")
	if err != nil {
		return nil, errors.Errorf("could not get bsss: %v", err)
	}

	objectPaths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, errors.Errorf("could not convert result: %v", v)
	}

	var bsss []*BSS

	for _, objectPath := range objectPaths {
		bsss = append(bsss, &BSS{
			obj: i.wpa.conn.Object(service, objectPath),
		})
	}

	return bsss, nil
}

// NetworkArgs describe one network block handed to wpa_supplicant.
// Exactly one of the three credential forms applies: enterprise
// (identity + password), pre-shared key, or none.
type NetworkArgs struct {
	Ssid       string
	Identity   string
	Passphrase string
	Enterprise bool
}

func (i *Interface) AddNetwork(netArgs *NetworkArgs) (*Network, error) {
	args := map[string]interface{}{
		"ssid": netArgs.Ssid,
	}

	if netArgs.Enterprise {
		args["key_mgmt"] = "WPA-EAP"
		args["identity"] = netArgs.Identity
		args["password"] = netArgs.Passphrase
	} else if netArgs.Passphrase != "" {
		args["psk"] = netArgs.Passphrase
	} else {
		args["key_mgmt"] = "NONE"
	}

	call := i.obj.Call("fi.w1.wpa_supplicant1.Interface.AddNetwork", 0, args)
	if call.Err != nil {
		return nil, errors.Errorf("could not add network: %v", call.Err)
	}

	var objPath dbus.ObjectPath
	err := call.Store(&objPath)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	netObj := i.wpa.conn.Object(service, objPath)

	return &Network{
		wpa: i.wpa,
		obj: netObj,
	}, nil
}

func (i *Interface) SelectNetwork(net *Network) error {
	call := i.obj.Call("fi.w1.wpa_supplicant1.Interface.SelectNetwork", 0, net.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not select network: %v", call.Err)
	}

	return nil
}

func (i *Interface) RemoveNetwork(net *Network) error {
	call := i.obj.Call("fi.w1.wpa_supplicant1.Interface.RemoveNetwork", 0, net.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not remove network: %v", call.Err)
	}

	return nil
}

func (i *Interface) RemoveAllNetworks() error {
	call := i.obj.Call("fi.w1.wpa_supplicant1.Interface.RemoveAllNetworks", 0)
	if call.Err != nil {
		return errors.Errorf("could not remove all networks: %v", call.Err)
	}

	return nil
}

func (i *Interface) Disconnect() error {
	call := i.obj.Call("fi.w1.wpa_supplicant1.Interface.Disconnect", 0)
	if call.Err != nil {
		return errors.Errorf("could not disconnect: %v", call.Err)
	}

	return nil
}
