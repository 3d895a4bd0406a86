package wpa

import (
	"encoding/hex"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

type BSS struct {
	obj dbus.BusObject
}

func (b *BSS) String() string {
	return string(b.obj.Path())
}

type Bss struct {
	Ssid   string
	Bssid  string
	Signal int
	// KeyMgmt lists the key management suites advertised in the WPA
	// and RSN information elements, e.g. "wpa-psk" or "wpa-eap".
	KeyMgmt []string
	// Privacy is set for networks that are encrypted without
	// advertising WPA/RSN elements (WEP).
	Privacy bool
}

func (b *BSS) GetAll() (*Bss, error) {
	call := b.obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, bssIface)
	if call.Err != nil {
		return nil, errors.Errorf("could not get all properties: %v", call.Err)
	}

	props, ok := call.Body[0].(map[string]dbus.Variant)
	if !ok {
		return nil, errors.Errorf("could not convert output")
	}

	bss := Bss{}

	if val, ok := props["SSID"]; ok {
		if ssid, ok := val.Value().([]byte); ok {
			bss.Ssid = string(ssid)
		} else {
			return nil, errors.Errorf("could not convert SSID to string: %v", val)
		}
	} else {
		return nil, errors.Errorf("mandatory property SSID was missing")
	}

	if val, ok := props["BSSID"]; ok {
		if bssid, ok := val.Value().([]byte); ok {
			bss.Bssid = hex.EncodeToString(bssid)
		} else {
			return nil, errors.Errorf("could not convert BSSID to string: %v", val)
		}
	} else {
		return nil, errors.Errorf("mandatory property BSSID was missing")
	}

	if val, ok := props["Signal"]; ok {
		if signal, ok := val.Value().(int16); ok {
			bss.Signal = int(signal)
		}
	}

	if val, ok := props["Privacy"]; ok {
		if privacy, ok := val.Value().(bool); ok {
			bss.Privacy = privacy
		}
	}

	bss.KeyMgmt = append(bss.KeyMgmt, keyMgmt(props, "WPA")...)
	bss.KeyMgmt = append(bss.KeyMgmt, keyMgmt(props, "RSN")...)

	return &bss, nil
}

func keyMgmt(props map[string]dbus.Variant, element string) []string {
	val, ok := props[element]
	if !ok {
		return nil
	}

	ie, ok := val.Value().(map[string]dbus.Variant)
	if !ok {
		return nil
	}

	suites, ok := ie["KeyMgmt"]
	if !ok {
		return nil
	}

	keyMgmt, ok := suites.Value().([]string)
	if !ok {
		return nil
	}

	return keyMgmt
}
