package portaldb

var (
	settingsBucket    = []byte("settings")
	wifiConnectionKey = []byte("wifiConnection")
)

// WifiConnection is the single persisted network profile. It is
// replaced on every successful provisioning.
type WifiConnection struct {
	Ssid     string `json:"ssid"`
	Identity string `json:"identity,omitempty"`
	Psk      string `json:"psk,omitempty"`
}

func (db *DB) SetWifiConnection(connection *WifiConnection) error {
	return db.setJSON(settingsBucket, wifiConnectionKey, connection)
}

// GetWifiConnection returns the saved profile or nil when none exists.
func (db *DB) GetWifiConnection() (*WifiConnection, error) {
	connection := &WifiConnection{}

	found, err := db.getJSON(settingsBucket, wifiConnectionKey, connection)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return connection, nil
}

func (db *DB) ClearWifiConnection() error {
	return db.deleteKey(settingsBucket, wifiConnectionKey)
}
