package portaldb_test

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/greenoaklabs/portald/portaldb"
)

func openTestDB(c *qt.C) *portaldb.DB {
	c.Helper()

	db, err := portaldb.Open(filepath.Join(c.TempDir(), "data"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestWifiConnectionRoundTrip(t *testing.T) {
	c := qt.New(t)

	db := openTestDB(c)

	saved, err := db.GetWifiConnection()
	c.Assert(err, qt.IsNil)
	c.Assert(saved, qt.IsNil)

	err = db.SetWifiConnection(&portaldb.WifiConnection{
		Ssid:     "Home",
		Identity: "alice@example.com",
		Psk:      "secret123",
	})
	c.Assert(err, qt.IsNil)

	saved, err = db.GetWifiConnection()
	c.Assert(err, qt.IsNil)
	c.Assert(saved, qt.Not(qt.IsNil))
	c.Assert(saved.Ssid, qt.Equals, "Home")
	c.Assert(saved.Identity, qt.Equals, "alice@example.com")
	c.Assert(saved.Psk, qt.Equals, "secret123")
}

func TestWifiConnectionIsReplaced(t *testing.T) {
	c := qt.New(t)

	db := openTestDB(c)

	err := db.SetWifiConnection(&portaldb.WifiConnection{Ssid: "Home", Psk: "secret123"})
	c.Assert(err, qt.IsNil)

	err = db.SetWifiConnection(&portaldb.WifiConnection{Ssid: "Office", Psk: "different"})
	c.Assert(err, qt.IsNil)

	saved, err := db.GetWifiConnection()
	c.Assert(err, qt.IsNil)
	c.Assert(saved.Ssid, qt.Equals, "Office")
}

func TestClearWifiConnection(t *testing.T) {
	c := qt.New(t)

	db := openTestDB(c)

	// clearing an empty store is not an error
	err := db.ClearWifiConnection()
	c.Assert(err, qt.IsNil)

	err = db.SetWifiConnection(&portaldb.WifiConnection{Ssid: "Home", Psk: "secret123"})
	c.Assert(err, qt.IsNil)

	err = db.ClearWifiConnection()
	c.Assert(err, qt.IsNil)

	saved, err := db.GetWifiConnection()
	c.Assert(err, qt.IsNil)
	c.Assert(saved, qt.IsNil)
}
