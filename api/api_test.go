package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/greenoaklabs/portald/ap"
	"github.com/greenoaklabs/portald/api"
	"github.com/greenoaklabs/portald/form"
	"github.com/greenoaklabs/portald/network"
	"github.com/greenoaklabs/portald/portal"
)

func newTestSession(wifi *network.MockWifi, accessPoint *ap.MockAp) *portal.Session {
	return portal.NewSession(&portal.Config{
		Wifi:        wifi,
		AccessPoint: accessPoint,
	})
}

func waitForState(c *qt.C, session *portal.Session, want portal.State) {
	c.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.Fatalf("session never reached %v, still %v", want, session.State())
}

func TestGetNetworks(t *testing.T) {
	c := qt.New(t)

	wifi := network.NewMockWifi()
	wifi.Networks = []*network.Network{
		{Ssid: "Home", Security: network.SecurityPersonal, Signal: -50},
		{Ssid: "Guest", Security: network.SecurityOpen, Signal: -70},
	}

	session := newTestSession(wifi, ap.NewMockAp("device-1234"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	waitForState(c, session, portal.StateAwaitingSubmission)

	handler := api.New(&api.Config{})
	handler.SetSession(session)

	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Get(server.URL + "/api/v1/networks")
	c.Assert(err, qt.IsNil)
	defer res.Body.Close()

	c.Assert(res.StatusCode, qt.Equals, http.StatusOK)

	var networks []struct {
		Ssid     string `json:"ssid"`
		Security string `json:"security"`
		Signal   int    `json:"signal"`
	}
	err = json.NewDecoder(res.Body).Decode(&networks)
	c.Assert(err, qt.IsNil)

	c.Assert(networks, qt.HasLen, 2)
	c.Assert(networks[0].Ssid, qt.Equals, "Home")
	c.Assert(networks[0].Security, qt.Equals, "personal")
	c.Assert(networks[1].Security, qt.Equals, "open")
}

func TestNoActiveSession(t *testing.T) {
	c := qt.New(t)

	handler := api.New(&api.Config{})

	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Get(server.URL + "/api/v1/networks")
	c.Assert(err, qt.IsNil)
	defer res.Body.Close()

	c.Assert(res.StatusCode, qt.Equals, http.StatusServiceUnavailable)

	var body struct {
		Error string `json:"error"`
	}
	err = json.NewDecoder(res.Body).Decode(&body)
	c.Assert(err, qt.IsNil)
	c.Assert(body.Error, qt.Equals, "no provisioning session is active")
}

func TestConnectValidation(t *testing.T) {
	c := qt.New(t)

	session := newTestSession(network.NewMockWifi(), ap.NewMockAp("device-1234"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	waitForState(c, session, portal.StateAwaitingSubmission)

	handler := api.New(&api.Config{})
	handler.SetSession(session)

	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Post(server.URL+"/api/v1/connect", "application/json", bytes.NewBufferString(`{`))
	c.Assert(err, qt.IsNil)
	res.Body.Close()
	c.Assert(res.StatusCode, qt.Equals, http.StatusBadRequest)

	res, err = http.Post(server.URL+"/api/v1/connect", "application/json", bytes.NewBufferString(`{"passphrase":"secret123"}`))
	c.Assert(err, qt.IsNil)
	res.Body.Close()
	c.Assert(res.StatusCode, qt.Equals, http.StatusBadRequest)
}

func TestConnectRejectionIsDistinguishable(t *testing.T) {
	c := qt.New(t)

	wifi := network.NewMockWifi()
	wifi.Networks = []*network.Network{
		{Ssid: "Home", Security: network.SecurityPersonal, Signal: -50},
	}

	session := newTestSession(wifi, ap.NewMockAp("device-1234"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()

	waitForState(c, session, portal.StateAwaitingSubmission)

	handler := api.New(&api.Config{})
	handler.SetSession(session)

	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Post(server.URL+"/api/v1/connect", "application/json", bytes.NewBufferString(`{"ssid":"Home","passphrase":"secret123"}`))
	c.Assert(err, qt.IsNil)
	res.Body.Close()
	c.Assert(res.StatusCode, qt.Equals, http.StatusAccepted)

	<-done

	// the session already ended, a late submission conflicts
	res, err = http.Post(server.URL+"/api/v1/connect", "application/json", bytes.NewBufferString(`{"ssid":"Home","passphrase":"secret123"}`))
	c.Assert(err, qt.IsNil)
	res.Body.Close()
	c.Assert(res.StatusCode, qt.Equals, http.StatusConflict)
}

func TestGetPortal(t *testing.T) {
	c := qt.New(t)

	session := newTestSession(network.NewMockWifi(), ap.NewMockAp("device-1234"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	waitForState(c, session, portal.StateAwaitingSubmission)

	handler := api.New(&api.Config{})
	handler.SetSession(session)

	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Get(server.URL + "/api/v1/portal")
	c.Assert(err, qt.IsNil)
	defer res.Body.Close()

	c.Assert(res.StatusCode, qt.Equals, http.StatusOK)

	var body struct {
		State     string `json:"state"`
		StartedAt string `json:"startedAt"`
	}
	err = json.NewDecoder(res.Body).Decode(&body)
	c.Assert(err, qt.IsNil)
	c.Assert(body.State, qt.Equals, "AWAITING_SUBMISSION")
	c.Assert(body.StartedAt, qt.Not(qt.Equals), "")
}

// TestFormAgainstLivePortal drives the whole submission path the way
// the configuration page does: form controller, HTTP client, portal
// API, session.
func TestFormAgainstLivePortal(t *testing.T) {
	c := qt.New(t)

	wifi := network.NewMockWifi()
	wifi.Networks = []*network.Network{
		{Ssid: "Home", Security: network.SecurityPersonal, Signal: -50},
	}

	session := newTestSession(wifi, ap.NewMockAp("device-1234"))

	done := make(chan *portal.Result, 1)
	go func() {
		result, _ := session.Run(context.Background())
		done <- result
	}()

	waitForState(c, session, portal.StateAwaitingSubmission)

	handler := api.New(&api.Config{})
	handler.SetSession(session)

	server := httptest.NewServer(handler)
	defer server.Close()

	controller := form.NewController(&form.Config{
		Portal: form.NewPortalClient(server.URL),
	})

	err := controller.Load()
	c.Assert(err, qt.IsNil)
	c.Assert(controller.Networks(), qt.HasLen, 1)

	err = controller.Select("Home")
	c.Assert(err, qt.IsNil)

	controller.SetPassphrase("secret123")

	err = controller.Submit()
	c.Assert(err, qt.IsNil)
	c.Assert(controller.State(), qt.Equals, form.StateAwaitingOutcome)

	result := <-done
	c.Assert(result.Outcome, qt.Equals, portal.OutcomeSucceeded)
	c.Assert(result.Credentials.Ssid, qt.Equals, "Home")
	c.Assert(result.Credentials.Passphrase, qt.Equals, "secret123")

	err = controller.HandleOutcome(true, "connected")
	c.Assert(err, qt.IsNil)
	c.Assert(controller.State(), qt.Equals, form.StateIdle)
}
