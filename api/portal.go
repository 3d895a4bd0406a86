package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/greenoaklabs/portald/network"
	"github.com/greenoaklabs/portald/portal"
)

type portalResponse struct {
	State     string    `json:"state"`
	StartedAt time.Time `json:"startedAt"`
	LastError string    `json:"lastError,omitempty"`
}

func (a *Handler) handleGetPortal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := a.currentSession()
		if session == nil {
			a.jsonError(w, "no provisioning session is active", http.StatusServiceUnavailable)
			return
		}

		res := &portalResponse{
			State:     session.State().String(),
			StartedAt: session.StartedAt(),
			LastError: session.LastError(),
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}

type connectRequest struct {
	Ssid       string `json:"ssid"`
	Identity   string `json:"identity"`
	Passphrase string `json:"passphrase"`
}

func (a *Handler) handleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := a.currentSession()
		if session == nil {
			a.jsonError(w, "no provisioning session is active", http.StatusServiceUnavailable)
			return
		}

		req := connectRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, "could not parse submission", http.StatusBadRequest)
			return
		}

		if req.Ssid == "" {
			a.jsonError(w, "ssid is required", http.StatusBadRequest)
			return
		}

		err = session.Submit(&network.Credentials{
			Ssid:       req.Ssid,
			Identity:   req.Identity,
			Passphrase: req.Passphrase,
		})
		if err == portal.ErrSubmissionRejected {
			a.jsonError(w, err.Error(), http.StatusConflict)
			return
		} else if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
