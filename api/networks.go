package api

import (
	"net/http"

	"github.com/greenoaklabs/portald/portal"
)

type networkResponse struct {
	Ssid     string `json:"ssid"`
	Security string `json:"security"`
	Signal   int    `json:"signal"`
}

func (a *Handler) handleGetNetworks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := a.currentSession()
		if session == nil {
			a.jsonError(w, "no provisioning session is active", http.StatusServiceUnavailable)
			return
		}

		networks := session.Networks()

		res := make([]*networkResponse, 0, len(networks))
		for _, network := range networks {
			res = append(res, &networkResponse{
				Ssid:     network.Ssid,
				Security: network.Security.String(),
				Signal:   network.Signal,
			})
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}

func (a *Handler) handleRefreshNetworks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := a.currentSession()
		if session == nil {
			a.jsonError(w, "no provisioning session is active", http.StatusServiceUnavailable)
			return
		}

		err := session.Rescan()
		if err == portal.ErrRescanRejected {
			a.jsonError(w, err.Error(), http.StatusConflict)
			return
		} else if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
