package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// handleStreamEvents pushes session state updates to the portal page
// so it can react to Applying, Failed and Succeeded without polling.
func (a *Handler) handleStreamEvents() http.HandlerFunc {
	upgrader := &websocket.Upgrader{
		// The portal answers every DNS name, origins are meaningless here
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session := a.currentSession()
		if session == nil {
			a.jsonError(w, "no provisioning session is active", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.log.Errorf("Could not upgrade: %v", err)
			return
		}

		defer conn.Close()

		client := session.Subscribe()
		defer client.Cancel()

		// Discard incoming messages, but notice a closing peer
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					conn.Close()
					return
				}
			}
		}()

		for update := range client.Updates {
			err := conn.WriteJSON(update)
			if err != nil {
				a.log.Debugf("Could not write update: %v", err)
				return
			}
		}
	}
}
