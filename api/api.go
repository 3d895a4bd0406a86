package api

import (
	"net"
	"net/http"
	"sync"

	"github.com/go-errors/errors"
	"github.com/gobuffalo/packr/v2"
	"github.com/gorilla/mux"
	"github.com/greenoaklabs/portald/portal"
	"github.com/rs/cors"
)

// check Handler compliance to the portal's interface during compile time
var _ portal.Handler = (*Handler)(nil)

type Config struct {
	Log Logger
}

// Handler serves the captive portal: the static configuration page
// and the endpoints its form talks to. The handler outlives sessions;
// the current one is swapped in whenever a provisioning attempt starts.
type Handler struct {
	mu      sync.RWMutex
	session *portal.Session
	router  *mux.Router
	handler http.Handler
	log     Logger
}

func New(config *Config) *Handler {
	a := &Handler{
		router: mux.NewRouter(),
	}

	if config.Log != nil {
		a.log = config.Log
	} else {
		a.log = noopLogger{}
	}

	a.router.Use(a.loggingMiddleware)

	v1 := a.router.PathPrefix("/api/v1").Subrouter()
	v1.Handle("/networks", a.handleGetNetworks()).Methods(http.MethodGet)
	v1.Handle("/networks/refresh", a.handleRefreshNetworks()).Methods(http.MethodPost)
	v1.Handle("/connect", a.handleConnect()).Methods(http.MethodPost)
	v1.Handle("/portal", a.handleGetPortal()).Methods(http.MethodGet)
	v1.Handle("/events", a.handleStreamEvents()).Methods(http.MethodGet)

	box := packr.New("ui", "../ui")
	a.router.PathPrefix("/").Handler(http.FileServer(box))

	// Captive portal popups on various phones load the page from
	// surprising origins
	a.handler = cors.AllowAll().Handler(a.router)

	return a
}

func (a *Handler) SetSession(session *portal.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.session = session
}

func (a *Handler) currentSession() *portal.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.session
}

func (a *Handler) Serve(lis net.Listener) error {
	err := http.Serve(lis, a.handler)
	if err != nil {
		return errors.Errorf("unable to serve portal: %v", err)
	}

	return nil
}

func (a *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.log.Debugf("Accessing %v", r.RequestURI)
		next.ServeHTTP(w, r)
	})
}
