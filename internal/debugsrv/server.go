// Package debugsrv is the purely observational HTTP server: /healthz,
// /metrics, /subscribers, and a read-only /ws mirror, grounded on the
// teacher's declared-but-unwired go-chi/VictoriaMetrics deps and on
// stages/websocket.go's broadcast-with-drop idiom for the mirror.
package debugsrv

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SubscriberLister is satisfied by internal/relay's registrySnapshotAdapter,
// which wraps *relay.Registry.
type SubscriberLister interface {
	Snapshot() []Subscriber
}

// Subscriber mirrors relay.SubscriberStat without importing internal/relay,
// avoiding a cycle back into the package that constructs this server.
type Subscriber struct {
	ID     uint64 `json:"id"`
	Remote string `json:"remote"`
	Drops  int64  `json:"drops"`
}

// Server serves the debug endpoints over its own listener, independent of
// the subscriber-facing TCP port.
type Server struct {
	registry SubscriberLister
	log      zerolog.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	mirrors map[*websocket.Conn]struct{}
}

func New(registry SubscriberLister, log zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		log:      log.With().Str("component", "debugsrv").Logger(),
		mirrors:  make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/subscribers", s.handleSubscribers)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w, true)
}

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleWS upgrades to a websocket connection that receives a copy of
// every matched envelope via Mirror, until it disconnects. Inbound frames
// are read only to detect the disconnect and are discarded, matching the
// subscriber protocol's receive-only contract.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.mirrors[conn] = struct{}{}
	s.mu.Unlock()

	s.log.Info().Str("remote", r.RemoteAddr).Msg("debug mirror connected")

	// block until the client goes away; we never expect inbound frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.mirrors, conn)
	s.mu.Unlock()
	conn.Close()
}

// Mirror broadcasts data to every connected /ws client, dropping (and
// disconnecting) any client whose write fails, the same per-conn error
// isolation as stages/websocket.go's connWriter.
func (s *Server) Mirror(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.mirrors {
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			conn.Close()
			delete(s.mirrors, conn)
		}
	}
}
