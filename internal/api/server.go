package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tankarena/internal/config"
	"tankarena/internal/game"
)

// Server is the HTTP API server with WebSocket support. It combines the
// HTTP router with the room registry and WebSocket hub that drive every
// live match.
type Server struct {
	rooms       *game.RoomManager
	validator   *game.InputValidator
	hub         *Hub
	router      *chi.Mux
	rateLimiter *IPRateLimiter

	cleanupInterval time.Duration
	stopChan        chan struct{}
}

// NewServer creates a new API server with default production configuration.
//
// No network listener is opened and the room cleanup and metrics loops
// do not start until Start() is called. The input validator and IP rate
// limiter built here do start their own cleanup goroutines; Stop() ends
// them.
func NewServer(cfg config.AppConfig, stageDescriptor, eventLogPath string) *Server {
	rooms := game.NewRoomManager(cfg.Room, cfg.Engine, stageDescriptor, eventLogPath)
	validator := game.NewInputValidator(cfg.Limits)
	hub := NewHub(rooms, validator, cfg.Limits)
	rooms.OnSlotExpired(hub.onRoomSlotExpired)

	s := &Server{
		rooms:           rooms,
		validator:       validator,
		hub:             hub,
		cleanupInterval: 30 * time.Second,
		stopChan:        make(chan struct{}),
	}

	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)
	s.router = NewRouter(RouterConfig{
		Hub:         hub,
		Rooms:       rooms,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	return s
}

// Start begins the HTTP server AND starts background workers (the room
// cleanup loop and the metrics sampler). This is the only method that
// opens a network listener.
func (s *Server) Start(addr string) error {
	go s.rooms.RunCleanupLoop(s.cleanupInterval, s.stopChan)
	go s.runMetricsLoop()

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 WebSocket endpoint: ws://localhost%s/ws", addr)

	return http.ListenAndServe(addr, s.router)
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// runMetricsLoop periodically samples the room registry and sums each
// room's event-log counters; the engine package cannot report directly
// to Prometheus without an import cycle, so this is the bridge.
func (s *Server) runMetricsLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			stats := s.rooms.GetStats()
			UpdateRoomCount(stats.RoomCount)
			UpdatePlayerCount(stats.PlayerCount)

			var total, dropped uint64
			for _, room := range s.rooms.AllRooms() {
				if room.EventLog != nil {
					total += room.EventLog.GetTotalCount()
					dropped += room.EventLog.GetDroppedCount()
				}
			}
			UpdateEventLogStats(total, dropped)
		}
	}
}

// Stop performs graceful shutdown of background workers.
func (s *Server) Stop() {
	close(s.stopChan)
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.validator.Stop()
}
