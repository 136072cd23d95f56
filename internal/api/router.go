package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tankarena/internal/game"
)

// RouterConfig contains all dependencies needed to construct the HTTP
// router. Designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Hub:   hub,
//	    Rooms: roomManager,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000,
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Hub serves the WebSocket upgrade endpoint (required).
	Hub *Hub

	// Rooms backs the read-only /api/rooms stats endpoint (required).
	Rooms *game.RoomManager

	// RateLimiter is an optional pre-configured rate limiter. If nil, a
	// new one is built from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default allowed origins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// No network listeners are opened. When cfg.RateLimiter is nil, the
// IPRateLimiter built here starts its own cleanup goroutine; otherwise no
// goroutines are started. The router can be served with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetricsMiddleware)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = AllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := cfg.Rooms.GetStats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
			"rooms":     stats.RoomCount,
			"players":   stats.PlayerCount,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", handleRoomStats(cfg.Rooms))
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		cfg.Hub.HandleWebSocket(w, r)
	})

	return r
}

// requestMetricsMiddleware records latency and status counts for every
// HTTP request via RecordRequest, keyed by route pattern rather than raw
// path so per-room URLs don't blow up cardinality.
func requestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		RecordRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}

// handleRoomStats reports aggregate room/player counts for dashboards
// and smoke tests; never exposes per-room contents.
func handleRoomStats(rooms *game.RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := rooms.GetStats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}
