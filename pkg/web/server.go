package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	prom "github.com/groundlink-io/groundlink/pkg/observability/prometheus"
)

// ErrEmptyAddr is returned by NewServer when no listen address is supplied.
var ErrEmptyAddr = errors.New("listen address cannot be empty")

// ServerConfig configures the operator HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8090".
	Addr string

	// JWTSecret enables bearer-token authentication on /ws when non-empty.
	// Tokens must be HS256-signed with this secret.
	JWTSecret string
}

// Server exposes the feed, health and metrics endpoints.
type Server struct {
	http *http.Server
	feed *Feed
	log  *slog.Logger
}

// NewServer builds the operator server around an existing feed.
func NewServer(cfg ServerConfig, feed *Feed, log *slog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddr
	}
	if feed == nil {
		feed = NewFeed(log, nil)
	}
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", withAuth(cfg.JWTSecret, log, feed.HandleWS))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(prom.DefaultRegistry, promhttp.HandlerOpts{}))

	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // websocket writes are long-lived
		},
		feed: feed,
		log:  log,
	}, nil
}

// Feed returns the server's feed.
func (s *Server) Feed() *Feed {
	return s.feed
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("operator server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("operator server failed", "error", err)
		}
	}()
}

// Shutdown disconnects feed clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.feed.Close()
	return s.http.Shutdown(ctx)
}

// withAuth wraps h with HS256 bearer-token validation. An empty secret
// disables authentication.
func withAuth(secret string, log *slog.Logger, h http.HandlerFunc) http.HandlerFunc {
	if secret == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			// Browsers cannot set headers on websocket dials.
			raw = r.URL.Query().Get("token")
		}
		if raw == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Warn("rejected feed client", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		h(w, r)
	}
}
