package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/monitor"
)

// Controller is the engine surface the HTTP handlers drive.
// *engine.Engine implements it.
type Controller interface {
	Snapshot() engine.Snapshot
	StartFlashing() bool
	StopFlashing() bool
	Reset() bool
	SetThreshold(v float64)
	SetInterval(d time.Duration)
}

// Publisher accepts probability samples. *monitor.ChannelSource implements
// it.
type Publisher interface {
	Publish(ctx context.Context, s monitor.Sample) error
}

// Option configures a Server.
type Option func(*Server)

// WithSamples enables POST /samples, forwarding each sample to p.
func WithSamples(p Publisher) Option {
	return func(s *Server) { s.samples = p }
}

// WithAllowedOrigins sets the CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// Server routes HTTP requests to a Controller.
type Server struct {
	ctl     Controller
	samples Publisher
	origins []string
	mux     *chi.Mux
}

// NewServer builds the router.
func NewServer(ctl Controller, opts ...Option) *Server {
	s := &Server{ctl: ctl, origins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	s.mux = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	m := chi.NewRouter()
	m.Use(chimw.Recoverer)
	m.Use(requestLogger)
	m.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	m.Get("/healthz", handle(s.health))
	m.Get("/state", handle(s.state))
	m.Post("/flashing/start", handle(s.startFlashing))
	m.Post("/flashing/stop", handle(s.stopFlashing))
	m.Post("/selection/reset", handle(s.resetSelection))
	m.Put("/settings", handle(s.updateSettings))
	m.Post("/samples", handle(s.postSample))
	return m
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the listener fails. It
// returns only after the shutdown goroutine has exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
	}()

	slog.Info("http listening", "addr", ln.Addr().String())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	cancel()
	<-stopped
	return err
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
