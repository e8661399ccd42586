// Package httpapi serves the JSON API the Telegram Mini App front-end calls
// to browse quizzes and run sessions.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/assets"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/metrics"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/service"
)

// sessionKeyPrefix keeps API sessions apart from chat-keyed bot sessions in
// a shared store.
const sessionKeyPrefix = "web:"

const maxBodyBytes = 4 << 10

// Options configures the API.
type Options struct {
	Service  *service.Quiz
	Resolver *assets.Resolver
	Metrics  *metrics.Metrics

	// BotToken verifies init data; it is required when RequireInitData is set.
	BotToken        string
	RequireInitData bool
	InitDataMaxAge  time.Duration
	AllowedOrigins  []string

	// Now and NewID are test hooks.
	Now   func() time.Time
	NewID func() string
}

// Server holds the API dependencies.
type Server struct {
	opts Options
}

// NewHandler builds the router with every route and middleware attached.
func NewHandler(opts Options) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newSessionID
	}
	if opts.Resolver == nil {
		opts.Resolver = assets.NewResolver("", nil, false)
	}
	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(accessLog(opts.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors(opts.AllowedOrigins))

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/quizzes", s.listQuizzes)
		r.Get("/quizzes/{quizID}", s.getQuiz)
		r.Post("/quizzes/{quizID}/sessions", s.createSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/answer", s.answer)
			r.Post("/back", s.back)
			r.Post("/restart", s.restart)
		})
	})
	return r
}

// HTTPServer wraps net/http.Server with the lifecycle the app uses.
type HTTPServer struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPServer binds handler to addr.
func NewHTTPServer(addr string, handler http.Handler, readTimeout, shutdownTimeout time.Duration) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      2 * readTimeout,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Start listens on the configured address and serves in the background.
// Serve errors other than a clean shutdown are reported on the returned
// channel.
func (h *HTTPServer) Start(ctx context.Context) (<-chan error, error) {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: listen %s: %w", h.srv.Addr, err)
	}
	logger.Info(ctx, logger.ComponentHTTP, "http.listen", slog.String("addr", ln.Addr().String()))
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, logger.ComponentHTTP, "http.serve", logger.Err(err))
			errc <- err
		}
	}()
	return errc, nil
}

// Stop drains in-flight requests within the shutdown timeout.
func (h *HTTPServer) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.shutdownTimeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	logger.Info(ctx, logger.ComponentHTTP, "http.stopped")
	return nil
}

// Serve runs the server until ctx is done.
func (h *HTTPServer) Serve(ctx context.Context) error {
	errc, err := h.Start(ctx)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return h.Stop(ctx)
	case err := <-errc:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn(context.Background(), logger.ComponentHTTP, "http.encode", logger.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
