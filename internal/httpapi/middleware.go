package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/metrics"
)

type ctxKey int

const userKey ctxKey = iota

func withUser(ctx context.Context, u WebAppUser) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// userFrom returns the verified Mini App user; the zero user when the
// request carried no init data.
func userFrom(ctx context.Context) WebAppUser {
	u, _ := ctx.Value(userKey).(WebAppUser)
	return u
}

// authenticate verifies init data when present. Without it the request
// passes as anonymous unless RequireInitData is set.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(InitDataHeader)
		if raw == "" && !s.opts.RequireInitData {
			next.ServeHTTP(w, r)
			return
		}
		data, err := VerifyInitData(raw, s.opts.BotToken, s.opts.InitDataMaxAge, s.opts.Now())
		if err == nil && data.User.ID == 0 {
			err = ErrInitDataInvalid
		}
		if err != nil {
			logger.Warn(r.Context(), logger.ComponentHTTP, "http.auth",
				slog.String("status", "fail"),
				slog.String("path", r.URL.Path),
				logger.Err(err),
			)
			msg := "invalid init data"
			if errors.Is(err, ErrInitDataMissing) {
				msg = "init data required"
			} else if errors.Is(err, ErrInitDataExpired) {
				msg = "init data expired"
			}
			writeError(w, http.StatusUnauthorized, msg)
			return
		}
		ctx := withUser(r.Context(), data.User)
		ctx = logger.WithUpdateMeta(ctx, 0, data.User.ID, 0)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog writes one line per request and feeds the HTTP metrics. The
// route label is the chi pattern so ids never become label values.
func accessLog(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if rid := chimw.GetReqID(ctx); rid != "" {
				ctx = logger.WithRID(ctx, rid)
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			elapsed := time.Since(start)
			m.ObserveHTTP(route, status, elapsed)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			} else if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				level = slog.LevelDebug
			}
			logger.Event(ctx, logger.ComponentHTTP, level, "http.request",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("remote", r.RemoteAddr),
				slog.Duration("duration", logger.RoundMS(elapsed)),
			)
		})
	}
}

// cors allows the Mini App origin. An empty list allows any origin.
func cors(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := set[origin]
				switch {
				case len(set) == 0:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				case ok:
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+InitDataHeader)
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
