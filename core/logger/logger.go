// Package logger is the process-wide structured logger. Records are built by
// a custom slog handler that orders keys, normalises enumerated fields, adds
// correlation data from the context and writes through an asynchronous
// fan-out to stdout and optional log files.
//
// Every helper is safe to call before InitLogger; records are then dropped.
package logger

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/buildinfo"
	coreconfig "github.com/DoctorPlant/DrPlantTelegramApp/core/config"
)

// Component names used across the application.
const (
	ComponentApp     = "app"
	ComponentTG      = "tg"
	ComponentTGWire  = "tg.wire"
	ComponentSender  = "tg.sender"
	ComponentDB      = "db"
	ComponentMigrate = "db.migrate"
	ComponentQuiz    = "quiz"
	ComponentSession = "session"
	ComponentHTTP    = "http"
	ComponentAssets  = "assets"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool
	out      *fanoutWriter

	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(defaultSampleNum, defaultSampleDen)
	traceAll     atomic.Bool
	stacks       atomic.Bool

	// L is the base logger. It stays nil until InitLogger succeeds.
	L *slog.Logger
)

// InitLogger configures the global logger from cfg. Only the first call has
// an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() { err = install(cfg) })
	return err
}

func install(cfg *coreconfig.Config) error {
	var lc coreconfig.LoggingConfig
	if cfg != nil {
		lc = cfg.Logging
	}
	s := settingsFrom(lc)

	sinks, err := openSinks(lc)
	if err != nil {
		return err
	}

	levelVar.Set(s.level)
	debugSampler.Set(s.sampleNum, s.sampleDen)
	traceAll.Store(envTruthy("TRACE") || envTruthy("LOG_TRACE"))
	stacks.Store(s.stacks)

	out = newFanoutWriter(sinks, 256)
	L = slog.New(newStructuredHandler(handlerConfig{
		level:    &levelVar,
		writer:   out,
		format:   s.format,
		keyOrder: s.keyOrder,
	}))
	slog.SetDefault(L)

	attrs := []slog.Attr{
		slog.String("component", ComponentApp),
		slog.String("version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("go_version", runtime.Version()),
		slog.String("cfg_profile", s.profile),
		slog.String("format", string(s.format)),
	}
	if cfg != nil {
		attrs = append(attrs, slog.String("mode", cfg.Telegram.RunMode))
	}
	LogEvent(context.Background(), L, slog.LevelInfo, "startup", attrs...)
	return nil
}

// Shutdown flushes buffered output and closes log files.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if out == nil || closed {
		return nil
	}
	closed = true
	return errors.Join(out.Flush(), out.Close())
}

// Component returns the base logger scoped to a component, or nil before
// InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes a record whose message is carried by the event attribute.
// A nil logg falls back to the context logger, then to L.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs under the named component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		if logg = FromContext(ctx); logg != nil && component != "" {
			logg = logg.With("component", component)
		}
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug record should be
// written. TRACE=1 in the environment turns sampling off.
func ShouldSampleDebug() bool {
	return traceAll.Load() || debugSampler.Allow()
}

// StacksEnabled reports whether panic logs carry a stack trace.
func StacksEnabled() bool { return stacks.Load() }
