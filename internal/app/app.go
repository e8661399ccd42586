// Package app assembles the Plant Doctor process from its configuration:
// quiz catalog, asset resolver, session store, diagnosis log, metrics, the
// Telegram bot and the Mini App API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/bootstrap"
	coreconfig "github.com/DoctorPlant/DrPlantTelegramApp/core/config"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	coretelegram "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/router"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/assets"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/diagnosis"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/httpapi"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/metrics"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quizbot"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/service"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/session"
)

const textRateLimited = "Слишком часто, подождите секунду."

// App holds the long-lived components built from a Config.
type App struct {
	cfg *Config

	Catalog  *quiz.Catalog
	Resolver *assets.Resolver
	Store    session.Store
	Metrics  *metrics.Metrics
	Service  *service.Quiz
	// Diagnoses is nil when the database is disabled.
	Diagnoses *diagnosis.Repository

	closers []func() error
	http    *httpapi.HTTPServer
}

// Bootstrap initialises the logger and database, then builds the app.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: &cfg.Config, Database: cfg.Database})
	if err != nil {
		return nil, err
	}
	a, err := Build(ctx, cfg, infra.DB)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	a.closers = append(a.closers, infra.Close)
	return a, nil
}

// Build wires the components on top of an already initialised
// infrastructure. db may be nil.
func Build(ctx context.Context, cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	a := &App{cfg: cfg, Metrics: metrics.New()}

	cat, err := quiz.LoadCatalog(cfg.Quiz.Dir, cfg.Quiz.DefaultID)
	if err != nil {
		return nil, fmt.Errorf("app: load quizzes: %w", err)
	}
	a.Catalog = cat
	logger.Info(ctx, logger.ComponentQuiz, "catalog.loaded",
		slog.String("dir", cfg.Quiz.Dir),
		slog.Int("quizzes", cat.Len()),
		slog.String("default_id", cat.Default().ID),
	)

	var manifest assets.Manifest
	if cfg.Assets.UseManifest {
		manifest, err = assets.LoadManifest(ctx, cfg.Assets.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	a.Resolver = assets.NewResolver(cfg.Assets.BaseURL, manifest, cfg.Assets.UseManifest)

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	opts := service.Options{Metrics: a.Metrics}
	if db != nil {
		a.Diagnoses = diagnosis.NewRepository(db)
		opts.Recorder = a.Diagnoses
	}
	a.Service = service.NewQuiz(cat, a.Store, opts)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	sc := a.cfg.Session
	switch sc.Backend {
	case coreconfig.SessionBackendRedis:
		client, err := session.DialRedis(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.Store = session.NewRedisStore(client, session.WithTTL(sc.TTL()), session.WithPrefix(sc.KeyPrefix))
		a.closers = append(a.closers, client.Close)
	default:
		a.Store = session.NewMemoryStore(session.WithMemoryTTL(sc.TTL()))
	}
	logger.Info(ctx, logger.ComponentSession, "store.ready",
		slog.String("backend", sc.Backend),
		slog.Duration("ttl", sc.TTL()),
	)
	return nil
}

// CoreConfig implements cmd.ConfigCarrier.
func (a *App) CoreConfig() *coreconfig.Config { return a.cfg.CoreConfig() }

// HTTPHandler returns the Mini App API handler.
func (a *App) HTTPHandler() http.Handler {
	hc := a.cfg.HTTP
	return httpapi.NewHandler(httpapi.Options{
		Service:         a.Service.WithChannel(diagnosis.ChannelWebApp),
		Resolver:        a.Resolver,
		Metrics:         a.Metrics,
		BotToken:        a.cfg.Telegram.Token,
		RequireInitData: hc.RequireInitData,
		InitDataMaxAge:  hc.InitDataMaxAge(),
		AllowedOrigins:  hc.AllowedOrigins,
	})
}

func (a *App) newHTTPServer() *httpapi.HTTPServer {
	hc := a.cfg.HTTP
	return httpapi.NewHTTPServer(hc.Listen, a.HTTPHandler(), hc.ReadTimeout(), hc.ShutdownTimeout())
}

// Serve runs only the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	return a.newHTTPServer().Serve(ctx)
}

// Bot returns the Telegram handlers bound to this app.
func (a *App) Bot() *quizbot.Bot {
	opts := quizbot.Options{
		Service:   a.Service.WithChannel(diagnosis.ChannelBot),
		Resolver:  a.Resolver,
		WebAppURL: a.cfg.HTTP.WebAppURL,
	}
	if a.Diagnoses != nil {
		opts.Stats = a.Diagnoses
	}
	return quizbot.New(opts)
}

// TelegramRunOptions implements cmd.TelegramApp. The HTTP API starts with
// the bot when http.enabled is set.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	bot := a.Bot()
	onLimited := func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: textRateLimited})
		}
		return nil
	}

	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    coretelegram.NewRegistry(),
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, onLimited),
		Routes: func(reg *coretelegram.Registry) []coretelegram.Route {
			return Routes(reg, a.cfg.Telegram.AdminID, bot)
		},
		OnBuild: func(_ context.Context, rt coretelegram.Runtime) error {
			return bot.Register(rt.Registry)
		},
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			if !a.cfg.HTTP.Enabled {
				return nil
			}
			srv := a.newHTTPServer()
			if _, err := srv.Start(ctx); err != nil {
				return err
			}
			a.http = srv
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			var errs []error
			if a.http != nil {
				errs = append(errs, a.http.Stop(ctx))
			}
			errs = append(errs, a.Close())
			return errors.Join(errs...)
		},
	}, nil
}

// Routes binds the registry tables and the quiz media handler.
func Routes(reg *coretelegram.Registry, adminID int64, bot *quizbot.Bot) []coretelegram.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: adminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return append(routes, router.TextRoutes(reg, router.TextOptions{UnknownMedia: bot.OnMedia})...)
}

// Close releases the session store client and the database handle.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
