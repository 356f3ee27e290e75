package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"

	"github.com/industria/cotizacion-service/internal/application/notify"
	"github.com/industria/cotizacion-service/internal/application/quotation"
	"github.com/industria/cotizacion-service/internal/audit"
	"github.com/industria/cotizacion-service/internal/config"
	cacheredis "github.com/industria/cotizacion-service/internal/infrastructure/caching/redis"
	"github.com/industria/cotizacion-service/internal/infrastructure/db/postgres"
	"github.com/industria/cotizacion-service/internal/infrastructure/email"
	rabbit "github.com/industria/cotizacion-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/industria/cotizacion-service/internal/infrastructure/realtime"
	"github.com/industria/cotizacion-service/internal/logger"
	"github.com/industria/cotizacion-service/internal/transport/http/handlers"
	authmw "github.com/industria/cotizacion-service/internal/transport/http/middleware"
	"github.com/industria/cotizacion-service/internal/transport/http/router"
)

// sysClock implements quotation.Clock using system time
type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now().UTC() }

// App holds all dependencies for the service
type App struct {
	Config *config.Config
	Server *http.Server
	DB     *sql.DB

	Publisher *rabbit.Publisher
	Consumer  *rabbit.Consumer
	Cache     *cacheredis.Client
	Hub       *realtime.Hub
}

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	u, _ := url.Parse(cfg.DatabaseURL)
	zlog.Info().
		Str("db_user", u.User.Username()).
		Str("db_host", u.Host).
		Str("db_db", u.Path).
		Msg("db config loaded")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()

	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			zlog.Fatal().Err(err).Msg("db ping failed")
		}
	}

	app := NewApp(cfg, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.Consumer != nil {
		if err := app.Consumer.Start(ctx); err != nil {
			zlog.Fatal().Err(err).Msg("consumer start failed")
		}
	}

	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server crashed")
		}
	}()

	<-ctx.Done()
	zlog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("http shutdown failed")
	}
	if app.Consumer != nil {
		if err := app.Consumer.Stop(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("consumer stop failed")
		}
	}
	if app.Hub != nil {
		app.Hub.Close()
	}
	if app.Publisher != nil {
		_ = app.Publisher.Close()
	}
	if app.Cache != nil {
		_ = app.Cache.Close()
	}
}

func NewApp(cfg *config.Config, db *sql.DB) *App {
	auditLog := audit.New(zlog.Logger)

	// 1) Infrastructure
	repo := postgres.New(db)

	var cache *cacheredis.Client
	if cfg.RedisURL != "" {
		c, err := cacheredis.New(cfg.RedisURL)
		if err != nil {
			zlog.Warn().Err(err).Msg("redis unavailable; details cache and mail dedup disabled")
		} else {
			cache = c
		}
	}

	var rabbitPub *rabbit.Publisher
	var pub quotation.EventPublisher = quotation.NoopPublisher{}

	if cfg.RabbitURL != "" {
		p, err := rabbit.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			zlog.Fatal().Err(err).Msg("rabbit publisher init failed")
		}
		rabbitPub = p
		pub = p
		zlog.Info().Str("exchange", cfg.RabbitExchange).Msg("rabbit publisher ready")
	} else {
		zlog.Warn().Msg("RABBIT_URL empty: domain events will not be published")
	}

	hub := realtime.NewHub(zlog.Logger)

	var sender notify.Sender
	if cfg.SMTPHost != "" {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			Timeout:  15 * time.Second,
			Insecure: cfg.AppEnv == "dev",
		}, zlog.Logger)
	} else {
		zlog.Warn().Msg("SMTP_HOST empty: using fake mail sender")
		sender = email.NewFakeSender(zlog.Logger)
	}

	// 2) Application
	var svcCache quotation.Cache
	if cache != nil {
		svcCache = cache
	}
	svc := quotation.New(repo, sysClock{}, pub, svcCache, auditLog, cfg.CacheTTLDetails)

	var idem notify.Idempotency = noopIdem{}
	if cache != nil {
		idem = cache
	}
	notifySvc := notify.New(sender, hub, idem, cfg.OfficeEmail, zlog.Logger)

	var consumer *rabbit.Consumer
	if cfg.RabbitURL != "" {
		consumer = rabbit.NewConsumer(rabbit.ConsumerConfig{
			RabbitURL:  cfg.RabbitURL,
			Prefetch:   cfg.RabbitPrefetch,
			MaxRetries: cfg.RabbitMaxRetry,
			Tag:        "cotizacion-service",
		}, notifySvc.Routes(), auditLog, zlog.Logger)
	}

	// 3) Transport
	h := handlers.NewQuotationsHandler(svc)
	auth := authmw.NewAuth(cfg.JWTSecret, cfg.JWTIssuer)
	z := handlers.NewHealthHandler()

	// 4) Router
	httpHandler := router.New(h, auth, z, hub, cfg)

	// 5) Server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &App{
		Config:    cfg,
		Server:    srv,
		DB:        db,
		Publisher: rabbitPub,
		Consumer:  consumer,
		Cache:     cache,
		Hub:       hub,
	}
}

// noopIdem lets mails go out without dedup when redis is down.
type noopIdem struct{}

func (noopIdem) MarkOnce(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (noopIdem) Delete(context.Context, ...string) error                       { return nil }
