package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	apiecho "github.com/entryway-auth/entryway/api/echo"
	"github.com/entryway-auth/entryway/cache"
	redisstore "github.com/entryway-auth/entryway/cache/redis"
	"github.com/entryway-auth/entryway/config"
	"github.com/entryway-auth/entryway/domain"
	"github.com/entryway-auth/entryway/internal/bruteforce"
	"github.com/entryway-auth/entryway/internal/metrics"
	"github.com/entryway-auth/entryway/internal/token"
	"github.com/entryway-auth/entryway/mongodb"
	"github.com/entryway-auth/entryway/notify"
	"github.com/entryway-auth/entryway/services"
	"github.com/entryway-auth/entryway/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("base_url", cfg.BaseURL).
		Str("mongo_db_name", cfg.MongoDBName).
		Msg("Starting entryway server")

	ctx := context.Background()

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracer provider")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Tracer provider shutdown failed")
		}
	}()

	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongodb.CloseMongoDB(ctx)

	repo, err := mongodb.NewSessionRepositoryMongo(ctx, mongodb.GetDB())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session repository")
	}

	codec, err := token.NewCodec(cfg.SecretKey, token.SHA256)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token codec")
	}

	policy := config.DefaultPolicy().Configure(func(p *config.Policy) {
		if cfg.ExpiryDays > 0 {
			expiry := time.Duration(cfg.ExpiryDays) * 24 * time.Hour
			p.ExpiresAt = func(s *domain.Session) time.Time { return s.CreatedAt.Add(expiry) }
		}
		if cfg.TimeoutMinutes > 0 {
			timeout := time.Duration(cfg.TimeoutMinutes) * time.Minute
			p.TimeoutAt = func(s *domain.Session) time.Time { return s.CreatedAt.Add(timeout) }
		}
		if cfg.LoginTTLHours > 0 {
			p.LoginTTL = time.Duration(cfg.LoginTTLHours) * time.Hour
		}
	})

	logins, stopLogins := buildLoginStore(ctx, cfg)
	defer stopLogins()

	sender := buildSender(cfg)

	delay := bruteforce.None()
	if policy.CombatBruteForce {
		delay = bruteforce.Bcrypt(bcrypt.DefaultCost)
	}

	registry := domain.NewPrincipalRegistry()
	// Principal resolvers are application-provided; register them here.

	sessions := services.NewSessionService(repo, codec, policy)
	flow := services.NewFlowService(sessions, registry, logins, sender, policy, cfg.BaseURL, delay)

	metrics.Register(prometheus.DefaultRegisterer)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	api := apiecho.NewPasswordlessAPI(flow, policy)
	api.RegisterRoutes(e)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL, defaulting to info")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// buildLoginStore selects Redis when an address is configured, otherwise the
// in-process store. The returned stop function releases whichever was built.
func buildLoginStore(ctx context.Context, cfg *config.ServerConfig) (domain.LoginStore, func()) {
	if cfg.RedisAddr == "" {
		store := cache.NewMemoryLoginStore()
		log.Info().Msg("Using in-memory login store")
		return store, store.Stop
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Fatal().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
	}
	log.Info().Str("redis_addr", cfg.RedisAddr).Msg("Using Redis login store")
	return redisstore.NewLoginStore(client, "entryway"), func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
}

func buildSender(cfg *config.ServerConfig) notify.Sender {
	if cfg.MailWebhookURL == "" {
		log.Warn().Msg("MAIL_WEBHOOK_URL not set, magic links are logged instead of delivered")
		return notify.LogSender{}
	}
	return notify.NewWebhookSender(cfg.MailWebhookURL, cfg.MailWebhookToken)
}
