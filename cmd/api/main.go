package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"posbridge/internal/auth"
	"posbridge/internal/db"
	"posbridge/internal/payments"
	"posbridge/internal/ratelimiter"
	"posbridge/internal/store"
	"posbridge/internal/tracing"
)

// NewLogger creates a zap logger. Development builds get a colored console
// encoder, everything else gets JSON.
func NewLogger(env, level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if env == "development" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core).Sugar(), nil
}

// loadConfig reads .env when present, then the process environment.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}

var version = "0.3.0"

//	@title			posbridge API
//	@description	Unified payment provider gateway: create payments, receive verified callbacks.

//	@contact.name	API Support
//	@contact.url	http://www.swagger.io/support
//	@contact.email	support@swagger.io

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Tracing
	cfg.Tracing.ServiceVersion = version
	cfg.Tracing.Environment = cfg.Env
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal(err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Errorw("tracing shutdown failed", "error", err.Error())
		}
	}()

	manager := payments.NewPaymentManager(logger)

	// Database is optional and only backs the payment audit log.
	if cfg.DB.Enabled() {
		pool, err := db.New(ctx, cfg.DB)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		logger.Info("database connection pool established")

		storage := store.NewStorage(pool)
		if err := storage.Logs.EnsureSchema(ctx); err != nil {
			logger.Fatal(err)
		}
		manager.WithEventLogger(storage.Logs)

		expvar.Publish("database", expvar.Func(func() any {
			s := pool.Stat()
			return map[string]any{
				"total_conns":    s.TotalConns(),
				"idle_conns":     s.IdleConns(),
				"acquired_conns": s.AcquiredConns(),
			}
		}))
	}

	loaded := manager.Load(cfg.Providers, payments.EnvSettings, payments.Deps{
		Logger:  logger,
		Timeout: cfg.ProviderTimeout,
	})
	if len(loaded) == 0 {
		logger.Warnw("no payment providers loaded", "requested", cfg.Providers)
	}

	references, err := payments.NewReferenceGenerator(cfg.ReferenceSalt, cfg.ReferencePrefix)
	if err != nil {
		logger.Fatal(err)
	}

	// Rate limiter
	var limiter ratelimiter.Limiter
	if cfg.RateLimiter.Enabled {
		rl := ratelimiter.NewTokenBucketLimiter(
			cfg.RateLimiter.RequestsPerTimeFrame,
			cfg.RateLimiter.TimeFrame,
			cfg.RateLimiter.Burst,
		)
		defer rl.Stop()
		limiter = rl
	}

	// Service tokens are only enforced when a secret is configured.
	var authenticator auth.Authenticator
	if cfg.Auth.Token.Secret != "" {
		authenticator = auth.NewJWTAuthenticator(
			cfg.Auth.Token.Secret,
			cfg.Auth.Token.Iss,
			cfg.Auth.Token.Iss,
			cfg.Auth.Token.Exp,
		)
	} else {
		logger.Warn("AUTH_TOKEN_SECRET is not set, payment endpoints are unauthenticated")
	}

	app := &application{
		config:        cfg,
		logger:        logger,
		payments:      manager,
		references:    references,
		authenticator: authenticator,
		rateLimiter:   limiter,
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("providers", expvar.Func(func() any {
		return manager.Providers()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
