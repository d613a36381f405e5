package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"posbridge/docs" //this is required to generate swagger docs
	"posbridge/internal/auth"
	"posbridge/internal/db"
	"posbridge/internal/payments"
	"posbridge/internal/ratelimiter"
	"posbridge/internal/tracing"
)

type application struct {
	config        config
	logger        *zap.SugaredLogger
	payments      *payments.PaymentManager
	references    *payments.ReferenceGenerator
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	Env             string        `env:"ENV" envDefault:"development"`
	APIURL          string        `env:"EXTERNAL_URL" envDefault:"localhost:8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Providers       []string      `env:"PROVIDERS" envSeparator:","`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
	ReferenceSalt   string        `env:"REFERENCE_SALT" envDefault:"posbridge"`
	ReferencePrefix string        `env:"REFERENCE_PREFIX" envDefault:"PB-"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://*,http://*"`

	DB          db.Config
	Auth        authConfig
	RateLimiter ratelimiter.Config
	Tracing     tracing.Config
}

type authConfig struct {
	Basic basicConfig
	Token tokenConfig
}

type tokenConfig struct {
	Secret string        `env:"AUTH_TOKEN_SECRET"`
	Exp    time.Duration `env:"AUTH_TOKEN_EXP" envDefault:"72h"`
	Iss    string        `env:"AUTH_TOKEN_ISS" envDefault:"posbridge"`
}

// basicConfig guards the debug endpoints. PassHash is a bcrypt hash.
type basicConfig struct {
	User     string `env:"AUTH_BASIC_USER"`
	PassHash string `env:"AUTH_BASIC_PASS_HASH"`
}

func providerParam(r *http.Request) string {
	return chi.URLParam(r, "provider")
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.Get("/providers", app.listProvidersHandler)
		r.Handle("/metrics", promhttp.Handler())

		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.Addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.Route("/payments/{provider}", func(r chi.Router) {
			r.Use(app.payments.Middleware())

			r.With(app.ServiceTokenMiddleware("payments:create")).Post("/", app.createPaymentHandler)
			r.With(app.ServiceTokenMiddleware("payments:read")).Get("/status/{id}", app.paymentStatusHandler)
			r.With(app.ServiceTokenMiddleware("payments:refund")).Post("/refund", app.refundPaymentHandler)

			// Providers call back unauthenticated; each adapter verifies its own signature.
			r.Group(func(r chi.Router) {
				r.Use(app.payments.CallbackMiddleware(providerParam))
				r.Get("/callback", app.paymentCallbackHandler)
				r.Post("/callback", app.paymentCallbackHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.APIURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.Addr,
		Handler:      mux,
		WriteTimeout: time.Second * 90,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.Addr, "env", app.config.Env, "providers", app.payments.Providers())

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.Addr, "env", app.config.Env)

	return nil
}
