package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/peanuts-pos/internal/config"
	"github.com/noah-isme/peanuts-pos/internal/health"
	httpmw "github.com/noah-isme/peanuts-pos/internal/http/middleware"
	"github.com/noah-isme/peanuts-pos/internal/obs"
	"github.com/noah-isme/peanuts-pos/internal/pricing"
	"github.com/noah-isme/peanuts-pos/internal/register"
	"github.com/noah-isme/peanuts-pos/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger, logCloser := obs.NewLoggerWithOptions(obs.LogOptions{
		Format: cfg.Obs.LogFormat,
		Level:  cfg.Obs.LogLevel,
		File:   cfg.Obs.LogFile,
	})
	defer logCloser.Close()
	logger := baseLogger.With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "peanuts-pos",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var (
		httpMetrics  *obs.HTTPMetrics
		salesMetrics *obs.SalesMetrics
	)
	if cfg.Obs.EnablePrometheus {
		buckets := obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets)
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, buckets, prometheus.DefaultRegisterer)
		salesMetrics = obs.NewSalesMetrics(cfg.Obs.MetricsNamespace, prometheus.DefaultRegisterer)
	}

	clock := func() time.Time { return time.Now().In(cfg.Location) }
	recorder := stats.NewRecorder(cfg.StatsDir)
	session := register.NewSession(register.Options{
		SaveDir:  cfg.SaveDir,
		Recorder: recorder,
		Bulk:     pricing.ParseBulkPolicy(cfg.BulkDivisor),
		Logger:   logger,
		Metrics:  salesMetrics,
		Now:      clock,
	})
	if cfg.OpenFile != "" {
		if err := session.Load(ctx, cfg.OpenFile); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.OpenFile).Msg("open startup catalog")
		}
	}

	rollover := register.NewRollover(session, cfg.ProfitReset, cfg.Location, logger)
	rollover.Start()
	defer rollover.Stop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	if cfg.Obs.EnablePrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), os.Getenv("SECURE_PPROF_BASIC_AUTH_USER"), os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")))
	}

	healthHandler := health.Handler{
		Probes: map[string]health.Probe{
			"saves": health.DirWritable(cfg.SaveDir),
			"stats": health.DirWritable(cfg.StatsDir),
		},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	registerHandler := register.NewHandler(session, cfg.Location)
	registerHandler.PageLimit = cfg.PageLimit
	r.Route("/api/v1", func(v chi.Router) {
		v.Use(httpmw.RequireJSON)
		registerHandler.Routes(v)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("bulk_divisor", cfg.BulkDivisor).Str("profit_reset", cfg.ProfitResetSpec).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		shutdownServer(srv, cfg.ShutdownTimeout, logger)
	}
}

func shutdownServer(srv *http.Server, timeout time.Duration, logger zerolog.Logger) {
	health.SetReady(false)
	logger.Info().Dur("timeout", timeout).Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
