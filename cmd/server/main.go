package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"biomatch/internal/audit"
	"biomatch/internal/biometric/extractor"
	"biomatch/internal/biometric/handler"
	"biomatch/internal/biometric/index"
	"biomatch/internal/biometric/liveness"
	"biomatch/internal/biometric/matcher"
	"biomatch/internal/biometric/metrics"
	"biomatch/internal/biometric/policy"
	"biomatch/internal/biometric/service"
	attemptstore "biomatch/internal/biometric/store/attempt"
	templatestore "biomatch/internal/biometric/store/template"
	"biomatch/internal/jwttoken"
	"biomatch/internal/platform/config"
	"biomatch/internal/platform/httpserver"
	"biomatch/internal/platform/logger"
	"biomatch/internal/platform/redis"
	httptransport "biomatch/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Workflow logic lives in internal/biometric.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	checks := map[string]httptransport.HealthCheck{}

	memTemplates := templatestore.NewInMemory()
	var templates service.TemplateStore = memTemplates
	var lister index.TemplateLister = memTemplates
	var attempts service.AttemptStore = attemptstore.NewInMemory()
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres pool init failed", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()
		pg := templatestore.NewPostgres(pool)
		templates = pg
		lister = pg
		checks["postgres"] = pool.Ping

		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("attempt store init failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		attempts = attemptstore.NewPostgres(db)
	}

	var policies service.PolicyStore = policy.NewInMemory()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		policies = policy.NewRedisCache(policies, redisClient.Client)
		checks["redis"] = redisClient.Health
	}

	var ext service.Extractor = extractor.NewDouble(0)
	if cfg.ExtractorURL != "" {
		ext = extractor.NewRemote(cfg.ExtractorURL, nil, cfg.CollaboratorTimeout)
	}
	var gate service.LivenessGate = liveness.NewDouble()
	if cfg.LivenessURL != "" {
		gate = liveness.NewRemote(cfg.LivenessURL, nil, cfg.CollaboratorTimeout)
	}

	var publisher service.AuditPublisher = audit.NewLogging(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("audit kafka init failed", "error", err.Error())
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	}

	engine := service.New(
		templates,
		attempts,
		policies,
		ext,
		index.NewLinear(lister, matcher.NewCosine(), 0),
		matcher.NewCosine(),
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithAuditPublisher(publisher),
		service.WithLiveness(gate),
		service.WithTracer(otel.Tracer("biomatch")),
	)

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "biomatch", "biomatch-api")
	router := httptransport.NewRouter(handler.New(engine, log, tokens), checks)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting biomatch", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
