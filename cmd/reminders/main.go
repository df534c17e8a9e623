package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/api"
	"github.com/lalithlochan/rentals/internal/circuitbreaker"
	"github.com/lalithlochan/rentals/internal/config"
	"github.com/lalithlochan/rentals/internal/db"
	"github.com/lalithlochan/rentals/internal/delivery"
	"github.com/lalithlochan/rentals/internal/metrics"
	"github.com/lalithlochan/rentals/internal/observ"
	"github.com/lalithlochan/rentals/internal/redis"
	"github.com/lalithlochan/rentals/internal/reminder"
	"github.com/lalithlochan/rentals/internal/scheduler"
	"github.com/lalithlochan/rentals/internal/sns"
	"github.com/lalithlochan/rentals/internal/sqs"
)

func main() {
	once := flag.Bool("once", false, "run the payment reminder job once and exit")
	flag.Parse()

	if err := run(*once); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	policy, err := reminder.ParseOverduePolicy(cfg.ReminderOverduePolicy)
	if err != nil {
		return fmt.Errorf("invalid REMINDER_OVERDUE_POLICY: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting payment reminder service",
		zap.Int("port", cfg.Port),
		zap.Bool("once", once),
		zap.String("timezone", cfg.ReminderTimezone),
		zap.String("overdue_policy", string(policy)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	database, err := db.New(ctx, db.Config{
		URL:      cfg.DatabaseURL,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database, logger)

	// Redis backs the run lock, run history and rate limiting. All three are
	// optional; the dedup key keeps runs idempotent without it.
	var (
		guard       *redis.JobGuard
		rateLimiter *redis.RateLimiter
	)
	if cfg.RedisEnabled {
		redisClient, err := redis.New(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, run lock and rate limiting disabled",
				zap.Error(err),
				zap.String("host", cfg.RedisHost),
			)
		} else {
			defer redisClient.Close()
			guard = redis.NewJobGuard(redisClient, logger)
			rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
				Limit:  cfg.RateLimitPerMinute,
				Window: time.Minute,
			})
		}
	}

	fanout, breakers := buildDelivery(ctx, cfg, logger)

	var runGuard reminder.RunGuard
	if guard != nil {
		runGuard = guard
	}
	runner := reminder.NewRunner(
		reminder.NewResolver(repo, logger),
		reminder.NewEmitter(repo, fanout, policy, logger),
		runGuard,
		reminder.Config{
			Location:    cfg.ReminderLocation,
			Concurrency: cfg.ReminderConcurrency,
		},
		logger,
	)

	if once {
		summary, err := runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("payment reminder run failed: %w", err)
		}
		logger.Info("single run finished",
			zap.Int("checked", summary.Checked),
			zap.Int("sent", summary.Sent),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
		return nil
	}

	if cfg.ReminderCron != "" {
		sched, err := scheduler.New(scheduler.Config{
			Spec:     cfg.ReminderCron,
			Location: cfg.ReminderLocation,
		}, runner, logger)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	var handler *api.Handler
	if guard != nil {
		handler = api.NewHandlerWithSummaries(logger, runner, repo, guard)
	} else {
		handler = api.NewHandler(logger, runner, repo)
	}

	var limiter api.RateLimiter
	if rateLimiter != nil {
		limiter = rateLimiter
	}
	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(limiter, logger, api.IPKeyFunc))
		handler.Routes(r, cfg.JobTriggerToken)
	})

	r.Get("/health", api.HealthHandler(database, logger, breakers...))
	r.Handle("/metrics", metrics.Handler())

	// A run can outlast the usual write timeout.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}

// buildDelivery wires every configured out-of-app channel behind its own
// circuit breaker. With nothing configured, notifications are only logged.
func buildDelivery(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*delivery.Fanout, []*circuitbreaker.CircuitBreaker) {
	var senders []delivery.Sender

	if cfg.SESFromEmail != "" {
		ses, err := delivery.NewSESSender(ctx, delivery.SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.SESFromEmail,
		}, logger)
		if err != nil {
			logger.Warn("SES sender unavailable, email disabled", zap.Error(err))
		} else {
			senders = append(senders, ses)
		}
	}

	if cfg.SMSEnabled {
		sms, err := delivery.NewSNSSender(ctx, delivery.SNSConfig{Region: cfg.SNSRegion}, logger)
		if err != nil {
			logger.Warn("SNS sender unavailable, SMS disabled", zap.Error(err))
		} else {
			senders = append(senders, sms)
		}
	}

	if cfg.WebhookURL != "" {
		senders = append(senders, delivery.NewWebhookSender(logger, delivery.WebhookConfig{
			URL:     cfg.WebhookURL,
			Timeout: time.Duration(cfg.WebhookTimeout) * time.Second,
		}))
	}

	if cfg.SQSQueueURL != "" {
		producer, err := sqs.NewProducer(ctx, sqs.Config{
			Region:   cfg.AWSRegion,
			QueueURL: cfg.SQSQueueURL,
		}, logger)
		if err != nil {
			logger.Warn("sqs producer unavailable, events will not be enqueued", zap.Error(err))
		} else {
			senders = append(senders, producer)
		}
	}

	if cfg.EventsTopicARN != "" {
		publisher, err := sns.NewPublisher(ctx, cfg.EventsTopicARN, logger, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("sns topic publisher unavailable", zap.Error(err))
		} else {
			senders = append(senders, publisher)
		}
	}

	if len(senders) == 0 {
		logger.Info("no delivery channels configured, logging notifications only")
		return delivery.NewFanout(logger, delivery.NewLogSender(logger)), nil
	}

	protected := make([]delivery.Sender, 0, len(senders))
	breakers := make([]*circuitbreaker.CircuitBreaker, 0, len(senders))
	for _, s := range senders {
		ps := circuitbreaker.Wrap(s, logger)
		protected = append(protected, ps)
		breakers = append(breakers, ps.Breaker())
	}

	fanout := delivery.NewFanout(logger, protected...)
	logger.Info("initialized notification delivery", zap.Strings("channels", fanout.Channels()))

	return fanout, breakers
}
