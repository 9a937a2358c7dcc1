package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hireloop/interview-notifier/internal/api"
	"github.com/hireloop/interview-notifier/internal/api/handler"
	"github.com/hireloop/interview-notifier/internal/broker"
	"github.com/hireloop/interview-notifier/internal/config"
	"github.com/hireloop/interview-notifier/internal/db"
	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/metrics"
	"github.com/hireloop/interview-notifier/internal/ratelimiter"
	"github.com/hireloop/interview-notifier/internal/reminder"
	"github.com/hireloop/interview-notifier/internal/repository"
	"github.com/hireloop/interview-notifier/internal/service"
	"github.com/hireloop/interview-notifier/internal/template"
	"github.com/hireloop/interview-notifier/internal/transport"
	"github.com/hireloop/interview-notifier/internal/worker"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- broker ----
	var (
		brk       broker.Broker
		redisPing handler.Pinger
	)
	switch cfg.BrokerMode {
	case config.BrokerStream:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		stream, err := broker.NewStream(ctx, rdb, cfg.RedisStream, cfg.RedisGroup, cfg.RedisConsumer, logger)
		if err != nil {
			logger.Fatal("failed to init redis stream broker", zap.Error(err))
		}
		brk = stream
		redisPing = handler.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	default:
		brk = broker.NewMemory()
	}
	logger.Info("broker ready", zap.String("mode", string(cfg.BrokerMode)))

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	outboxRepo := repository.NewPgOutboxRepository(pool)
	logRepo := repository.NewPgLogRepository(pool)
	jobRepo := repository.NewPgReminderJobRepository(pool)
	bookingRepo := repository.NewPgBookingRepository(pool)

	catalog := template.DefaultCatalog()
	sender := transport.NewChatClient(cfg.ChatBaseURL, cfg.ChatTimeout)
	budget := ratelimiter.New(cfg.SendRate)
	gate := worker.NewGate(cfg.BreakerWindowLow, cfg.BreakerWindowHigh)
	backoff := worker.NewBackoff(cfg.RetryBase, cfg.RetryMax)
	announcer := worker.NewAnnouncer(brk, cfg.MaxAttempts, logger)

	quiet := reminder.QuietHours{
		StartHour: cfg.QuietStartHour,
		EndHour:   cfg.QuietEndHour,
		Grace:     cfg.QuietGrace,
	}
	scheduler := reminder.NewScheduler(jobRepo, outboxRepo, bookingRepo, announcer, quiet, logger)
	defer scheduler.Close()

	// ---- notification worker ----
	w := worker.New(
		worker.Config{
			BatchSize:    cfg.BatchSize,
			MaxAttempts:  cfg.MaxAttempts,
			PollInterval: cfg.PollInterval,
			ClaimLease:   2 * cfg.PollInterval,
		},
		outboxRepo, logRepo, catalog, sender, budget, gate, backoff,
		m.WorkerHooks(), logger,
	)
	worker.RegisterBookingHandlers(w, bookingRepo)
	// A delivered confirmation arms the reminder chain for its booking.
	w.RegisterSideEffect(domain.KindBookingConfirmed, func(ctx context.Context, e *domain.OutboxEntry) error {
		return scheduler.ScheduleForBooking(ctx, e.BookingID)
	})

	svc := service.NewBookingService(bookingRepo, outboxRepo, logRepo, scheduler, announcer, logger)

	// ---- background goroutines ----
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if err := scheduler.SyncJobs(ctx); err != nil {
		logger.Fatal("failed to sync reminder jobs", zap.Error(err))
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(workerCtx)
		}()
	}

	consumer := worker.NewConsumer(brk, w, outboxRepo,
		cfg.BatchSize, cfg.ClaimMinIdle, cfg.ClaimInterval, m.WorkerHooks(), logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(workerCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		refreshGauges(workerCtx, m, outboxRepo, scheduler, gate, logger)
	}()

	// ---- HTTP server ----
	probes := map[string]handler.Pinger{
		"postgres": pool,
		"redis":    redisPing,
	}
	router := api.NewRouter(api.Deps{
		Bookings:    svc,
		Outbox:      outboxRepo,
		Reminders:   scheduler,
		Breaker:     gate,
		DeadLetters: brk,
		Probes:      probes,
		Registry:    reg,
		Logger:      logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Disarm reminder timers; persisted rows re-arm on next start.
	scheduler.Close()

	// 3. Signal workers and consumer to stop, then wait for in-flight
	//    deliveries to finish.
	cancelWorkers()
	wg.Wait()

	logger.Info("server stopped cleanly")
}

// refreshGauges keeps the slow-moving gauges current without instrumenting
// the hot path.
func refreshGauges(
	ctx context.Context,
	m *metrics.Metrics,
	outbox repository.OutboxRepository,
	scheduler *reminder.Scheduler,
	gate *worker.Gate,
	logger *zap.Logger,
) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pending, err := outbox.CountPending(ctx); err == nil {
				m.OutboxBacklog.Set(float64(pending))
			} else {
				logger.Warn("failed to count pending outbox entries", zap.Error(err))
			}
			m.RemindersArmed.Set(float64(scheduler.Armed()))
			if gate.Remaining() > 0 {
				m.BreakerOpen.Set(1)
			} else {
				m.BreakerOpen.Set(0)
			}
		}
	}
}
