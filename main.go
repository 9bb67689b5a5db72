package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"household-notify-go/internal/config"
	"household-notify-go/internal/dispatch"
	"household-notify-go/internal/handlers"
	"household-notify-go/internal/scheduler"
	"household-notify-go/internal/store"
)

func main() {
	// Load .env file; absence is fine, config falls back to defaults.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	if cfg.Database.URL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	pgStore, err := store.NewPostgresStore(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pgStore.RunMigrations(ctx); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations completed")

	if err := bootstrapVapidKeys(ctx, pgStore, logger); err != nil {
		logger.Fatal("failed to bootstrap VAPID keys", zap.Error(err))
	}

	queue := store.NewRedisQueue(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)

	dispatcher := dispatch.NewDispatcher(pgStore, pgStore, queue, dispatch.MailerConfig{
		URL:   cfg.Mailer.URL,
		Token: cfg.Mailer.Token,
	}, logger)
	dispatcher.Subscriber = cfg.Push.Subscriber
	go dispatcher.Run(ctx, queue.Subscribe(ctx))

	sched := scheduler.New(pgStore, queue, logger)
	if cfg.Scheduler.Interval > 0 {
		sched.Interval = cfg.Scheduler.Interval
	}
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("scheduler stopped", zap.Error(err))
		}
	}()

	h := handlers.NewHandler(pgStore, pgStore, pgStore, queue, logger)
	h.Backends = []handlers.Pinger{pgStore, queue}

	mux := http.NewServeMux()

	// Push subscription lifecycle
	mux.HandleFunc("/api/push/key", h.GetVAPIDKeyHandler)
	mux.HandleFunc("/api/push/subscribe", h.SubscribePushHandler)
	mux.HandleFunc("/api/push/unsubscribe", h.UnsubscribePushHandler)
	mux.HandleFunc("/api/push/status", handlers.AuthMiddleware(h.PushStatusHandler))

	// Email settings
	mux.HandleFunc("/api/email-settings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.GetEmailSettingsHandler(w, r)
		} else {
			h.SaveEmailSettingsHandler(w, r)
		}
	})

	// Dispatch webhook (shared-secret protected) and history
	mux.HandleFunc("/api/notify", h.NotifyHandler)
	mux.HandleFunc("/api/notifications/recent", h.RecentNotificationsHandler)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.HealthHandler)

	// Serve static files (service script and other PWA assets)
	fs := http.FileServer(http.Dir("web/static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Server.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// bootstrapVapidKeys makes sure the key-configuration row exists: env
// takes precedence, then the stored row, and a fresh pair is generated
// and persisted when neither is present.
func bootstrapVapidKeys(ctx context.Context, keyConfig store.KeyConfigStore, logger *zap.Logger) error {
	publicKey := os.Getenv("VAPID_PUBLIC_KEY")
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	if publicKey != "" && privateKey != "" {
		return keyConfig.SaveVapidKeys(ctx, publicKey, privateKey)
	}

	if _, err := keyConfig.VapidKeys(ctx); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrKeyConfigMissing) {
		return err
	}

	logger.Info("no VAPID keys configured, generating a new pair")
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	return keyConfig.SaveVapidKeys(ctx, publicKey, privateKey)
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	lvl := new(zapcore.Level)
	if err := lvl.Set(level); err != nil {
		*lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
