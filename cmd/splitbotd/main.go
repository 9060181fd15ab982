// splitbotd is the bill-splitting bot daemon. It serves the WhatsApp
// webhook, drives the session lifecycle engine, and delivers outbound
// messages through the provider.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/splitbot/internal/api"
	"github.com/felixgeelhaar/splitbot/internal/bot"
	"github.com/felixgeelhaar/splitbot/internal/classify"
	"github.com/felixgeelhaar/splitbot/internal/config"
	"github.com/felixgeelhaar/splitbot/internal/domain"
	"github.com/felixgeelhaar/splitbot/internal/messaging"
	"github.com/felixgeelhaar/splitbot/internal/notify"
	"github.com/felixgeelhaar/splitbot/internal/ocr"
	"github.com/felixgeelhaar/splitbot/internal/session"
	"github.com/felixgeelhaar/splitbot/internal/storage/postgres"
	"github.com/felixgeelhaar/splitbot/internal/storage/sqlite"
	"github.com/felixgeelhaar/splitbot/internal/user"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLogging(cfg.Debug)
	logger := slog.Default()

	ctx := context.Background()

	// Storage. Postgres when DATABASE_URL is set, local SQLite otherwise
	// (config validation only lets that happen in debug mode).
	stores, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Outbound queue.
	queueConn, err := messaging.NewConnection(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueConn.Close()

	producer := messaging.NewProducer(queueConn)

	// Delivery consumer. Without provider credentials (local debug runs)
	// outbound messages simply accumulate in the queue.
	var consumer *messaging.Consumer
	if cfg.KapsoURL != "" && cfg.KapsoPhoneNumberID != "" {
		kapso, err := messaging.NewKapsoClient(messaging.KapsoConfig{
			APIKey:        cfg.KapsoAPIKey,
			BaseURL:       cfg.KapsoURL,
			PhoneNumberID: cfg.KapsoPhoneNumberID,
		})
		if err != nil {
			return fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		client := messaging.NewResilientClient(kapso, messaging.ResilientClientConfig{
			RatePerSecond: cfg.OutboundRatePerSecond,
			Logger:        logger,
		})
		defer client.Close()

		consumer = messaging.NewConsumer(queueConn, client, messaging.ConsumerConfig{
			Workers:  cfg.DeliveryWorkers,
			Prefetch: 1,
		})
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start delivery consumer: %w", err)
		}
		defer consumer.Stop()
	} else {
		slog.Warn("WhatsApp provider not configured, outbound messages will stay queued")
	}

	// Model-backed message understanding.
	classifier := classify.NewResilientClassifier(classify.NewOpenAIClassifier(classify.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ClassifierModel,
	}), logger)

	extractor := ocr.NewResilientExtractor(ocr.NewOpenAIExtractor(ocr.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.VisionModel,
	}), cfg.DeliveryWorkers, logger)
	downloader := ocr.NewDownloader(30 * time.Second)

	// Domain services.
	users := user.NewService(stores.users)
	engine := session.NewService(stores.users, stores.sessions)
	notifier := notify.NewService(stores.sessions, producer)

	dispatcher := bot.NewDispatcher(engine, users, classifier, producer, notifier)
	receiver := bot.NewReceiver(dispatcher, users, engine, downloader, extractor, stores.invoices, producer)

	router := api.NewRouter(&api.App{
		Receiver:       receiver,
		PingStore:      stores.ping,
		QueueConnected: queueConn.IsConnected,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	slog.Info("starting splitbotd",
		"port", cfg.Port,
		"debug", cfg.Debug,
		"workers", cfg.DeliveryWorkers,
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("splitbotd stopped")
	return nil
}

// storeSet groups the storage-backed interfaces main wires into services.
type storeSet struct {
	users    domain.UserStore
	sessions domain.SessionStore
	invoices domain.InvoiceStore
	ping     func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config) (*storeSet, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		return &storeSet{
			users:    postgres.NewUserStore(db),
			sessions: postgres.NewSessionStore(db),
			invoices: postgres.NewInvoiceStore(db),
			ping:     db.Ping,
		}, db.Close, nil
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	slog.Info("using local sqlite storage", "path", cfg.SQLitePath)
	return &storeSet{
		users:    sqlite.NewUserStore(db),
		sessions: sqlite.NewSessionStore(db),
		invoices: sqlite.NewInvoiceStore(db),
		ping:     db.PingContext,
	}, func() { db.Close() }, nil
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if debug {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
