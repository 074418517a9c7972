// Command livequeued runs the livequeue core as a standalone HTTP service:
// the livechat API, the background queue sweeper, and a pluggable storage
// backend selected by environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/api"
	audithook "github.com/omnikit/livequeue/audit_hook"
	"github.com/omnikit/livequeue/capacity"
	"github.com/omnikit/livequeue/ext"
	"github.com/omnikit/livequeue/manager"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/observability"
	"github.com/omnikit/livequeue/presence"
	"github.com/omnikit/livequeue/routing"
	"github.com/omnikit/livequeue/store"
	"github.com/omnikit/livequeue/store/memory"
	"github.com/omnikit/livequeue/store/mongo"
	"github.com/omnikit/livequeue/store/postgres"
	"github.com/omnikit/livequeue/sweeper"
)

func main() {
	if err := run(); err != nil {
		slog.Error("livequeued exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	directory, err := buildDirectory(logger)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(st, logger)
	if err != nil {
		return err
	}

	exts := ext.NewRegistry(logger)
	metricsExt, err := observability.NewMetricsExtension()
	if err != nil {
		return fmt.Errorf("metrics extension: %w", err)
	}
	exts.Register(metricsExt)
	exts.Register(observability.NewLoggingExtension(logger))
	if os.Getenv("LIVEQUEUE_AUDIT_LOG") != "" {
		auditLogger := logger.With("channel", "audit")
		exts.Register(audithook.New(audithook.RecorderFunc(
			func(_ context.Context, evt *audithook.AuditEvent) error {
				auditLogger.Info(evt.Action,
					"resource", evt.Resource,
					"resource_id", evt.ResourceID,
					"severity", evt.Severity,
					"metadata", evt.Metadata,
				)
				return nil
			}), audithook.WithLogger(logger)))
	}

	var strategy routing.Strategy
	switch name := envOr("LIVEQUEUE_STRATEGY", "auto"); name {
	case "auto":
		strategy = routing.NewAutoSelection(st, st, directory, exts, notifier, logger)
	case "manual":
		strategy = routing.NewManualSelection(st, st, exts, notifier, logger)
	default:
		return fmt.Errorf("unknown strategy %q", name)
	}

	maxRooms, err := envInt("LIVEQUEUE_MAX_ROOMS", 0)
	if err != nil {
		return err
	}

	mgr := manager.New(st, directory, strategy,
		manager.WithCapacityGate(capacity.NewLicenseGate(st, maxRooms)),
		manager.WithExtensions(exts),
		manager.WithNotifier(notifier),
		manager.WithLogger(logger),
	)

	swp, err := buildSweeper(st, mgr, logger)
	if err != nil {
		return err
	}

	lq, err := livequeue.New(
		livequeue.WithStore(st),
		livequeue.WithLogger(logger),
		livequeue.WithMaxConcurrentRooms(maxRooms),
	)
	if err != nil {
		return err
	}
	lq.SetSweeper(swp)
	lq.SetExtensions(exts)
	if err := lq.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	api.RegisterRoutes(r, api.NewHandler(mgr, st, st, logger))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + envOr("PORT", "8080"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	// Stops the sweeper, emits the shutdown hook, and closes the store.
	if err := lq.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

// buildStore selects the storage backend from LIVEQUEUE_STORE:
// memory (default), mongo, or postgres.
func buildStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	switch backend := envOr("LIVEQUEUE_STORE", "memory"); backend {
	case "memory":
		logger.Warn("using in-memory store; state is lost on restart")
		return memory.New(), nil

	case "mongo":
		uri := os.Getenv("MONGO_URI")
		if uri == "" {
			return nil, errors.New("MONGO_URI is not set")
		}
		client, err := mongod.Connect(mongoopts.Client().ApplyURI(uri))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		db := client.Database(envOr("MONGO_DB", "livequeue"))
		return mongo.New(db, mongo.WithLogger(logger)), nil

	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
		return postgres.New(ctx, dsn, postgres.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// buildDirectory wires agent presence: redis-backed when REDIS_ADDR is set,
// in-memory otherwise.
func buildDirectory(logger *slog.Logger) (agent.Directory, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Warn("REDIS_ADDR not set; using in-memory agent directory")
		return agent.NewMemoryDirectory(), nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return presence.New(client), nil
}

// buildNotifier layers the store-backed bus with an optional AMQP fanout.
func buildNotifier(st store.Store, logger *slog.Logger) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.NewBus(st)}
	if url := os.Getenv("AMQP_URL"); url != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(url, envOr("AMQP_EXCHANGE", "livequeue"))
		if err != nil {
			return nil, fmt.Errorf("amqp notifier: %w", err)
		}
		logger.Info("amqp notifications enabled")
		notifiers = append(notifiers, amqpNotifier)
	}
	return notifiers, nil
}

func buildSweeper(st store.Store, mgr *manager.Manager, logger *slog.Logger) (*sweeper.Sweeper, error) {
	opts := []sweeper.Option{}

	if raw := os.Getenv("LIVEQUEUE_DEPARTMENTS"); raw != "" {
		opts = append(opts, sweeper.WithDepartments(strings.Split(raw, ",")))
	}
	if raw := os.Getenv("LIVEQUEUE_SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("LIVEQUEUE_SWEEP_INTERVAL: %w", err)
		}
		opts = append(opts, sweeper.WithInterval(d))
	}
	if raw := os.Getenv("LIVEQUEUE_FULL_SWEEP"); raw != "" {
		sched, err := sweeper.ParseSchedule(raw)
		if err != nil {
			return nil, fmt.Errorf("LIVEQUEUE_FULL_SWEEP: %w", err)
		}
		opts = append(opts, sweeper.WithFullSweepSchedule(sched))
	}
	batch, err := envInt("LIVEQUEUE_SWEEP_BATCH", 0)
	if err != nil {
		return nil, err
	}
	if batch > 0 {
		opts = append(opts, sweeper.WithBatchSize(batch))
	}

	return sweeper.New(st, mgr, logger, opts...), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
