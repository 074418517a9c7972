package livequeue

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Livequeue instance.
type Option func(*Livequeue) error

// Storer is the minimal store interface held at the top level. It covers
// lifecycle operations only. The full composite interface (store.Store) is
// used in subsystem layers that don't create import cycles. Implementations
// satisfy store.Store which embeds all subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// sweepRunner is an internal interface for sweeper lifecycle.
type sweepRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Livequeue is the top-level handle for the queueing and routing core.
//
// Create one with New() and functional options. It holds references to the
// store, the background sweeper, and the extension registry via internal
// interfaces to avoid import cycles; manager.New wires the orchestration
// layer, and the caller hands the sweeper back via SetSweeper.
type Livequeue struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	sweeper    sweepRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Livequeue instance with the given options.
func New(opts ...Option) (*Livequeue, error) {
	lq := &Livequeue{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(lq); err != nil {
			return nil, err
		}
	}
	return lq, nil
}

// Logger returns the configured logger.
func (lq *Livequeue) Logger() *slog.Logger { return lq.logger }

// Store returns the configured store.
func (lq *Livequeue) Store() Storer { return lq.store }

// Config returns a copy of the configuration.
func (lq *Livequeue) Config() Config { return lq.config }

// SetSweeper sets the background sweeper (called by the manager package).
func (lq *Livequeue) SetSweeper(s sweepRunner) { lq.sweeper = s }

// SetExtensions sets the extension emitter (called by the manager package).
func (lq *Livequeue) SetExtensions(e extensionEmitter) { lq.extensions = e }

// Start begins background queue sweeping. A handle without a sweeper
// starts successfully with sweeping disabled: parked inquiries then advance
// only through explicit QueueInquiry and TakeInquiry calls.
func (lq *Livequeue) Start(ctx context.Context) error {
	if lq.sweeper == nil {
		lq.logger.Info("no sweeper configured; background sweeping disabled")
		lq.started = true
		return nil
	}
	if err := lq.sweeper.Start(ctx); err != nil {
		return err
	}
	lq.started = true
	return nil
}

// Stop gracefully shuts down the instance.
func (lq *Livequeue) Stop(ctx context.Context) error {
	if lq.sweeper != nil && lq.started {
		if err := lq.sweeper.Stop(ctx); err != nil {
			lq.logger.Error("sweeper stop error", "error", err)
		}
	}
	if lq.extensions != nil {
		lq.extensions.EmitShutdown(ctx)
	}
	if lq.store != nil {
		return lq.store.Close()
	}
	return nil
}

// WithMaxConcurrentRooms caps the number of simultaneously open rooms.
func WithMaxConcurrentRooms(n int) Option {
	return func(lq *Livequeue) error {
		lq.config.MaxConcurrentRooms = n
		return nil
	}
}

// WithDepartments sets the departments the sweeper will poll.
func WithDepartments(departments []string) Option {
	return func(lq *Livequeue) error {
		lq.config.Departments = departments
		return nil
	}
}

// WithSweepInterval sets how often the sweeper polls for queued inquiries.
func WithSweepInterval(d time.Duration) Option {
	return func(lq *Livequeue) error {
		lq.config.SweepInterval = d
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(lq *Livequeue) error {
		lq.logger = l
		return nil
	}
}

// WithStore sets the persistence backend. The store must implement Storer
// at minimum; typically it will be a store.Store which embeds all subsystem
// store interfaces.
func WithStore(s Storer) Option {
	return func(lq *Livequeue) error {
		lq.store = s
		return nil
	}
}
