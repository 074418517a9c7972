// Package sweeper resumes parked inquiries. Inquiries left in queued status
// (over capacity, no agent available, manual routing) are periodically
// promoted and pushed back through the queueing procedure, oldest first.
// Only the elected leader sweeps, so a multi-instance deployment never
// advances the same inquiry twice.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/agent"
	"github.com/omnikit/livequeue/backoff"
	"github.com/omnikit/livequeue/cluster"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

// Queuer runs the queueing procedure for an inquiry. *manager.Manager
// satisfies this interface.
type Queuer interface {
	QueueInquiry(ctx context.Context, inq *inquiry.Inquiry, selected *agent.Selected) error

	// RoutesAutomatically reports whether the routing strategy assigns
	// agents on its own. When false, sweeping is a no-op: promoting
	// inquiries nobody will delegate just churns QueuedAt.
	RoutesAutomatically() bool
}

// Store is the slice of the aggregate store the sweeper needs.
type Store interface {
	inquiry.Store
	cluster.Store
}

// cronParser supports standard 5-field cron and descriptors like
// "@every 5m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression for WithFullSweepSchedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Sweeper polls for queued inquiries and advances them toward routing.
type Sweeper struct {
	store  Store
	queuer Queuer

	instanceID  id.InstanceID
	hostname    string
	departments []string
	interval    time.Duration
	batchSize   int
	leaderTTL   time.Duration
	limiter     *Limiter
	bo          backoff.Strategy
	logger      *slog.Logger

	// fullSweep runs on a cron schedule and ignores the rate limiter, so a
	// backlog accumulated during an outage drains in one pass.
	fullSweep cronlib.Schedule

	mu       sync.Mutex
	running  bool
	nextFull time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets how often the sweeper polls for queued inquiries.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// WithBatchSize sets how many inquiries are advanced per department per
// sweep.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) { s.batchSize = n }
}

// WithDepartments restricts the sweep to the given departments. By default
// only the global queue is swept.
func WithDepartments(departments []string) Option {
	return func(s *Sweeper) { s.departments = departments }
}

// WithLeaderTTL sets the TTL for leader election.
func WithLeaderTTL(d time.Duration) Option {
	return func(s *Sweeper) { s.leaderTTL = d }
}

// WithLimiter sets the per-department rate limiter.
func WithLimiter(l *Limiter) Option {
	return func(s *Sweeper) { s.limiter = l }
}

// WithBackoff sets the idle backoff strategy applied between empty sweeps.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Sweeper) { s.bo = b }
}

// WithFullSweepSchedule sets a cron schedule for periodic full sweeps that
// bypass the rate limiter. Parse expressions with ParseSchedule.
func WithFullSweepSchedule(sched cronlib.Schedule) Option {
	return func(s *Sweeper) { s.fullSweep = sched }
}

// New creates a Sweeper.
func New(st Store, queuer Queuer, logger *slog.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	hostname, _ := os.Hostname()
	s := &Sweeper{
		store:      st,
		queuer:     queuer,
		instanceID: id.NewInstanceID(),
		hostname:   hostname,
		interval:   5 * time.Second,
		batchSize:  50,
		leaderTTL:  30 * time.Second,
		limiter:    NewLimiter(),
		bo:         backoff.Default(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InstanceID returns the sweeper's unique instance identifier.
func (s *Sweeper) InstanceID() id.InstanceID { return s.instanceID }

// Start registers the instance and launches the leadership and sweep
// goroutines. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	err := s.store.RegisterInstance(ctx, &cluster.Instance{
		ID:          s.instanceID,
		Hostname:    s.hostname,
		Departments: s.departments,
		State:       cluster.InstanceActive,
	})
	if err != nil {
		return err
	}

	s.running = true
	s.stopCh = make(chan struct{})
	if s.fullSweep != nil {
		s.nextFull = s.fullSweep.Next(time.Now().UTC())
	}

	s.wg.Add(2)
	go s.leaderLoop()
	go s.sweepLoop()

	s.logger.Info("sweeper started",
		slog.String("instance_id", s.instanceID.String()),
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize),
	)
	return nil
}

// Stop signals the sweeper to stop, waits for goroutines to finish, and
// deregisters the instance.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	err := s.store.DeregisterInstance(ctx, s.instanceID)
	s.logger.Info("sweeper stopped", slog.String("instance_id", s.instanceID.String()))
	return err
}

// leaderLoop continuously heartbeats and attempts to acquire or renew
// leadership.
func (s *Sweeper) leaderLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.leaderTTL / 2)
	defer ticker.Stop()

	s.tryLeadership()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tryLeadership()
		}
	}
}

func (s *Sweeper) tryLeadership() {
	ctx := context.Background()

	if err := s.store.HeartbeatInstance(ctx, s.instanceID); err != nil {
		s.logger.Warn("instance heartbeat error", slog.String("error", err.Error()))
	}

	// Renew first (cheap if already leader), then try to acquire.
	renewed, err := s.store.RenewLeadership(ctx, s.instanceID, s.leaderTTL)
	if err != nil {
		s.logger.Warn("leadership renew error", slog.String("error", err.Error()))
		return
	}
	if renewed {
		return
	}
	acquired, err := s.store.AcquireLeadership(ctx, s.instanceID, s.leaderTTL)
	if err != nil {
		s.logger.Warn("leadership acquire error", slog.String("error", err.Error()))
		return
	}
	if acquired {
		s.logger.Info("acquired sweep leadership", slog.String("instance_id", s.instanceID.String()))
	}
}

// sweepLoop polls on the configured interval, backing off while the queue
// stays empty.
func (s *Sweeper) sweepLoop() {
	defer s.wg.Done()

	attempt := 0
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
		}

		delay := s.interval
		if s.isLeader() {
			full := s.fullSweepDue()
			n := s.Sweep(context.Background(), full)
			if n > 0 {
				attempt = 0
			} else {
				attempt++
				delay += s.bo(attempt)
			}
		}
		timer.Reset(delay)
	}
}

func (s *Sweeper) isLeader() bool {
	leader, err := s.store.GetLeader(context.Background())
	if err != nil {
		s.logger.Warn("get leader error", slog.String("error", err.Error()))
		return false
	}
	return leader != nil && leader.ID.String() == s.instanceID.String()
}

func (s *Sweeper) fullSweepDue() bool {
	if s.fullSweep == nil {
		return false
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Before(s.nextFull) {
		return false
	}
	s.nextFull = s.fullSweep.Next(now)
	return true
}

// Sweep advances queued inquiries for every configured department, oldest
// first, and returns the number advanced. When full is true the rate
// limiter is bypassed. Exported so operators can trigger a sweep manually.
// Under manual routing Sweep does nothing: queued inquiries wait for an
// agent to claim them.
func (s *Sweeper) Sweep(ctx context.Context, full bool) int {
	if !s.queuer.RoutesAutomatically() {
		return 0
	}

	departments := s.departments
	if len(departments) == 0 {
		departments = []string{""}
	}

	advanced := 0
	for _, dept := range departments {
		queued, err := s.store.ListQueued(ctx, inquiry.ListOpts{Department: dept, Limit: s.batchSize})
		if err != nil {
			s.logger.Error("list queued inquiries error",
				slog.String("department", dept),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, inq := range queued {
			if !full && !s.limiter.Acquire(dept) {
				break
			}
			if s.advance(ctx, inq) {
				advanced++
			}
			if !full {
				s.limiter.Release(dept)
			}
		}
	}
	return advanced
}

// advance promotes a queued inquiry to ready and runs the queueing
// procedure. An inquiry the procedure leaves in ready (no agent available)
// is parked back so the next sweep sees it again.
func (s *Sweeper) advance(ctx context.Context, inq *inquiry.Inquiry) bool {
	readied, err := s.store.ReadyInquiry(ctx, inq.ID)
	if err != nil {
		if errors.Is(err, livequeue.ErrInvalidState) || errors.Is(err, livequeue.ErrInquiryNotFound) {
			// Raced by a take or a removal since the list.
			return false
		}
		s.logger.Warn("ready inquiry error",
			slog.String("inquiry_id", inq.ID.String()),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := s.queuer.QueueInquiry(ctx, readied, nil); err != nil {
		s.logger.Warn("queue inquiry error",
			slog.String("inquiry_id", inq.ID.String()),
			slog.String("error", err.Error()),
		)
		s.park(ctx, inq.ID)
		return false
	}

	fresh, err := s.store.GetInquiry(ctx, inq.ID)
	if err != nil {
		return false
	}
	if fresh.Status == inquiry.StatusReady {
		s.park(ctx, inq.ID)
		return false
	}
	return fresh.Status == inquiry.StatusTaken
}

func (s *Sweeper) park(ctx context.Context, inquiryID id.InquiryID) {
	if _, err := s.store.QueueInquiry(ctx, inquiryID); err != nil {
		s.logger.Warn("park inquiry error",
			slog.String("inquiry_id", inquiryID.String()),
			slog.String("error", err.Error()),
		)
	}
}
