package imap

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// AccountSyncer runs one polling cycle for one account. Satisfied by *Syncer.
type AccountSyncer interface {
	Sync(ctx context.Context, account *models.MailAccount, limit uint32) error
}

// Scheduler drives periodic polling across all configured accounts. It runs
// an immediate cycle on Start, then one per interval. A failing account is
// logged and never halts the loop or the other accounts.
type Scheduler struct {
	store       store.Store
	syncer      AccountSyncer
	interval    time.Duration
	fetchLimit  uint32
	parallelism int
	logger      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(st store.Store, syncer AccountSyncer, interval time.Duration, fetchLimit uint32, parallelism int, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if fetchLimit == 0 {
		fetchLimit = 50
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Scheduler{
		store:       st,
		syncer:      syncer,
		interval:    interval,
		fetchLimit:  fetchLimit,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Start launches the polling loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
}

// Stop cancels the polling loop and waits for the current cycle to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle syncs every configured account with bounded parallelism.
// Per-account failures are logged; they intentionally never bubble up.
func (s *Scheduler) runCycle(ctx context.Context) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts for sync cycle", zap.Error(err))
		return
	}

	var g errgroup.Group
	g.SetLimit(s.parallelism)

	for _, account := range accounts {
		g.Go(func() error {
			if err := s.syncer.Sync(ctx, account, s.fetchLimit); err != nil {
				s.logger.Warn("account sync failed",
					zap.String("account_id", account.ID),
					zap.String("from_address", account.FromAddress),
					zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()
}
