// Package scheduler drives the hourly timezone reconciliation: each
// tick finds users crossing their local midnight and runs instance
// generation for the new day plus XP/streak reconciliation for the day
// that just ended. All of the work it triggers is idempotent, so a
// missed or repeated tick self-corrects on the next one.
package scheduler

import (
	"context"
	"sync"
	"time"

	"questlog/internal/model"
	"questlog/pkg/civil"
	"questlog/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine is the slice of the quest service the reconciler needs.
type Engine interface {
	GenerateDay(ctx context.Context, userID uuid.UUID, day civil.Date) (int, error)
	ReconcileDay(ctx context.Context, userID uuid.UUID, endedDay, today civil.Date) error
	HasUnsettled(ctx context.Context, userID uuid.UUID, day civil.Date) (bool, error)
}

type UserSource interface {
	ListUsers(ctx context.Context) ([]*model.User, error)
}

type Config struct {
	Interval       time.Duration `yaml:"interval"`
	BootstrapDelay time.Duration `yaml:"bootstrapDelay"`
	MaxConcurrent  int           `yaml:"maxConcurrent"`
}

// Reconciler owns its timer handle; it is constructed once at process
// start with injected dependencies and shut down via Stop.
type Reconciler struct {
	mu     sync.Mutex
	users  UserSource
	engine Engine

	interval       time.Duration
	bootstrapDelay time.Duration
	maxConcurrent  int

	cancel context.CancelFunc
	done   chan struct{}
}

func New(users UserSource, engine Engine, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BootstrapDelay <= 0 {
		cfg.BootstrapDelay = 5 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	return &Reconciler{
		users:          users,
		engine:         engine,
		interval:       cfg.Interval,
		bootstrapDelay: cfg.BootstrapDelay,
		maxConcurrent:  cfg.MaxConcurrent,
	}
}

// Start launches the hourly loop and the one-shot bootstrap pass. The
// bootstrap is delayed a few seconds so dependencies finish
// initializing before the first batch hits the database.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.done)

		bootstrap := time.NewTimer(r.bootstrapDelay)
		defer bootstrap.Stop()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-bootstrap.C:
				r.bootstrap(ctx, time.Now())
			case <-ticker.C:
				r.tick(ctx, time.Now())
			}
		}
	}()
}

// Stop cancels the loop and waits for in-flight per-user units to
// finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick runs one midnight sweep: users whose local hour is 0 get
// instance generation for the day beginning now and reconciliation for
// the day that just ended. The two actions are independent failure
// domains, and per-user errors never abort the batch.
func (r *Reconciler) tick(ctx context.Context, now time.Time) {
	log := logger.Logger()

	users, err := r.users.ListUsers(ctx)
	if err != nil {
		log.Error("reconciler: failed to list users", zap.Error(err))
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(r.maxConcurrent)

	for _, user := range users {
		user := user
		g.Go(func() error {
			loc, err := user.Location()
			if err != nil {
				log.Error("reconciler: unresolvable timezone",
					zap.String("user_id", user.ID.String()),
					zap.String("timezone", user.Timezone),
					zap.Error(err))
				return nil
			}

			if now.In(loc).Hour() != 0 {
				return nil
			}

			today := civil.At(now, loc)
			endedDay := today.AddDays(-1)

			if _, err := r.engine.GenerateDay(ctx, user.ID, today); err != nil {
				log.Error("reconciler: instance generation failed",
					zap.String("user_id", user.ID.String()),
					zap.String("day", today.String()),
					zap.Error(err))
			}

			if err := r.engine.ReconcileDay(ctx, user.ID, endedDay, today); err != nil {
				log.Error("reconciler: day reconciliation failed",
					zap.String("user_id", user.ID.String()),
					zap.String("day", endedDay.String()),
					zap.Error(err))
			}

			return nil
		})
	}

	_ = g.Wait()
}

// bootstrap covers downtime spanning a user's midnight: any user still
// holding completed-but-unsettled instances for their local yesterday
// gets a full reconciliation immediately.
func (r *Reconciler) bootstrap(ctx context.Context, now time.Time) {
	log := logger.Logger()

	users, err := r.users.ListUsers(ctx)
	if err != nil {
		log.Error("reconciler: bootstrap failed to list users", zap.Error(err))
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(r.maxConcurrent)

	for _, user := range users {
		user := user
		g.Go(func() error {
			loc, err := user.Location()
			if err != nil {
				log.Error("reconciler: unresolvable timezone",
					zap.String("user_id", user.ID.String()),
					zap.String("timezone", user.Timezone),
					zap.Error(err))
				return nil
			}

			today := civil.At(now, loc)
			yesterday := today.AddDays(-1)

			pending, err := r.engine.HasUnsettled(ctx, user.ID, yesterday)
			if err != nil {
				log.Error("reconciler: bootstrap settlement check failed",
					zap.String("user_id", user.ID.String()),
					zap.Error(err))
				return nil
			}
			if !pending {
				return nil
			}

			log.Info("reconciler: catching up missed settlement",
				zap.String("user_id", user.ID.String()),
				zap.String("day", yesterday.String()))

			if err := r.engine.ReconcileDay(ctx, user.ID, yesterday, today); err != nil {
				log.Error("reconciler: bootstrap reconciliation failed",
					zap.String("user_id", user.ID.String()),
					zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()
}
