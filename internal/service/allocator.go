package service

import (
	"context"
	"fmt"
	"math"

	"questlog/internal/model"
	"questlog/pkg/civil"
	"questlog/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllocatorService converts completed quests into XP. Rewards are
// proportional to the whole day's workload, decayed by lateness, and
// clamped so a day's settlements can never exceed the pool cap.
type AllocatorService struct {
	instances InstanceRepository
	pool      *PoolService
	events    EventEmitter
}

func NewAllocatorService(instances InstanceRepository, pool *PoolService, events EventEmitter) *AllocatorService {
	if events == nil {
		events = NopEmitter{}
	}
	return &AllocatorService{
		instances: instances,
		pool:      pool,
		events:    events,
	}
}

// latenessMultiplier decays the reward for settlements after the
// instance's own day. Same-day and one-day-late settle at full value;
// each further day costs 10%, down to zero.
func latenessMultiplier(daysLate int) float64 {
	if daysLate <= 1 {
		return 1.0
	}
	m := 1.0 - 0.1*float64(daysLate-1)
	if m < 0 {
		m = 0
	}
	return m
}

// proportionalShare splits the pool snapshot by base points over the
// whole day's total. A zero or negative total short-circuits to zero
// instead of dividing.
func proportionalShare(basePoints, totalBase, poolSnapshot int) int {
	if totalBase <= 0 || poolSnapshot <= 0 {
		return 0
	}
	return int(math.Round(float64(basePoints) / float64(totalBase) * float64(poolSnapshot)))
}

// settle fixes one instance's reward. The proportional term uses the
// pool snapshot taken at the start of the settlement event; the clamp
// rereads the remaining pool immediately before the write so prior
// settlements (including concurrent ones) are accounted for. Reward and
// user XP land in the same transaction.
func (s *AllocatorService) settle(ctx context.Context, inst *model.QuestInstance, totalBase, poolSnapshot int, settledOn civil.Date) (int, error) {
	share := proportionalShare(inst.BasePoints, totalBase, poolSnapshot)
	mult := latenessMultiplier(settledOn.DaysSince(inst.Day))
	candidate := int(math.Round(float64(share) * mult))

	pool, err := s.pool.Status(ctx, inst.UserID, inst.Day)
	if err != nil {
		return 0, fmt.Errorf("failed to read pool before settlement: %w", err)
	}
	if candidate > pool.Remaining {
		candidate = pool.Remaining
	}
	if candidate < 0 {
		candidate = 0
	}

	reward := candidate
	if err := s.instances.ApplySettlement(ctx, inst.ID, &reward, inst.UserID, reward); err != nil {
		return 0, fmt.Errorf("failed to apply settlement: %w", err)
	}

	s.events.Publish("xp_settled", map[string]any{
		"user_id":     inst.UserID.String(),
		"instance_id": inst.ID.String(),
		"day":         inst.Day.String(),
		"reward":      reward,
	})

	return reward, nil
}

// SettleCompletion fixes the reward for a single instance that just
// transitioned to completed. Already-settled instances are left
// untouched and contribute a zero delta, which makes redundant calls
// safe. Returns the XP delta applied to the user.
func (s *AllocatorService) SettleCompletion(ctx context.Context, inst *model.QuestInstance, settledOn civil.Date) (int, error) {
	if inst.Settled() {
		return 0, nil
	}

	tasks, err := s.instances.ListInstances(ctx, inst.UserID, inst.Day)
	if err != nil {
		return 0, fmt.Errorf("failed to list instances for settlement: %w", err)
	}

	totalBase := 0
	for _, t := range tasks {
		totalBase += t.BasePoints
	}

	pool, err := s.pool.Status(ctx, inst.UserID, inst.Day)
	if err != nil {
		return 0, err
	}

	return s.settle(ctx, inst, totalBase, pool.Remaining, settledOn)
}

// ReverseCompletion undoes a settlement when a quest is toggled back to
// incomplete: the stored reward is subtracted from the user total and
// the instance returns to the unsettled state, so a later re-completion
// settles fresh (with lateness decay if applicable). Returns the XP
// delta, zero or negative.
func (s *AllocatorService) ReverseCompletion(ctx context.Context, inst *model.QuestInstance) (int, error) {
	if !inst.Settled() {
		return 0, nil
	}

	reward := *inst.XPReward
	if err := s.instances.ApplySettlement(ctx, inst.ID, nil, inst.UserID, -reward); err != nil {
		return 0, fmt.Errorf("failed to reverse settlement: %w", err)
	}

	s.events.Publish("xp_reversed", map[string]any{
		"user_id":     inst.UserID.String(),
		"instance_id": inst.ID.String(),
		"day":         inst.Day.String(),
		"reward":      -reward,
	})

	return -reward, nil
}

// SettleDay batch-settles every completed-but-unsettled instance for a
// (user, day). One pool snapshot anchors the proportional shares; the
// per-settlement clamp still rereads remaining after each write.
// Returns the number of instances settled.
func (s *AllocatorService) SettleDay(ctx context.Context, userID uuid.UUID, day civil.Date, settledOn civil.Date) (int, error) {
	unsettled, err := s.instances.ListUnsettledCompleted(ctx, userID, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled instances: %w", err)
	}
	if len(unsettled) == 0 {
		return 0, nil
	}

	tasks, err := s.instances.ListInstances(ctx, userID, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list instances for settlement: %w", err)
	}

	totalBase := 0
	for _, t := range tasks {
		totalBase += t.BasePoints
	}

	pool, err := s.pool.Status(ctx, userID, day)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, inst := range unsettled {
		if _, err := s.settle(ctx, inst, totalBase, pool.Remaining, settledOn); err != nil {
			logger.Logger().Error("failed to settle instance",
				zap.String("user_id", userID.String()),
				zap.String("instance_id", inst.ID.String()),
				zap.Error(err))
			continue
		}
		settled++
	}

	return settled, nil
}

// Preview computes the reward each instance of a day would receive if
// settled right now. Settled instances report their stored reward
// unchanged; nothing is written. This is the potential-vs-actual
// display path.
func (s *AllocatorService) Preview(ctx context.Context, userID uuid.UUID, day civil.Date, asOf civil.Date) (map[uuid.UUID]int, error) {
	tasks, err := s.instances.ListInstances(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	totalBase := 0
	for _, t := range tasks {
		totalBase += t.BasePoints
	}

	pool, err := s.pool.Status(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	mult := latenessMultiplier(asOf.DaysSince(day))
	rewards := make(map[uuid.UUID]int, len(tasks))
	for _, t := range tasks {
		if t.Settled() {
			rewards[t.ID] = *t.XPReward
			continue
		}
		share := proportionalShare(t.BasePoints, totalBase, pool.Remaining)
		candidate := int(math.Round(float64(share) * mult))
		if candidate > pool.Remaining {
			candidate = pool.Remaining
		}
		rewards[t.ID] = candidate
	}

	return rewards, nil
}
