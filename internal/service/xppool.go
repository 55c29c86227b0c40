package service

import (
	"context"

	"questlog/internal/model"
	"questlog/pkg/civil"

	"github.com/google/uuid"
)

// Policy tables. The cap is a non-decreasing step function of level;
// levels are thresholds over cumulative XP. Both are tuning constants,
// not derived values.
var (
	LevelThresholds = []int{0, 1000, 2500, 5000, 9000, 14000, 20000, 28000, 38000, 50000}
	DailyCapByLevel = []int{100, 130, 170, 220, 280, 350, 430, 520, 620, 730}
)

// LevelForXP returns the 1-based level for a cumulative XP total.
func LevelForXP(xp int) int {
	level := 1
	for i, threshold := range LevelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// CapForLevel returns the daily XP cap for a level. Levels past the end
// of the table stay at the top cap.
func CapForLevel(level int) int {
	if level < 1 {
		level = 1
	}
	if level > len(DailyCapByLevel) {
		level = len(DailyCapByLevel)
	}
	return DailyCapByLevel[level-1]
}

// PoolService computes the per-(user, day) XP budget. Consumption is
// recomputed from stored settlements on every call so the pool
// self-corrects after partial failures.
type PoolService struct {
	users     UserRepository
	instances InstanceRepository
}

func NewPoolService(users UserRepository, instances InstanceRepository) *PoolService {
	return &PoolService{
		users:     users,
		instances: instances,
	}
}

func (s *PoolService) Status(ctx context.Context, userID uuid.UUID, day civil.Date) (model.DailyPoolState, error) {
	xp, err := s.users.ReadUserXP(ctx, userID)
	if err != nil {
		return model.DailyPoolState{}, err
	}

	cap := CapForLevel(LevelForXP(xp))

	consumed, err := s.instances.ConsumedXP(ctx, userID, day)
	if err != nil {
		return model.DailyPoolState{}, err
	}

	remaining := cap - consumed
	if remaining < 0 {
		remaining = 0
	}

	return model.DailyPoolState{
		Cap:       cap,
		Consumed:  consumed,
		Remaining: remaining,
	}, nil
}
