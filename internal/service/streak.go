package service

import (
	"context"
	"fmt"
	"sort"

	"questlog/internal/model"
	"questlog/pkg/civil"

	"github.com/google/uuid"
)

// StreakService derives consecutive-active-day counts from completion
// history. Every computation starts from scratch, which makes it safe
// to invoke redundantly from the hourly reconciler, the synchronous
// completion path, and the startup catch-up without divergence.
type StreakService struct {
	users     UserRepository
	instances InstanceRepository
	events    EventEmitter
}

func NewStreakService(users UserRepository, instances InstanceRepository, events EventEmitter) *StreakService {
	if events == nil {
		events = NopEmitter{}
	}
	return &StreakService{
		users:     users,
		instances: instances,
		events:    events,
	}
}

// ComputeStreak is the pure core: given the distinct days with at least
// one completion (any order) and today's date in the user's zone, it
// returns the current streak. A streak counts back from today if today
// is active, otherwise from yesterday if yesterday is active; if
// neither is active the streak is 0 — there is no grace period.
// ActiveToday is reported independently of the count.
func ComputeStreak(activeDays []civil.Date, today civil.Date) model.StreakStatus {
	if len(activeDays) == 0 {
		return model.StreakStatus{}
	}

	days := make([]civil.Date, len(activeDays))
	copy(days, activeDays)
	sort.Slice(days, func(i, j int) bool { return days[j].Before(days[i]) })

	active := make(map[civil.Date]struct{}, len(days))
	for _, d := range days {
		active[d] = struct{}{}
	}

	last := days[0]
	status := model.StreakStatus{LastActiveDay: &last}
	_, status.ActiveToday = active[today]

	start := today
	if !status.ActiveToday {
		start = today.AddDays(-1)
	}
	if _, ok := active[start]; !ok {
		return status
	}

	for d := start; ; d = d.AddDays(-1) {
		if _, ok := active[d]; !ok {
			break
		}
		status.Streak++
	}

	return status
}

// Recalculate recomputes the user's streak from stored history and
// persists the result.
func (s *StreakService) Recalculate(ctx context.Context, userID uuid.UUID, today civil.Date) (model.StreakStatus, error) {
	activeDays, err := s.instances.ListActiveDays(ctx, userID)
	if err != nil {
		return model.StreakStatus{}, fmt.Errorf("failed to list active days: %w", err)
	}

	status := ComputeStreak(activeDays, today)

	err = s.users.WriteUserStreak(ctx, userID, status.Streak, status.LastActiveDay)
	if err != nil {
		return model.StreakStatus{}, fmt.Errorf("failed to write streak: %w", err)
	}

	s.events.Publish("streak_updated", map[string]any{
		"user_id":      userID.String(),
		"streak":       status.Streak,
		"active_today": status.ActiveToday,
	})

	return status, nil
}
