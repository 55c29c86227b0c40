package model

import (
	"time"

	"github.com/google/uuid"

	"questlog/pkg/civil"
)

// QuestTemplate is a user-defined recurring or one-time task definition.
// A nil Recurrence means the template never auto-recurs.
type QuestTemplate struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Title      string
	Recurrence *string
	DueDay     *civil.Date
	BasePoints int
	Active     bool
	CreatedAt  time.Time
}

// QuestInstance is the materialization of a template (or an ad-hoc
// entry, TemplateID == nil) for one calendar day in the user's zone.
// BasePoints is copied from the template at creation time and never
// changes afterwards, so template edits do not rewrite history.
// XPReward stays nil until the instance is settled.
type QuestInstance struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	TemplateID  *uuid.UUID
	Day         civil.Date
	Title       string
	BasePoints  int
	Completed   bool
	CompletedAt *time.Time
	XPReward    *int
}

// Settled reports whether the instance already carries a fixed reward.
func (q *QuestInstance) Settled() bool {
	return q.XPReward != nil
}

// DailyPoolState is the derived per-(user, day) XP budget. It is never
// persisted; it is recomputed from stored settlements on every read.
type DailyPoolState struct {
	Cap       int
	Consumed  int
	Remaining int
}
