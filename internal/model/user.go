package model

import (
	"time"

	"github.com/google/uuid"

	"questlog/pkg/civil"
)

type User struct {
	ID            uuid.UUID
	Timezone      string // IANA identifier, e.g. "Europe/Berlin"
	XP            int
	Streak        int
	LastActiveDay *civil.Date
	CreatedAt     time.Time
}

// Location resolves the user's IANA timezone.
func (u *User) Location() (*time.Location, error) {
	return time.LoadLocation(u.Timezone)
}

type StreakStatus struct {
	Streak        int
	LastActiveDay *civil.Date
	ActiveToday   bool
}
