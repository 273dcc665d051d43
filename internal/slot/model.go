package slot

import (
	"time"

	"github.com/google/uuid"

	"recruitment/internal/candidate"
)

// Slot statuses mirror the round statuses: a slot is upcoming until the
// first booking, pending while occupied, completed once reviewed.
const (
	StatusUpcoming  = candidate.StatusUpcoming
	StatusPending   = candidate.StatusPending
	StatusCompleted = candidate.StatusCompleted
)

// Slot is a scheduled interview time-block. It is the contention point of
// the whole engine: occupants, the reviewer and observers all mutate one
// record, so every mutation is a single guarded write.
type Slot struct {
	ID          uuid.UUID       `json:"id"`
	Round       candidate.Round `json:"round"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	IsAvailable bool            `json:"is_available"`
	IsReady     bool            `json:"is_ready"`
	Status      string          `json:"status"`
	MeetLink    *string         `json:"meet_link,omitempty"`
	Users       []uuid.UUID     `json:"users"`
	Admins      []uuid.UUID     `json:"admins"`
	Reviewer    *uuid.UUID      `json:"reviewer,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Capacity returns the occupant limit for a round. Rounds 1 and 3 are
// one-on-one; round 2 is a shared slot of three.
func Capacity(r candidate.Round) int {
	switch r {
	case candidate.Round2:
		return 3
	default:
		return 1
	}
}

// HasOccupant reports whether the candidate currently occupies the slot.
func (s *Slot) HasOccupant(id uuid.UUID) bool {
	for _, u := range s.Users {
		if u == id {
			return true
		}
	}
	return false
}

// HasObserver reports whether the admin already joined the slot.
func (s *Slot) HasObserver(id uuid.UUID) bool {
	for _, a := range s.Admins {
		if a == id {
			return true
		}
	}
	return false
}
