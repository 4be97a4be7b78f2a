package models

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a scheduled group activity with its signup roster
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	MinPlayers int       `json:"min_players"`
	MaxPlayers int       `json:"max_players"`
	Signups    []string  `json:"signups"`
	RoleID     string    `json:"role_id"`
	CreatedBy  string    `json:"created_by"`
	GuildID    string    `json:"guild_id"`
	ChannelID  string    `json:"channel_id"`
	Mentions   []string  `json:"mentions,omitempty"`
	Trigger    uuid.UUID `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateRequest holds the raw arguments of a create command
type CreateRequest struct {
	Args      map[string]string
	CreatedBy string
	GuildID   string
	ChannelID string
	Mentions  []string
}

// Snapshot returns a copy of the event that shares no slices with e
func (e *Event) Snapshot() Event {
	cp := *e
	cp.Signups = make([]string, len(e.Signups))
	copy(cp.Signups, e.Signups)
	cp.Mentions = append([]string(nil), e.Mentions...)
	return cp
}

// HasSignup reports whether userID is on the roster
func (e *Event) HasSignup(userID string) bool {
	return e.signupIndex(userID) >= 0
}

// IsFull reports whether the roster has reached MaxPlayers
func (e *Event) IsFull() bool {
	return e.MaxPlayers != 0 && len(e.Signups) >= e.MaxPlayers
}

// QuorumMet reports whether enough users signed up for the event to start.
// MinPlayers == 0 always satisfies quorum.
func (e *Event) QuorumMet() bool {
	return len(e.Signups) >= e.MinPlayers
}

// AddSignup appends userID to the roster. Callers check capacity first.
func (e *Event) AddSignup(userID string) {
	e.Signups = append(e.Signups, userID)
}

// RemoveSignup removes userID keeping the order of the remaining users
func (e *Event) RemoveSignup(userID string) bool {
	i := e.signupIndex(userID)
	if i < 0 {
		return false
	}
	e.Signups = append(e.Signups[:i], e.Signups[i+1:]...)
	return true
}

func (e *Event) signupIndex(userID string) int {
	for i, id := range e.Signups {
		if id == userID {
			return i
		}
	}
	return -1
}
