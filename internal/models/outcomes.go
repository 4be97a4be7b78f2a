package models

import (
	"time"

	"github.com/google/uuid"
)

// SignupOutcome describes what a join or leave intent did to an event
type SignupOutcome string

const (
	Joined          SignupOutcome = "joined"
	Left            SignupOutcome = "left"
	AlreadySignedUp SignupOutcome = "already_signed_up"
	NotSignedUp     SignupOutcome = "not_signed_up"
	EventFull       SignupOutcome = "event_full"
	EventNotFound   SignupOutcome = "event_not_found"
)

// SignupResult is returned by the signup controller. Event is the state after the
// transition and is empty when the outcome is EventNotFound.
type SignupResult struct {
	Outcome SignupOutcome
	Event   Event
}

// Changed reports whether the intent modified the roster
func (r SignupResult) Changed() bool {
	return r.Outcome == Joined || r.Outcome == Left
}

// Outcome is the terminal state of an event
type Outcome string

const (
	OutcomeStarted           Outcome = "started"
	OutcomeCancelledQuorum   Outcome = "cancelled_quorum"
	OutcomeCancelledManually Outcome = "cancelled_manually"
)

// Decision is the resolution of an event together with its final snapshot
type Decision struct {
	Outcome Outcome
	Event   Event
}

// NoticeKind selects how a Notifier renders a Notice
type NoticeKind string

const (
	NoticeSignedUp        NoticeKind = "signed_up"
	NoticeEventFull       NoticeKind = "event_full"
	NoticeUnregistered    NoticeKind = "unregistered"
	NoticeStarting        NoticeKind = "starting"
	NoticeNotEnough       NoticeKind = "not_enough_signups"
	NoticeCancelled       NoticeKind = "cancelled"
	NoticeValidationError NoticeKind = "validation_error"
	NoticeInfo            NoticeKind = "info"
)

// Notice is a platform-neutral message. Rendering is left to the Notifier.
type Notice struct {
	Kind  NoticeKind
	Event Event
	Text  string
}

// LifecycleType names a lifecycle record
type LifecycleType string

const (
	LifecycleCreated   LifecycleType = "V1_EVENT_CREATED"
	LifecycleStarted   LifecycleType = "V1_EVENT_STARTED"
	LifecycleCancelled LifecycleType = "V1_EVENT_CANCELLED"
)

// Lifecycle records a created or resolved event for the journal and the message bus
type Lifecycle struct {
	ID         uuid.UUID     `json:"id"`
	Type       LifecycleType `json:"type"`
	Outcome    Outcome       `json:"outcome,omitempty"`
	EventID    string        `json:"event_id"`
	Name       string        `json:"name"`
	GuildID    string        `json:"guild_id"`
	StartTime  time.Time     `json:"start_time"`
	MinPlayers int           `json:"min_players"`
	MaxPlayers int           `json:"max_players"`
	Signups    []string      `json:"signups"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NewLifecycle builds a lifecycle record for ev
func NewLifecycle(typ LifecycleType, outcome Outcome, ev Event, at time.Time) Lifecycle {
	return Lifecycle{
		ID:         uuid.New(),
		Type:       typ,
		Outcome:    outcome,
		EventID:    ev.ID,
		Name:       ev.Name,
		GuildID:    ev.GuildID,
		StartTime:  ev.StartTime,
		MinPlayers: ev.MinPlayers,
		MaxPlayers: ev.MaxPlayers,
		Signups:    append([]string(nil), ev.Signups...),
		Timestamp:  at,
	}
}
