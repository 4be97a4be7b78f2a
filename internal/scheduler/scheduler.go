package scheduler

import (
	"example.com/backstage/services/gamebot/internal/models"
	"example.com/backstage/services/gamebot/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FireFunc is invoked by an armed trigger with the id of the event that is due
type FireFunc func(eventID string)

// Scheduler owns the time-triggered resolution of events.
// Every method must be called from the engine loop.
type Scheduler struct {
	store  *store.Store
	timer  Timer
	onFire FireFunc
}

// New creates a scheduler. onFire runs on the timer's goroutine and should only
// hand the id back to the engine loop.
func New(st *store.Store, timer Timer, onFire FireFunc) *Scheduler {
	return &Scheduler{
		store:  st,
		timer:  timer,
		onFire: onFire,
	}
}

// Schedule inserts the event and arms its trigger at StartTime
func (s *Scheduler) Schedule(event *models.Event) error {
	if _, err := s.store.Insert(event); err != nil {
		return err
	}

	eventID := event.ID
	handle, err := s.timer.Arm(event.StartTime, func() {
		s.onFire(eventID)
	})
	if err != nil {
		_, _ = s.store.Remove(eventID)
		return errors.Wrapf(err, "failed to schedule event %s", eventID)
	}

	event.Trigger = handle
	return nil
}

// Fire resolves a due event: it is removed and quorum decides between start and cancel.
// An event that was already removed reports ErrEventNotFound.
func (s *Scheduler) Fire(eventID string) (models.Decision, error) {
	event, err := s.store.Remove(eventID)
	if err != nil {
		return models.Decision{}, err
	}

	outcome := models.OutcomeCancelledQuorum
	if event.QuorumMet() {
		outcome = models.OutcomeStarted
	}

	return models.Decision{Outcome: outcome, Event: event.Snapshot()}, nil
}

// Cancel disarms the trigger and removes the event
func (s *Scheduler) Cancel(eventID string) (models.Decision, error) {
	event, err := s.store.Find(eventID)
	if err != nil {
		return models.Decision{}, err
	}

	if err := s.timer.Cancel(event.Trigger); err != nil {
		// the removal below still makes a late fire a no-op
		log.Warn().
			Err(err).
			Str("event_id", eventID).
			Msg("Failed to cancel trigger")
	}
	event.Trigger = uuid.Nil

	if _, err := s.store.Remove(eventID); err != nil {
		return models.Decision{}, err
	}

	return models.Decision{Outcome: models.OutcomeCancelledManually, Event: event.Snapshot()}, nil
}
