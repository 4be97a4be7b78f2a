package store

import (
	"sort"

	"example.com/backstage/services/gamebot/internal/models"

	"github.com/pkg/errors"
)

// Store holds the live scheduled events keyed by announcement id.
// It is not safe for concurrent use; the engine loop owns it.
type Store struct {
	events map[string]*models.Event
}

// New creates an empty event store
func New() *Store {
	return &Store{
		events: make(map[string]*models.Event),
	}
}

// Insert adds an event and returns its id
func (s *Store) Insert(event *models.Event) (string, error) {
	if event == nil || event.ID == "" {
		return "", models.ErrInvalidEventID
	}
	if _, exists := s.events[event.ID]; exists {
		return "", errors.Wrapf(models.ErrDuplicateEvent, "event %s", event.ID)
	}

	s.events[event.ID] = event
	return event.ID, nil
}

// Find returns the live event with the given id
func (s *Store) Find(id string) (*models.Event, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	return event, nil
}

// Remove deletes the event and returns its final state
func (s *Store) Remove(id string) (*models.Event, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	delete(s.events, id)
	return event, nil
}

// List returns snapshots of all live events ordered by start time
func (s *Store) List() []models.Event {
	events := make([]models.Event, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, event.Snapshot())
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events
}

// Len returns the number of live events
func (s *Store) Len() int {
	return len(s.events)
}
