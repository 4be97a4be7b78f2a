package signup

import (
	"example.com/backstage/services/gamebot/internal/models"
	"example.com/backstage/services/gamebot/internal/store"
)

// Controller applies join and leave intents to events in the store.
// Like the store it must only be used from the engine loop.
type Controller struct {
	store *store.Store
}

// NewController creates a signup controller over st
func NewController(st *store.Store) *Controller {
	return &Controller{store: st}
}

// Join adds userID to the roster of the event
func (c *Controller) Join(eventID, userID string) models.SignupResult {
	event, err := c.store.Find(eventID)
	if err != nil {
		return models.SignupResult{Outcome: models.EventNotFound}
	}

	if event.HasSignup(userID) {
		return models.SignupResult{Outcome: models.AlreadySignedUp, Event: event.Snapshot()}
	}
	if event.IsFull() {
		return models.SignupResult{Outcome: models.EventFull, Event: event.Snapshot()}
	}

	event.AddSignup(userID)
	return models.SignupResult{Outcome: models.Joined, Event: event.Snapshot()}
}

// Leave removes userID from the roster of the event
func (c *Controller) Leave(eventID, userID string) models.SignupResult {
	event, err := c.store.Find(eventID)
	if err != nil {
		return models.SignupResult{Outcome: models.EventNotFound}
	}

	if !event.RemoveSignup(userID) {
		return models.SignupResult{Outcome: models.NotSignedUp, Event: event.Snapshot()}
	}
	return models.SignupResult{Outcome: models.Left, Event: event.Snapshot()}
}
