package engine

import (
	"context"

	"example.com/backstage/services/gamebot/internal/metrics"
	"example.com/backstage/services/gamebot/internal/models"

	"github.com/rs/zerolog/log"
)

// Join signs userID up for the event announced by eventID
func (e *Engine) Join(ctx context.Context, eventID, userID string) (models.SignupResult, error) {
	var res models.SignupResult
	if err := e.do(ctx, "join", func() {
		res = e.signups.Join(eventID, userID)
	}); err != nil {
		return res, err
	}

	e.afterSignup(ctx, res, eventID, userID)
	return res, nil
}

// Leave removes userID from the event announced by eventID
func (e *Engine) Leave(ctx context.Context, eventID, userID string) (models.SignupResult, error) {
	var res models.SignupResult
	if err := e.do(ctx, "leave", func() {
		res = e.signups.Leave(eventID, userID)
	}); err != nil {
		return res, err
	}

	e.afterSignup(ctx, res, eventID, userID)
	return res, nil
}

// afterSignup performs the side effects of a signup outcome exactly once.
// Failures are logged and never undo the roster change.
func (e *Engine) afterSignup(ctx context.Context, res models.SignupResult, eventID, userID string) {
	logger := log.With().
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("outcome", string(res.Outcome)).
		Logger()

	ev := res.Event
	switch res.Outcome {
	case models.Joined:
		e.metrics.IncrementCounter(metrics.SignupsJoined)
		logger.Info().Int("signups", len(ev.Signups)).Msg("User signed up")

		if err := e.roles.Grant(ctx, ev.GuildID, ev.RoleID, userID); err != nil {
			e.collaboratorFailed(logger.Error(), err, "Failed to grant signup role")
		}
		e.directMessage(ctx, userID, models.Notice{Kind: models.NoticeSignedUp, Event: ev})

	case models.EventFull:
		e.metrics.IncrementCounter(metrics.SignupsRejectedFull)
		logger.Info().Int("max_players", ev.MaxPlayers).Msg("Signup rejected, event is full")

		if err := e.notifier.RevertReaction(ctx, ev, userID); err != nil {
			e.collaboratorFailed(logger.Error(), err, "Failed to revert signup reaction")
		}
		e.directMessage(ctx, userID, models.Notice{Kind: models.NoticeEventFull, Event: ev})

	case models.Left:
		e.metrics.IncrementCounter(metrics.SignupsLeft)
		logger.Info().Int("signups", len(ev.Signups)).Msg("User left event")

		if err := e.roles.Revoke(ctx, ev.GuildID, ev.RoleID, userID); err != nil {
			e.collaboratorFailed(logger.Error(), err, "Failed to revoke signup role")
		}
		e.directMessage(ctx, userID, models.Notice{Kind: models.NoticeUnregistered, Event: ev})

	default:
		e.metrics.IncrementCounter(metrics.SignupsIgnored)
		logger.Debug().Msg("Signup intent ignored")
	}
}
