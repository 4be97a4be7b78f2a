package engine

import (
	"context"
	"time"

	"example.com/backstage/services/gamebot/internal/metrics"
	"example.com/backstage/services/gamebot/internal/models"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Cancel resolves the event as manually cancelled. It is used when the
// announcement is deleted.
func (e *Engine) Cancel(ctx context.Context, eventID string) (models.Event, error) {
	return e.cancel(ctx, eventID, "")
}

// CancelByUser cancels the event on behalf of userID, who must be its creator
func (e *Engine) CancelByUser(ctx context.Context, eventID, userID string) (models.Event, error) {
	if userID == "" {
		return models.Event{}, models.ErrNotCreator
	}
	return e.cancel(ctx, eventID, userID)
}

func (e *Engine) cancel(ctx context.Context, eventID, userID string) (models.Event, error) {
	var (
		decision  models.Decision
		cancelErr error
	)
	err := e.do(ctx, "cancel", func() {
		if userID != "" {
			ev, err := e.store.Find(eventID)
			if err != nil {
				cancelErr = err
				return
			}
			if ev.CreatedBy != userID {
				cancelErr = errors.Wrapf(models.ErrNotCreator, "user %s cannot cancel event %s", userID, eventID)
				return
			}
		}
		decision, cancelErr = e.scheduler.Cancel(eventID)
	})
	if err == nil {
		err = cancelErr
	}
	if err != nil {
		return models.Event{}, err
	}

	e.resolve(ctx, decision)
	return decision.Event, nil
}

// fire runs on the timer goroutine once an event's start time is reached
func (e *Engine) fire(eventID string) {
	txn := e.tracer.StartTransaction("event-trigger")
	defer e.tracer.EndTransaction(txn)
	e.tracer.AddAttribute(txn, "event_id", eventID)

	var (
		decision models.Decision
		fireErr  error
	)
	ctx := newrelic.NewContext(context.Background(), txn)
	err := e.do(ctx, "fire", func() {
		decision, fireErr = e.scheduler.Fire(eventID)
	})
	if err == nil {
		err = fireErr
	}

	if errors.Is(err, models.ErrEventNotFound) {
		log.Debug().Str("event_id", eventID).Msg("Trigger fired for an event that is no longer live")
		return
	}
	if err != nil {
		e.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("event_id", eventID).Msg("Failed to resolve due event")
		return
	}

	e.tracer.AddAttribute(txn, "outcome", string(decision.Outcome))
	e.resolve(ctx, decision)
}

// resolve announces a decision in the event channel, notifies every signup
// and cleans up the role
func (e *Engine) resolve(ctx context.Context, decision models.Decision) {
	start := time.Now()
	ev := decision.Event

	seg := e.tracer.StartSpan("resolve-event", newrelic.FromContext(ctx))
	defer seg.End()

	logger := log.With().
		Str("event_id", ev.ID).
		Str("name", ev.Name).
		Str("outcome", string(decision.Outcome)).
		Int("signups", len(ev.Signups)).
		Logger()

	var (
		kind     models.NoticeKind
		record   models.LifecycleType
		counter  string
		dropRole bool
	)
	switch decision.Outcome {
	case models.OutcomeStarted:
		kind, record, counter = models.NoticeStarting, models.LifecycleStarted, metrics.EventsStarted
		dropRole = e.policy.DeleteRoleOnResolve
	case models.OutcomeCancelledQuorum:
		kind, record, counter = models.NoticeNotEnough, models.LifecycleCancelled, metrics.EventsCancelledQuorum
		dropRole = e.policy.DeleteRoleOnResolve
	default:
		kind, record, counter = models.NoticeCancelled, models.LifecycleCancelled, metrics.EventsCancelledManual
		dropRole = true
	}

	notice := models.Notice{Kind: kind, Event: ev}
	if err := e.notifier.Post(ctx, ev.ChannelID, notice); err != nil {
		e.collaboratorFailed(logger.Error(), err, "Failed to post resolution notice")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.policy.FanoutLimit)
	for _, userID := range ev.Signups {
		g.Go(func() error {
			e.directMessage(gctx, userID, notice)
			return nil
		})
	}
	_ = g.Wait()

	if dropRole {
		e.deleteRole(ctx, ev)
	}

	e.metrics.IncrementCounter(counter)
	e.metrics.RecordTimer(metrics.ResolutionFanoutLatency, time.Since(start))
	logger.Info().Msg("Event resolved")

	e.publish(ctx, models.NewLifecycle(record, decision.Outcome, ev, e.clock.Now()))
}

// directMessage delivers a notice to a single user; failures only affect that user
func (e *Engine) directMessage(ctx context.Context, userID string, notice models.Notice) {
	if err := e.notifier.DirectMessage(ctx, userID, notice); err != nil {
		e.collaboratorFailed(log.Warn().Str("user_id", userID).Str("notice", string(notice.Kind)), err, "Failed to send direct message")
	}
}

func (e *Engine) collaboratorFailed(evt *zerolog.Event, err error, msg string) {
	e.metrics.IncrementCounter(metrics.CollaboratorFailures)
	evt.Err(err).Msg(msg)
}
