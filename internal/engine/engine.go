package engine

import (
	"context"
	"time"

	"example.com/backstage/services/gamebot/internal/command"
	"example.com/backstage/services/gamebot/internal/metrics"
	"example.com/backstage/services/gamebot/internal/models"
	"example.com/backstage/services/gamebot/internal/scheduler"
	"example.com/backstage/services/gamebot/internal/signup"
	"example.com/backstage/services/gamebot/internal/store"
	"example.com/backstage/services/gamebot/internal/tracing"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Policy holds the configurable parts of event resolution
type Policy struct {
	// DeleteRoleOnResolve also deletes the signup role when the trigger fires.
	// Manual cancellation always deletes it.
	DeleteRoleOnResolve bool
	RolePrefix          string
	// FanoutLimit bounds concurrent direct messages per resolution
	FanoutLimit int
}

// Deps are the collaborators of the engine
type Deps struct {
	Processor  *command.Processor
	Timer      scheduler.Timer
	Notifier   Notifier
	Roles      RoleManager
	Publishers []Publisher
	Metrics    *metrics.Metrics
	Tracer     tracing.Tracer
	Clock      clockwork.Clock
}

// intent is a unit of work executed by the engine loop
type intent struct {
	name  string
	apply func()
	done  chan struct{}
}

// Engine serializes every mutation of the live events through a single loop.
// Collaborator I/O happens in the calling goroutine after the intent completes.
type Engine struct {
	store     *store.Store
	signups   *signup.Controller
	scheduler *scheduler.Scheduler
	processor *command.Processor

	notifier   Notifier
	roles      RoleManager
	publishers []Publisher
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
	clock      clockwork.Clock
	policy     Policy

	intents chan intent
	stopped chan struct{}
}

// New creates an engine. Run must be started before any other method is used.
func New(deps Deps, policy Policy) *Engine {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.NoopTracer()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if policy.FanoutLimit <= 0 {
		policy.FanoutLimit = 5
	}

	st := store.New()
	e := &Engine{
		store:      st,
		signups:    signup.NewController(st),
		processor:  deps.Processor,
		notifier:   deps.Notifier,
		roles:      deps.Roles,
		publishers: deps.Publishers,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
		clock:      deps.Clock,
		policy:     policy,
		intents:    make(chan intent),
		stopped:    make(chan struct{}),
	}
	e.scheduler = scheduler.New(st, deps.Timer, e.fire)
	return e
}

// Run processes intents until ctx is cancelled
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)

	log.Info().Msg("Event engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("live_events", e.store.Len()).Msg("Event engine stopped")
			return nil
		case it := <-e.intents:
			it.apply()
			e.metrics.SetGauge(metrics.EventsLive, int64(e.store.Len()))
			close(it.done)
		}
	}
}

// do hands fn to the loop and waits until it has run
func (e *Engine) do(ctx context.Context, name string, fn func()) error {
	start := time.Now()
	it := intent{name: name, apply: fn, done: make(chan struct{})}

	select {
	case e.intents <- it:
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "intent %s not accepted", name)
	case <-e.stopped:
		return models.ErrEngineStopped
	}

	<-it.done
	e.metrics.RecordTimer(metrics.IntentLatency, time.Since(start))
	return nil
}

// Create validates a create request, creates the role and announcement and
// schedules the event
func (e *Engine) Create(ctx context.Context, req models.CreateRequest) (models.Event, error) {
	event, err := e.processor.ValidateCreate(req)
	if err != nil {
		e.metrics.IncrementCounter(metrics.ValidationFailures)
		return models.Event{}, err
	}

	roleID, err := e.roles.CreateRole(ctx, event.GuildID, e.policy.RolePrefix+event.Name)
	if err != nil {
		e.metrics.IncrementCounter(metrics.CollaboratorFailures)
		return models.Event{}, errors.Wrap(err, "failed to create signup role")
	}
	event.RoleID = roleID

	announcementID, err := e.notifier.Announce(ctx, event.Snapshot())
	if err != nil {
		e.metrics.IncrementCounter(metrics.CollaboratorFailures)
		e.deleteRole(context.Background(), event.Snapshot())
		return models.Event{}, errors.Wrap(err, "failed to announce event")
	}
	event.ID = announcementID

	var (
		scheduleErr error
		snapshot    models.Event
	)
	err = e.do(ctx, "create", func() {
		scheduleErr = e.scheduler.Schedule(event)
		snapshot = event.Snapshot()
	})
	if err == nil {
		err = scheduleErr
	}
	if err != nil {
		e.deleteRole(context.Background(), event.Snapshot())
		return models.Event{}, errors.Wrap(err, "failed to schedule event")
	}

	e.metrics.IncrementCounter(metrics.EventsCreated)
	log.Info().
		Str("event_id", snapshot.ID).
		Str("name", snapshot.Name).
		Time("start_time", snapshot.StartTime).
		Int("min_players", snapshot.MinPlayers).
		Int("max_players", snapshot.MaxPlayers).
		Msg("Event scheduled")

	e.publish(ctx, models.NewLifecycle(models.LifecycleCreated, "", snapshot, e.clock.Now()))
	return snapshot, nil
}

// List returns the live events of a guild, or of every guild when guildID is empty
func (e *Engine) List(ctx context.Context, guildID string) ([]models.Event, error) {
	var events []models.Event
	err := e.do(ctx, "list", func() {
		events = e.store.List()
	})
	if err != nil {
		return nil, err
	}
	if guildID == "" {
		return events, nil
	}

	filtered := events[:0]
	for _, ev := range events {
		if ev.GuildID == guildID {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

func (e *Engine) publish(ctx context.Context, record models.Lifecycle) {
	for _, p := range e.publishers {
		if err := p.Publish(ctx, record); err != nil {
			e.metrics.IncrementCounter(metrics.PublishFailures)
			log.Error().
				Err(err).
				Str("event_id", record.EventID).
				Str("type", string(record.Type)).
				Msg("Failed to publish lifecycle record")
		}
	}
}

func (e *Engine) deleteRole(ctx context.Context, event models.Event) {
	if event.RoleID == "" {
		return
	}
	if err := e.roles.DeleteRole(ctx, event.GuildID, event.RoleID); err != nil {
		e.metrics.IncrementCounter(metrics.CollaboratorFailures)
		log.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("role_id", event.RoleID).
			Msg("Failed to delete signup role")
	}
}
