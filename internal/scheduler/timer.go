package scheduler

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Timer arms one-shot callbacks
type Timer interface {
	Arm(at time.Time, fn func()) (uuid.UUID, error)
	Cancel(handle uuid.UUID) error
}

// GocronTimer implements Timer with gocron one-time jobs
type GocronTimer struct {
	scheduler gocron.Scheduler
}

// NewGocronTimer creates a timer backed by a new gocron scheduler.
// Call Start before arming and Shutdown on exit.
func NewGocronTimer(opts ...gocron.SchedulerOption) (*GocronTimer, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	return &GocronTimer{scheduler: s}, nil
}

// Start starts the underlying scheduler
func (t *GocronTimer) Start() {
	t.scheduler.Start()
}

// Shutdown stops the scheduler; pending triggers never fire
func (t *GocronTimer) Shutdown() error {
	return t.scheduler.Shutdown()
}

// Arm schedules fn to run once at the given time
func (t *GocronTimer) Arm(at time.Time, fn func()) (uuid.UUID, error) {
	job, err := t.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(fn),
	)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to arm trigger")
	}

	log.Debug().
		Str("trigger", job.ID().String()).
		Time("at", at).
		Msg("Trigger armed")

	return job.ID(), nil
}

// Cancel removes the job. A job that already ran is not an error.
func (t *GocronTimer) Cancel(handle uuid.UUID) error {
	if handle == uuid.Nil {
		return nil
	}
	if err := t.scheduler.RemoveJob(handle); err != nil {
		if errors.Is(err, gocron.ErrJobNotFound) {
			return nil
		}
		return errors.Wrap(err, "failed to cancel trigger")
	}
	return nil
}
