package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Kalatco/smartshades/internal/eventbus"
	"github.com/Kalatco/smartshades/internal/ledger"
)

// Request describes a schedule to create or modify
type Request struct {
	ID          string // empty on create; content-derived id is assigned
	Room        string
	Command     string
	Description string
	Callback    string
	TimeSpec    string
	DateSpec    string
	Recurrence  string
}

// Scheduler manages shade schedules and emits firing events to the bus.
// Jobs are stored in memory; firings are deduplicated through the ledger.
type Scheduler struct {
	store    *Store
	resolver *TimeResolver
	bus      *eventbus.Bus
	ledger   *ledger.Ledger
	tz       *time.Location

	misfireGrace time.Duration

	reschedule chan struct{}

	// now is swappable in tests
	now func() time.Time
}

// New creates a scheduler
func New(
	store *Store,
	resolver *TimeResolver,
	bus *eventbus.Bus,
	l *ledger.Ledger,
	timezone string,
	misfireGrace time.Duration,
) *Scheduler {
	tz, err := time.LoadLocation(timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", timezone).Msg("Failed to load timezone, using UTC")
		tz = time.UTC
	}

	s := &Scheduler{
		store:        store,
		resolver:     resolver,
		bus:          bus,
		ledger:       l,
		tz:           tz,
		misfireGrace: misfireGrace,
		reschedule:   make(chan struct{}, 1),
		now:          time.Now,
	}

	store.SetOnChange(s.notifyReschedule)
	return s
}

// Timezone returns the scheduler's timezone
func (s *Scheduler) Timezone() *time.Location {
	return s.tz
}

// CreateSchedule builds a job from the request and stores it.
// The id is derived from the request content, so submitting the same
// room/command/time/recurrence twice fails with ErrJobExists.
func (s *Scheduler) CreateSchedule(ctx context.Context, req Request) (*Job, error) {
	job, err := s.buildJob(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.Add(job); err != nil {
		return nil, err
	}

	log.Info().
		Str("job_id", job.ID).
		Str("room", job.Room).
		Str("command", job.Command).
		Str("trigger", job.Trigger.Describe()).
		Time("next_run", job.NextRun).
		Msg("Schedule created")

	return job, nil
}

// ModifySchedule replaces the trigger and content of an existing job. An
// empty id falls back to creating a new schedule; an unknown id fails with
// ErrJobNotFound.
func (s *Scheduler) ModifySchedule(ctx context.Context, req Request) (*Job, error) {
	if req.ID == "" {
		return s.CreateSchedule(ctx, req)
	}

	job, err := s.buildJob(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.Replace(req.ID, job); err != nil {
		return nil, err
	}

	log.Info().
		Str("job_id", job.ID).
		Str("trigger", job.Trigger.Describe()).
		Time("next_run", job.NextRun).
		Msg("Schedule modified")

	return job, nil
}

// DeleteSchedule removes a schedule. Returns false when the id is unknown.
func (s *Scheduler) DeleteSchedule(id string) bool {
	removed := s.store.Remove(id)
	if removed {
		log.Info().Str("job_id", id).Msg("Schedule deleted")
	}
	return removed
}

// GetSchedule returns a stored job by id
func (s *Scheduler) GetSchedule(id string) (*Job, bool) {
	return s.store.Get(id)
}

// ListSchedules returns job summaries, optionally filtered by room
func (s *Scheduler) ListSchedules(room string) []Summary {
	return s.store.List(room)
}

// buildJob resolves the request's time spec and constructs the trigger
func (s *Scheduler) buildJob(ctx context.Context, req Request) (*Job, error) {
	if req.Room == "" {
		return nil, fmt.Errorf("schedule request has no room")
	}
	if req.Command == "" {
		return nil, fmt.Errorf("schedule request has no command")
	}
	if req.Callback == "" {
		return nil, fmt.Errorf("schedule request has no callback")
	}

	now := s.now().In(s.tz)
	hour, minute, _ := s.resolver.ResolveTime(ctx, req.TimeSpec, now)

	trigger := BuildTrigger(hour, minute, req.DateSpec, req.Recurrence, now, s.tz)
	next := trigger.Next(now)

	return &Job{
		ID:          JobID(req.Room, req.Command, req.TimeSpec, req.Recurrence),
		Room:        req.Room,
		Command:     req.Command,
		Description: req.Description,
		Callback:    req.Callback,
		TimeSpec:    req.TimeSpec,
		DateSpec:    req.DateSpec,
		Recurrence:  req.Recurrence,
		Trigger:     trigger,
		NextRun:     next,
		CreatedAt:   now,
		Active:      true,
	}, nil
}

func (s *Scheduler) notifyReschedule() {
	select {
	case s.reschedule <- struct{}{}:
	default:
	}
}

// Run starts the scheduler loop. It sleeps until the earliest pending job,
// wakes up on any store mutation, and fires due jobs to the event bus.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Msg("Scheduler started")

	for {
		job := s.store.earliest(s.now())

		sleepDuration := time.Hour // default if no jobs
		if job != nil {
			sleepDuration = job.NextRun.Sub(s.now())
			if sleepDuration < 0 {
				sleepDuration = 0
			}
		}

		log.Debug().
			Dur("sleep_duration", sleepDuration).
			Msg("Scheduler sleeping")

		timer := time.NewTimer(sleepDuration)

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopping")
			return nil

		case <-s.reschedule:
			timer.Stop()
			log.Debug().Msg("Schedule changed, recomputing")
			continue

		case <-timer.C:
			if job != nil {
				s.fire(job)
			}
		}
	}
}

// fire emits a single job occurrence and advances the job. Firings later
// than the misfire grace are skipped (recurring jobs still advance to their
// next occurrence).
func (s *Scheduler) fire(job *Job) {
	now := s.now()
	due := job.NextRun

	if now.Sub(due) > s.misfireGrace {
		log.Warn().
			Str("job_id", job.ID).
			Time("due", due).
			Dur("late_by", now.Sub(due)).
			Dur("misfire_grace", s.misfireGrace).
			Msg("Firing missed grace period, skipping occurrence")
		s.store.advance(job.ID, due)
		return
	}

	occurrenceID := fmt.Sprintf("%s/%d", job.ID, due.Unix())

	if s.ledger != nil && s.ledger.HasCompleted(occurrenceID) {
		log.Debug().Str("occurrence_id", occurrenceID).Msg("Already completed, skipping")
		s.store.advance(job.ID, due)
		return
	}

	executionID := uuid.NewString()

	log.Info().
		Str("job_id", job.ID).
		Str("occurrence_id", occurrenceID).
		Str("execution_id", executionID).
		Str("room", job.Room).
		Str("command", job.Command).
		Time("due", due).
		Msg("Emitting schedule event")

	if s.ledger != nil {
		if err := s.ledger.AppendWithJob(ledger.EventScheduleFired, occurrenceID, "scheduler", job.ID, map[string]any{
			"execution_id": executionID,
			"room":         job.Room,
			"command":      job.Command,
			"due":          due.Unix(),
		}); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record schedule firing")
		}
	}

	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeSchedule,
		Data: map[string]interface{}{
			"job_id":        job.ID,
			"occurrence_id": occurrenceID,
			"execution_id":  executionID,
			"callback":      job.Callback,
			"room":          job.Room,
			"command":       job.Command,
			"run_at":        due,
			"source":        "scheduler",
		},
	})

	s.store.advance(job.ID, due)
}
