package scheduler

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrJobExists is returned by Create when a job with the same
// content-derived id is already stored. The orchestrator decides whether an
// identical id means the create should have been a modify.
var ErrJobExists = errors.New("schedule already exists")

// ErrJobNotFound is returned by Modify for an explicit id that is not in
// the store. This is a routine outcome, not an internal failure.
var ErrJobNotFound = errors.New("schedule not found")

// Job is a stored schedule. Jobs hold a serializable (room, command) pair
// and a callback name rather than a function reference, so the record
// survives a registry rebuild.
type Job struct {
	ID          string
	Room        string
	Command     string
	Description string
	Callback    string
	TimeSpec    string
	DateSpec    string
	Recurrence  string
	Trigger     Trigger
	NextRun     time.Time
	CreatedAt   time.Time
	Active      bool
}

// Summary is the read-only listing form of a job
type Summary struct {
	ID          string    `json:"id"`
	Room        string    `json:"room"`
	Command     string    `json:"command"`
	Description string    `json:"description"`
	Trigger     string    `json:"trigger"`
	NextRun     time.Time `json:"next_run_time"`
}

// JobID derives a stable id from the job content. Identical requests
// produce identical ids; the collision is the conflict signal.
func JobID(room, command, timeSpec, recurrence string) string {
	content := fmt.Sprintf("%s_%s_%s_%s", room, command, timeSpec, recurrence)
	sum := md5.Sum([]byte(content))
	return "shade_" + hex.EncodeToString(sum[:])[:8]
}

// Store holds the active scheduled jobs in memory
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	// onChange is notified after any mutation so the timer loop can
	// recompute its next wakeup
	onChange func()
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// SetOnChange registers the mutation callback (used by the scheduler loop)
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Add inserts a new job. Fails with ErrJobExists on id collision.
func (s *Store) Add(job *Job) error {
	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.notify()
	return nil
}

// Replace swaps the trigger and content of an existing job, preserving its
// id and creation time. Fails with ErrJobNotFound for unknown ids.
func (s *Store) Replace(id string, job *Job) error {
	s.mu.Lock()
	existing, exists := s.jobs[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	job.ID = id
	job.CreatedAt = existing.CreatedAt
	s.jobs[id] = job
	s.mu.Unlock()

	s.notify()
	return nil
}

// Remove deletes a job by id. Returns false when the id is absent; deleting
// a non-existent job is a normal outcome.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	_, exists := s.jobs[id]
	if exists {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if exists {
		s.notify()
	}
	return exists
}

// Get returns a job by id
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Len returns the number of stored jobs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// List returns summaries of all jobs, optionally filtered by room, sorted
// by next run time. Read-only; never mutates.
func (s *Store) List(room string) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.jobs))
	for _, job := range s.jobs {
		if room != "" && job.Room != room {
			continue
		}
		summaries = append(summaries, Summary{
			ID:          job.ID,
			Room:        job.Room,
			Command:     job.Command,
			Description: job.Description,
			Trigger:     job.Trigger.Describe(),
			NextRun:     job.NextRun,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].NextRun.Equal(summaries[j].NextRun) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].NextRun.Before(summaries[j].NextRun)
	})
	return summaries
}

// earliest finds the job with the soonest pending run after the given time
func (s *Store) earliest(after time.Time) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var winner *Job
	for _, job := range s.jobs {
		if !job.Active || job.NextRun.IsZero() {
			continue
		}
		if winner == nil || job.NextRun.Before(winner.NextRun) {
			winner = job
		}
	}
	return winner
}

// advance moves a job past a completed firing: recurring jobs get their
// next occurrence, one-shot jobs are terminal and leave the store.
func (s *Store) advance(id string, firedAt time.Time) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	next := job.Trigger.Next(firedAt)
	if next.IsZero() {
		delete(s.jobs, id)
	} else {
		job.NextRun = next
	}
	s.mu.Unlock()

	s.notify()
}
