// Package schedule provides event handling for scheduler firings.
package schedule

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Kalatco/smartshades/internal/actions"
	"github.com/Kalatco/smartshades/internal/eventbus"
)

// RegisterHandler subscribes to schedule events on the event bus and
// dispatches them to the invoker. Each job is limited to maxConcurrent
// in-flight executions; firings beyond the cap are dropped with a warning
// so a stuck device cannot pile up duplicate commands.
func RegisterHandler(
	ctx context.Context,
	bus *eventbus.Bus,
	invoker *actions.Invoker,
	maxConcurrent int,
) {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	var mu sync.Mutex
	inflight := make(map[string]int)

	bus.Subscribe(eventbus.EventTypeSchedule, func(event eventbus.Event) {
		callback, _ := event.Data["callback"].(string)
		room, _ := event.Data["room"].(string)
		command, _ := event.Data["command"].(string)
		occurrenceID, _ := event.Data["occurrence_id"].(string)
		jobID, _ := event.Data["job_id"].(string)
		source, _ := event.Data["source"].(string)

		log.Debug().
			Str("job_id", jobID).
			Str("callback", callback).
			Str("occurrence_id", occurrenceID).
			Str("source", source).
			Msg("Schedule event received")

		mu.Lock()
		if inflight[jobID] >= maxConcurrent {
			mu.Unlock()
			log.Warn().
				Str("job_id", jobID).
				Str("occurrence_id", occurrenceID).
				Int("max_concurrent", maxConcurrent).
				Msg("Too many in-flight executions for job, dropping firing")
			return
		}
		inflight[jobID]++
		mu.Unlock()

		defer func() {
			mu.Lock()
			inflight[jobID]--
			if inflight[jobID] <= 0 {
				delete(inflight, jobID)
			}
			mu.Unlock()
		}()

		err := invoker.InvokeWithSource(ctx, callback, room, command, occurrenceID, "scheduler", jobID)
		if err != nil {
			log.Error().Err(err).
				Str("callback", callback).
				Str("job_id", jobID).
				Str("occurrence_id", occurrenceID).
				Msg("Failed to invoke scheduled command")
		}
	})
}
