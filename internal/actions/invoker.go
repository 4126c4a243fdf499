package actions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Kalatco/smartshades/internal/ledger"
)

// Invoker executes registered callbacks with deduplication.
// Each occurrence of a schedule carries an idempotency key; once a
// completion is in the ledger, replays of the same occurrence are skipped.
type Invoker struct {
	registry *Registry
	ledger   *ledger.Ledger
}

// NewInvoker creates a new command invoker
func NewInvoker(registry *Registry, l *ledger.Ledger) *Invoker {
	return &Invoker{
		registry: registry,
		ledger:   l,
	}
}

// HasCallback checks if a callback is registered
func (i *Invoker) HasCallback(name string) bool {
	_, exists := i.registry.Get(name)
	return exists
}

// Invoke executes a callback with the given idempotency key.
//   - For schedules: idempotencyKey = occurrence_id ("shade_a1b2c3d4/1735372800")
//   - For manual/programmatic calls: idempotencyKey = "" (no dedupe)
func (i *Invoker) Invoke(ctx context.Context, callback, room, command, idempotencyKey string) error {
	return i.invoke(ctx, callback, room, command, idempotencyKey, "", "")
}

// InvokeWithSource is like Invoke but includes source and job_id for ledger tracking
func (i *Invoker) InvokeWithSource(ctx context.Context, callback, room, command, idempotencyKey, source, jobID string) error {
	return i.invoke(ctx, callback, room, command, idempotencyKey, source, jobID)
}

func (i *Invoker) invoke(ctx context.Context, callback, room, command, idempotencyKey, source, jobID string) error {
	// Check if already completed (dedupe)
	if idempotencyKey != "" && i.ledger.HasCompleted(idempotencyKey) {
		log.Debug().
			Str("callback", callback).
			Str("idempotency_key", idempotencyKey).
			Msg("Command already completed, skipping")
		return nil
	}

	fn, exists := i.registry.Get(callback)
	if !exists {
		return fmt.Errorf("callback %q not found", callback)
	}

	logEvent := log.Debug().Str("callback", callback).Str("room", room).Str("command", command)
	if source != "" {
		logEvent = logEvent.Str("source", source)
	}
	logEvent.Msg("Executing shade command")

	err := fn(ctx, room, command)

	if err != nil {
		if idempotencyKey != "" {
			i.appendLedger(ledger.EventCommandFailed, idempotencyKey, source, jobID, map[string]any{
				"callback": callback,
				"room":     room,
				"command":  command,
				"error":    err.Error(),
			})
		}
		return err
	}

	if idempotencyKey != "" {
		i.appendLedger(ledger.EventCommandCompleted, idempotencyKey, source, jobID, map[string]any{
			"callback": callback,
			"room":     room,
			"command":  command,
		})
	}

	return nil
}

func (i *Invoker) appendLedger(eventType ledger.EventType, idempotencyKey, source, jobID string, payload map[string]any) {
	var err error
	if source != "" || jobID != "" {
		err = i.ledger.AppendWithJob(eventType, idempotencyKey, source, jobID, payload)
	} else {
		err = i.ledger.Append(eventType, idempotencyKey, payload)
	}
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to append ledger entry")
	}
}
