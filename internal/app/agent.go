package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Kalatco/smartshades/internal/config"
	"github.com/Kalatco/smartshades/internal/scheduler"
	"github.com/Kalatco/smartshades/internal/solar"
	"github.com/Kalatco/smartshades/internal/storage"
)

// CallbackShadeCommand is the registered callback name schedules fire
const CallbackShadeCommand = "shade_command"

// ShadeController abstracts the device API so the agent is testable
// without a hub.
type ShadeController interface {
	SetPosition(ctx context.Context, deviceID string, position int) error
	GetPosition(ctx context.Context, deviceID string) (int, error)
}

// BlindExposure is the analyzed exposure of one blind's window
type BlindExposure struct {
	DeviceID string         `json:"device_id"`
	Name     string         `json:"name"`
	Exposure solar.Exposure `json:"exposure"`
}

// RoomExposure aggregates sun exposure for every blind in a room
type RoomExposure struct {
	Room      string          `json:"room"`
	Azimuth   float64         `json:"sun_azimuth"`
	Elevation float64         `json:"sun_elevation"`
	Direction string          `json:"sun_direction"`
	IsUp      bool            `json:"sun_is_up"`
	Degraded  bool            `json:"degraded,omitempty"`
	Blinds    []BlindExposure `json:"blinds"`
}

// Agent is the domain facade: it answers exposure queries, executes shade
// commands against the hub, and owns the schedule CRUD surface.
type Agent struct {
	rooms     map[string]config.Room
	engine    *solar.Engine
	scheduler *scheduler.Scheduler
	shades    ShadeController
	positions *storage.PositionStore
}

// NewAgent creates the agent
func NewAgent(
	rooms map[string]config.Room,
	engine *solar.Engine,
	sched *scheduler.Scheduler,
	shades ShadeController,
	positions *storage.PositionStore,
) *Agent {
	return &Agent{
		rooms:     rooms,
		engine:    engine,
		scheduler: sched,
		shades:    shades,
		positions: positions,
	}
}

// GetWindowSunExposure analyzes the current sun exposure of every blind in
// a room.
func (a *Agent) GetWindowSunExposure(ctx context.Context, room string) (*RoomExposure, error) {
	cfg, ok := a.rooms[room]
	if !ok {
		return nil, fmt.Errorf("unknown room %q", room)
	}

	snap, err := a.engine.Snapshot(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	result := &RoomExposure{
		Room:      room,
		Azimuth:   snap.Azimuth,
		Elevation: snap.Elevation,
		Direction: snap.Direction,
		IsUp:      snap.IsUp,
		Degraded:  snap.Degraded,
		Blinds:    make([]BlindExposure, 0, len(cfg.Blinds)),
	}

	for _, blind := range cfg.Blinds {
		// Orientations were validated at config load
		o, err := solar.ParseOrientation(blind.Orientation)
		if err != nil {
			o = solar.South
		}
		result.Blinds = append(result.Blinds, BlindExposure{
			DeviceID: blind.ID,
			Name:     blind.Name,
			Exposure: solar.Analyze(o, snap),
		})
	}

	return result, nil
}

// ExecuteCommand applies a shade command to every blind in a room.
// It keeps going after individual device failures so one stuck blind does
// not leave the rest of the room untouched.
func (a *Agent) ExecuteCommand(ctx context.Context, room, command string) error {
	cfg, ok := a.rooms[room]
	if !ok {
		return fmt.Errorf("unknown room %q", room)
	}

	position, err := ParseCommand(command)
	if err != nil {
		return err
	}

	var failed []string
	for _, blind := range cfg.Blinds {
		if err := a.shades.SetPosition(ctx, blind.ID, position); err != nil {
			log.Error().Err(err).
				Str("room", room).
				Str("device_id", blind.ID).
				Msg("Failed to move blind")
			failed = append(failed, blind.Name)
			continue
		}

		if err := a.positions.Set(blind.ID, room, position); err != nil {
			log.Warn().Err(err).Str("device_id", blind.ID).Msg("Failed to persist blind position")
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to move %d of %d blinds in %s: %s",
			len(failed), len(cfg.Blinds), room, strings.Join(failed, ", "))
	}

	log.Info().Str("room", room).Str("command", command).Int("position", position).Msg("Room command executed")
	return nil
}

// ParseCommand maps a shade command to a target position: "open" is fully
// up (100), "close" fully down (0), and "NN%" or a bare number set an
// explicit position.
func ParseCommand(command string) (int, error) {
	c := strings.ToLower(strings.TrimSpace(command))

	switch c {
	case "open", "up":
		return 100, nil
	case "close", "closed", "down":
		return 0, nil
	}

	c = strings.TrimSuffix(c, "%")
	n, err := strconv.Atoi(c)
	if err != nil {
		return 0, fmt.Errorf("unknown shade command %q", command)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("shade position %d out of range [0, 100]", n)
	}
	return n, nil
}

// CreateSchedule schedules a shade command for a room
func (a *Agent) CreateSchedule(ctx context.Context, room, command, description, timeSpec, dateSpec, recurrence string) (*scheduler.Job, error) {
	if _, ok := a.rooms[room]; !ok {
		return nil, fmt.Errorf("unknown room %q", room)
	}
	if _, err := ParseCommand(command); err != nil {
		return nil, err
	}

	return a.scheduler.CreateSchedule(ctx, scheduler.Request{
		Room:        room,
		Command:     command,
		Description: description,
		Callback:    CallbackShadeCommand,
		TimeSpec:    timeSpec,
		DateSpec:    dateSpec,
		Recurrence:  recurrence,
	})
}

// ModifySchedule rebuilds an existing schedule in place
func (a *Agent) ModifySchedule(ctx context.Context, id, room, command, description, timeSpec, dateSpec, recurrence string) (*scheduler.Job, error) {
	if _, ok := a.rooms[room]; !ok {
		return nil, fmt.Errorf("unknown room %q", room)
	}
	if _, err := ParseCommand(command); err != nil {
		return nil, err
	}

	return a.scheduler.ModifySchedule(ctx, scheduler.Request{
		ID:          id,
		Room:        room,
		Command:     command,
		Description: description,
		Callback:    CallbackShadeCommand,
		TimeSpec:    timeSpec,
		DateSpec:    dateSpec,
		Recurrence:  recurrence,
	})
}

// DeleteSchedule removes a schedule by id
func (a *Agent) DeleteSchedule(id string) bool {
	return a.scheduler.DeleteSchedule(id)
}

// ListSchedules lists schedules, optionally filtered by room
func (a *Agent) ListSchedules(room string) []scheduler.Summary {
	return a.scheduler.ListSchedules(room)
}
