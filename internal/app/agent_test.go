package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kalatco/smartshades/internal/config"
	"github.com/Kalatco/smartshades/internal/db"
	"github.com/Kalatco/smartshades/internal/scheduler"
	"github.com/Kalatco/smartshades/internal/solar"
	"github.com/Kalatco/smartshades/internal/storage"
)

type fakeShades struct {
	positions map[string]int
	failIDs   map[string]bool
}

func (f *fakeShades) SetPosition(ctx context.Context, deviceID string, position int) error {
	if f.failIDs[deviceID] {
		return errors.New("device unreachable")
	}
	if f.positions == nil {
		f.positions = make(map[string]int)
	}
	f.positions[deviceID] = position
	return nil
}

func (f *fakeShades) GetPosition(ctx context.Context, deviceID string) (int, error) {
	return f.positions[deviceID], nil
}

func testRooms() map[string]config.Room {
	return map[string]config.Room{
		"living_room": {
			Blinds: []config.Blind{
				{ID: "101", Name: "Bay Window", Orientation: "west"},
				{ID: "102", Name: "Side Window", Orientation: "south"},
			},
		},
	}
}

func newTestAgent(t *testing.T, shades ShadeController) *Agent {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	engine := solar.NewEngine(solar.SiteSpec{
		City:      "Seattle",
		Latitude:  47.6,
		Longitude: -122.3,
		Timezone:  "America/Los_Angeles",
		Altitude:  100,
	}, nil, solar.NewSnapshotCache())

	sched := scheduler.New(
		scheduler.NewStore(),
		scheduler.NewTimeResolver(engine),
		nil, nil, "America/Los_Angeles", 30*time.Second,
	)

	return NewAgent(testRooms(), engine, sched, shades, storage.NewPositionStore(database.DB))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		command string
		want    int
		wantErr bool
	}{
		{"open", 100, false},
		{"OPEN", 100, false},
		{"up", 100, false},
		{"close", 0, false},
		{"closed", 0, false},
		{"down", 0, false},
		{"50%", 50, false},
		{"75", 75, false},
		{" 30% ", 30, false},
		{"0%", 0, false},
		{"100%", 100, false},
		{"150%", 0, true},
		{"-10", 0, true},
		{"halfway", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.command)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCommand(%q) expected error, got %d", tt.command, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCommand(%q) unexpected error: %v", tt.command, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %d, want %d", tt.command, got, tt.want)
		}
	}
}

func TestExecuteCommand_MovesAllBlinds(t *testing.T) {
	shades := &fakeShades{}
	agent := newTestAgent(t, shades)

	if err := agent.ExecuteCommand(context.Background(), "living_room", "close"); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}

	if shades.positions["101"] != 0 || shades.positions["102"] != 0 {
		t.Errorf("positions = %v, want all closed", shades.positions)
	}
}

func TestExecuteCommand_PersistsPositions(t *testing.T) {
	shades := &fakeShades{}
	agent := newTestAgent(t, shades)

	if err := agent.ExecuteCommand(context.Background(), "living_room", "40%"); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}

	stored, ok, err := agent.positions.Get("101")
	if err != nil || !ok {
		t.Fatalf("position not persisted: ok=%v err=%v", ok, err)
	}
	if stored.Position != 40 || stored.Room != "living_room" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestExecuteCommand_PartialFailure(t *testing.T) {
	shades := &fakeShades{failIDs: map[string]bool{"101": true}}
	agent := newTestAgent(t, shades)

	err := agent.ExecuteCommand(context.Background(), "living_room", "open")
	if err == nil {
		t.Fatal("partial failure should surface as an error")
	}

	// The healthy blind still moved
	if shades.positions["102"] != 100 {
		t.Errorf("healthy blind position = %d, want 100", shades.positions["102"])
	}
}

func TestExecuteCommand_UnknownRoom(t *testing.T) {
	agent := newTestAgent(t, &fakeShades{})
	if err := agent.ExecuteCommand(context.Background(), "garage", "open"); err == nil {
		t.Fatal("unknown room should be rejected")
	}
}

func TestExecuteCommand_BadCommand(t *testing.T) {
	shades := &fakeShades{}
	agent := newTestAgent(t, shades)

	if err := agent.ExecuteCommand(context.Background(), "living_room", "sideways"); err == nil {
		t.Fatal("unknown command should be rejected")
	}
	if len(shades.positions) != 0 {
		t.Error("no blind should move on a bad command")
	}
}

func TestGetWindowSunExposure(t *testing.T) {
	agent := newTestAgent(t, &fakeShades{})

	exposure, err := agent.GetWindowSunExposure(context.Background(), "living_room")
	if err != nil {
		t.Fatalf("GetWindowSunExposure: %v", err)
	}

	if exposure.Room != "living_room" {
		t.Errorf("room = %q", exposure.Room)
	}
	if len(exposure.Blinds) != 2 {
		t.Fatalf("blinds = %d, want 2", len(exposure.Blinds))
	}
	if exposure.Direction == "" {
		t.Error("sun direction should be set")
	}
	for _, b := range exposure.Blinds {
		if b.Exposure.Orientation == "" {
			t.Errorf("blind %s missing orientation", b.DeviceID)
		}
		if b.Exposure.Intensity == "" || b.Exposure.Glare == "" {
			t.Errorf("blind %s missing analysis fields: %+v", b.DeviceID, b.Exposure)
		}
	}
}

func TestGetWindowSunExposure_UnknownRoom(t *testing.T) {
	agent := newTestAgent(t, &fakeShades{})
	if _, err := agent.GetWindowSunExposure(context.Background(), "attic"); err == nil {
		t.Fatal("unknown room should be rejected")
	}
}

func TestCreateSchedule_Validates(t *testing.T) {
	agent := newTestAgent(t, &fakeShades{})

	if _, err := agent.CreateSchedule(context.Background(), "attic", "close", "", "sunset", "", "daily"); err == nil {
		t.Error("unknown room should be rejected")
	}
	if _, err := agent.CreateSchedule(context.Background(), "living_room", "sideways", "", "sunset", "", "daily"); err == nil {
		t.Error("invalid command should be rejected")
	}

	job, err := agent.CreateSchedule(context.Background(), "living_room", "close", "evening close", "sunset", "", "daily")
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if job.Callback != CallbackShadeCommand {
		t.Errorf("callback = %q, want %q", job.Callback, CallbackShadeCommand)
	}

	if got := agent.ListSchedules("living_room"); len(got) != 1 {
		t.Errorf("ListSchedules = %d entries, want 1", len(got))
	}
	if !agent.DeleteSchedule(job.ID) {
		t.Error("DeleteSchedule should report true")
	}
}
