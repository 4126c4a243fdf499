package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
location:
  city: Seattle
  timezone: America/Los_Angeles
  lat: 47.6062
  lon: -122.3321
  altitude: 56

hubitat:
  url: http://192.168.1.10
  maker_api_id: "42"
  access_token: token123
  timeout: 5s
  max_retries: 2

scheduler:
  misfire_grace: 45s
  max_concurrent_firings: 2

log:
  level: debug

rooms:
  living_room:
    blinds:
      - id: "101"
        name: Bay Window
        orientation: West
      - id: "102"
        orientation: southwest
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Location.City != "Seattle" || !cfg.Location.HasCoordinates() {
		t.Errorf("location = %+v", cfg.Location)
	}
	if cfg.Hubitat.Timeout.Duration() != 5*time.Second {
		t.Errorf("hubitat timeout = %v", cfg.Hubitat.Timeout.Duration())
	}
	if cfg.Scheduler.GetMisfireGrace() != 45*time.Second {
		t.Errorf("misfire grace = %v", cfg.Scheduler.GetMisfireGrace())
	}
	if cfg.Scheduler.GetMaxConcurrentFirings() != 2 {
		t.Errorf("max concurrent = %d", cfg.Scheduler.GetMaxConcurrentFirings())
	}

	blinds := cfg.Rooms["living_room"].Blinds
	if len(blinds) != 2 {
		t.Fatalf("blinds = %d, want 2", len(blinds))
	}
	if blinds[0].Orientation != "west" {
		t.Errorf("orientation = %q, want lowercased west", blinds[0].Orientation)
	}
	if blinds[1].Name != "102" {
		t.Errorf("missing name should default to device id, got %q", blinds[1].Name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
location:
  city: Seattle
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path == "" {
		t.Error("database path default not applied")
	}
	if cfg.Location.Timezone != "UTC" {
		t.Errorf("timezone default = %q, want UTC", cfg.Location.Timezone)
	}
	if cfg.Location.Altitude != 100 {
		t.Errorf("altitude default = %v, want 100", cfg.Location.Altitude)
	}
	if cfg.Scheduler.GetMisfireGrace() != 30*time.Second {
		t.Errorf("misfire grace default = %v, want 30s", cfg.Scheduler.GetMisfireGrace())
	}
	if cfg.Scheduler.GetMaxConcurrentFirings() != 3 {
		t.Errorf("max concurrent default = %d, want 3", cfg.Scheduler.GetMaxConcurrentFirings())
	}
	if cfg.Hubitat.MaxRetries != 3 {
		t.Errorf("max retries default = %d, want 3", cfg.Hubitat.MaxRetries)
	}
	if cfg.GetShutdownTimeout() != 5*time.Second {
		t.Errorf("shutdown timeout default = %v", cfg.GetShutdownTimeout())
	}
	if cfg.EventBus.GetWorkers() != 4 || cfg.EventBus.GetQueueSize() != 100 {
		t.Errorf("eventbus defaults = %d/%d", cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	}
	if cfg.Healthcheck.Port != 9090 {
		t.Errorf("healthcheck port default = %d", cfg.Healthcheck.Port)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SHADES_TOKEN", "from-env")

	path := writeConfig(t, `
location:
  city: Seattle
hubitat:
  access_token: ${SHADES_TOKEN}
  url: ${SHADES_URL:http://fallback}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hubitat.AccessToken != "from-env" {
		t.Errorf("access token = %q, want env value", cfg.Hubitat.AccessToken)
	}
	if cfg.Hubitat.URL != "http://fallback" {
		t.Errorf("url = %q, want default fallback", cfg.Hubitat.URL)
	}
}

func TestLoad_InvalidOrientation(t *testing.T) {
	path := writeConfig(t, `
location:
  city: Seattle
rooms:
  office:
    blinds:
      - id: "1"
        orientation: sideways
`)

	if _, err := Load(path); err == nil {
		t.Fatal("invalid orientation should be rejected at load time")
	}
}

func TestLoad_MissingOrientationDefaultsSouth(t *testing.T) {
	path := writeConfig(t, `
location:
  city: Seattle
rooms:
  office:
    blinds:
      - id: "1"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Rooms["office"].Blinds[0].Orientation; got != "south" {
		t.Errorf("orientation = %q, want south default", got)
	}
}

func TestLoad_BlindWithoutID(t *testing.T) {
	path := writeConfig(t, `
location:
  city: Seattle
rooms:
  office:
    blinds:
      - name: Window
`)

	if _, err := Load(path); err == nil {
		t.Fatal("blind without device id should be rejected")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}
