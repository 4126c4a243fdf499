package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Location        LocationConfig    `yaml:"location"`
	Hubitat         HubitatConfig     `yaml:"hubitat"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Scheduler       SchedulerConfig   `yaml:"scheduler"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Rooms           map[string]Room   `yaml:"rooms"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"`
}

// LocationConfig contains the site location for solar calculations.
// If lat/lon are set, geocoding is skipped entirely.
type LocationConfig struct {
	City        string   `yaml:"city"`
	Timezone    string   `yaml:"timezone"`
	Lat         float64  `yaml:"lat,omitempty"`
	Lon         float64  `yaml:"lon,omitempty"`
	Altitude    float64  `yaml:"altitude"`
	HTTPTimeout Duration `yaml:"http_timeout"` // Timeout for geocoding HTTP requests
}

// HasCoordinates returns true if explicit coordinates are configured
func (l *LocationConfig) HasCoordinates() bool {
	return l.Lat != 0 || l.Lon != 0
}

// HubitatConfig contains Hubitat Maker API connection settings
type HubitatConfig struct {
	URL         string   `yaml:"url"`
	MakerAPIID  string   `yaml:"maker_api_id"`
	AccessToken string   `yaml:"access_token"`
	Timeout     Duration `yaml:"timeout"`
	MaxRetries  int      `yaml:"max_retries"` // Retries for transient device errors
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// SchedulerConfig contains job scheduler settings
type SchedulerConfig struct {
	MisfireGrace         Duration `yaml:"misfire_grace"`          // Late firings within this window still run
	MaxConcurrentFirings int      `yaml:"max_concurrent_firings"` // Per-job concurrent execution cap
}

// GetMisfireGrace returns the misfire grace period with default
func (c *SchedulerConfig) GetMisfireGrace() time.Duration {
	if c.MisfireGrace == 0 {
		return 30 * time.Second
	}
	return c.MisfireGrace.Duration()
}

// GetMaxConcurrentFirings returns the per-job firing cap with default
func (c *SchedulerConfig) GetMaxConcurrentFirings() int {
	if c.MaxConcurrentFirings <= 0 {
		return 3
	}
	return c.MaxConcurrentFirings
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Room groups the blinds of a single room
type Room struct {
	Blinds []Blind `yaml:"blinds"`
}

// Blind describes a single motorized shade and the window it covers
type Blind struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Orientation string `yaml:"orientation"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// GetShutdownTimeout returns the shutdown timeout with default
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout.Duration()
}

var validOrientations = map[string]bool{
	"north": true, "northeast": true, "east": true, "southeast": true,
	"south": true, "southwest": true, "west": true, "northwest": true,
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./smartshades.sqlite"
	}
	if cfg.Location.Timezone == "" {
		cfg.Location.Timezone = "UTC"
	}
	if cfg.Location.Altitude == 0 {
		cfg.Location.Altitude = 100
	}
	if cfg.Location.HTTPTimeout == 0 {
		cfg.Location.HTTPTimeout = Duration(10 * time.Second)
	}
	if cfg.Hubitat.Timeout == 0 {
		cfg.Hubitat.Timeout = Duration(10 * time.Second)
	}
	if cfg.Hubitat.MaxRetries == 0 {
		cfg.Hubitat.MaxRetries = 3
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	if err := validateRooms(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateRooms checks blind orientations at load time so the exposure
// analyzer never has to guess. Missing orientation defaults to south.
func validateRooms(cfg *Config) error {
	for roomName, room := range cfg.Rooms {
		for i, blind := range room.Blinds {
			if blind.ID == "" {
				return fmt.Errorf("room %q: blind %d has no device id", roomName, i)
			}
			orientation := strings.ToLower(strings.TrimSpace(blind.Orientation))
			if orientation == "" {
				orientation = "south"
			}
			if !validOrientations[orientation] {
				return fmt.Errorf("room %q: blind %q has invalid orientation %q", roomName, blind.Name, blind.Orientation)
			}
			room.Blinds[i].Orientation = orientation
			if room.Blinds[i].Name == "" {
				room.Blinds[i].Name = blind.ID
			}
		}
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
