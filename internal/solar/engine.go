package solar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Kalatco/smartshades/internal/geo"
)

// Snapshot holds the computed solar state for one location and instant
type Snapshot struct {
	Azimuth           float64   // degrees from north, [0, 360)
	Elevation         float64   // true elevation, degrees
	ApparentElevation float64   // refraction-corrected elevation, degrees
	DNI               float64   // clear-sky direct normal irradiance, W/m2
	Direction         string    // compass name for the sun's azimuth
	IsUp              bool      // apparent elevation above civil twilight
	Sunrise           time.Time // local sunrise for the snapshot's calendar date
	Sunset            time.Time // local sunset for the snapshot's calendar date
	Timestamp         time.Time // instant the snapshot was computed for

	// Degraded marks a fallback snapshot produced after a computation
	// failure. Values are plausible defaults, not real readings.
	Degraded bool
}

// SiteSpec describes the configured site. Explicit coordinates bypass
// geocoding.
type SiteSpec struct {
	City      string
	Latitude  float64
	Longitude float64
	Timezone  string
	Altitude  float64
}

// CoordinateResolver resolves a place name to coordinates
type CoordinateResolver interface {
	Resolve(ctx context.Context, name string) (*geo.Location, error)
}

// site is the reusable per-location computation context
type site struct {
	lat, lon float64
	altitude float64
	tz       *time.Location
}

// Engine computes solar snapshots for a configured site, caching both the
// site context and the snapshots themselves.
type Engine struct {
	spec     SiteSpec
	resolver CoordinateResolver
	cache    *SnapshotCache

	mu    sync.Mutex
	sites map[string]*site

	computations int

	// positionFn is swappable in tests to simulate computation failures
	positionFn func(jd, lat, lon float64) (elevation, azimuth float64)
}

// NewEngine creates a solar engine. The cache is injected so TTL behavior
// is testable and never shared implicitly across instances.
func NewEngine(spec SiteSpec, resolver CoordinateResolver, cache *SnapshotCache) *Engine {
	return &Engine{
		spec:       spec,
		resolver:   resolver,
		cache:      cache,
		sites:      make(map[string]*site),
		positionFn: sunPosition,
	}
}

// Snapshot returns the solar snapshot for the given instant.
// The only error it can return is a location-resolution failure; any
// internal computation problem yields a degraded fallback snapshot instead.
func (e *Engine) Snapshot(ctx context.Context, at time.Time) (*Snapshot, error) {
	s, err := e.site(ctx)
	if err != nil {
		return nil, err
	}

	key := BucketKey(s.lat, s.lon, at)
	if snap, ok := e.cache.Get(key); ok {
		return snap, nil
	}

	snap := e.compute(s, at)
	e.cache.Put(key, snap)
	return snap, nil
}

// SunriseSunset returns local sunrise and sunset for the calendar date of
// the given time, in the configured timezone.
func (e *Engine) SunriseSunset(ctx context.Context, date time.Time) (time.Time, time.Time, error) {
	s, err := e.site(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	sunrise, sunset := e.sunTimes(s, date.In(s.tz))
	return sunrise, sunset, nil
}

// Computations returns how many snapshots were computed (not served from
// cache). Used to assert cache behavior in tests.
func (e *Engine) Computations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computations
}

// site resolves coordinates and builds the per-location context, cached by
// (lat, lon, timezone, altitude).
func (e *Engine) site(ctx context.Context) (*site, error) {
	lat, lon := e.spec.Latitude, e.spec.Longitude
	if lat == 0 && lon == 0 {
		loc, err := e.resolver.Resolve(ctx, e.spec.City)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve site location: %w", err)
		}
		lat, lon = loc.Latitude, loc.Longitude
	}

	key := fmt.Sprintf("%.4f,%.4f,%s,%.0f", lat, lon, e.spec.Timezone, e.spec.Altitude)

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sites[key]; ok {
		return s, nil
	}

	tz, err := time.LoadLocation(e.spec.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", e.spec.Timezone).Msg("Failed to load timezone, using UTC")
		tz = time.UTC
	}

	s := &site{lat: lat, lon: lon, altitude: e.spec.Altitude, tz: tz}
	e.sites[key] = s
	return s, nil
}

// compute builds a snapshot, falling back to plausible defaults on any
// internal failure. Shade automation degrades instead of halting.
func (e *Engine) compute(s *site, at time.Time) *Snapshot {
	e.mu.Lock()
	e.computations++
	e.mu.Unlock()

	snap, err := e.computeStrict(s, at)
	if err != nil {
		log.Warn().Err(err).
			Float64("lat", s.lat).
			Float64("lon", s.lon).
			Time("at", at).
			Msg("Solar computation failed, using fallback snapshot")
		return fallbackSnapshot(at.In(s.tz), s.tz)
	}
	return snap
}

func (e *Engine) computeStrict(s *site, at time.Time) (snap *Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("solar computation panicked: %v", r)
		}
	}()

	local := at.In(s.tz)
	jd := julianDay(at)

	elevation, azimuth := e.positionFn(jd, s.lat, s.lon)
	if azimuth < 0 || azimuth >= 360 || elevation < -90 || elevation > 90 {
		return nil, fmt.Errorf("solar position out of range: azimuth=%.2f elevation=%.2f", azimuth, elevation)
	}

	apparent := apparentElevation(elevation)
	sunrise, sunset := e.sunTimes(s, local)

	return &Snapshot{
		Azimuth:           azimuth,
		Elevation:         elevation,
		ApparentElevation: apparent,
		DNI:               clearSkyDNI(apparent, s.altitude),
		Direction:         CompassDirection(azimuth),
		IsUp:              apparent > CivilTwilightThreshold,
		Sunrise:           sunrise,
		Sunset:            sunset,
		Timestamp:         local,
	}, nil
}

// sunTimes computes sunrise and sunset for the local calendar date. A
// sunset landing before noon indicates a date/timezone mismatch between the
// UTC-based equation and the local date, so the calculation is retried for
// the next day.
func (e *Engine) sunTimes(s *site, local time.Time) (time.Time, time.Time) {
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.tz)

	sunrise := sunEventTime(date, s.lat, s.lon, CivilTwilightThreshold, true, s.tz)
	sunset := sunEventTime(date, s.lat, s.lon, CivilTwilightThreshold, false, s.tz)

	if !sunset.IsZero() && sunset.Hour() < 12 {
		next := date.AddDate(0, 0, 1)
		sunrise = sunEventTime(next, s.lat, s.lon, CivilTwilightThreshold, true, s.tz)
		sunset = sunEventTime(next, s.lat, s.lon, CivilTwilightThreshold, false, s.tz)
	}

	return sunrise, sunset
}

// fallbackSnapshot is the documented conservative default: sun roughly
// south at moderate height, 06:00/18:00 sun times.
func fallbackSnapshot(local time.Time, tz *time.Location) *Snapshot {
	const fallbackElevation = 30.0

	year, month, day := local.Date()
	return &Snapshot{
		Azimuth:           180,
		Elevation:         fallbackElevation,
		ApparentElevation: fallbackElevation,
		DNI:               0,
		Direction:         CompassDirection(180),
		IsUp:              fallbackElevation > CivilTwilightThreshold,
		Sunrise:           time.Date(year, month, day, 6, 0, 0, 0, tz),
		Sunset:            time.Date(year, month, day, 18, 0, 0, 0, tz),
		Timestamp:         local,
		Degraded:          true,
	}
}
