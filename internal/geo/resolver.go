// Package geo resolves place names to coordinates via Nominatim, with
// in-memory and persistent caching.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when the geocoding service has no match for a
// place name. Callers must treat this as "location unavailable" and must
// not substitute a default location.
var ErrNotFound = errors.New("location not found")

const nominatimURL = "https://nominatim.openstreetmap.org/search"

// Location represents a geocoded location
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Resolver resolves place names to coordinates.
// Priority: pre-configured > in-memory cache > persistent cache > geocode.
type Resolver struct {
	mu            sync.RWMutex
	locationCache map[string]*Location

	// Persistent geocache (optional, backed by SQLite)
	persistentCache *Cache

	// Pre-configured location (optional, avoids geocoding)
	defaultLocation *Location

	httpClient  *http.Client
	httpTimeout time.Duration
	baseURL     string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithPersistentCache attaches a SQLite-backed geocache
func WithPersistentCache(cache *Cache) Option {
	return func(r *Resolver) { r.persistentCache = cache }
}

// WithCoordinates pre-configures coordinates, bypassing geocoding entirely
func WithCoordinates(name string, lat, lon float64) Option {
	return func(r *Resolver) {
		r.defaultLocation = &Location{Name: name, Latitude: lat, Longitude: lon}
	}
}

// WithBaseURL overrides the geocoding endpoint (used in tests)
func WithBaseURL(base string) Option {
	return func(r *Resolver) { r.baseURL = base }
}

// NewResolver creates a new geo resolver
func NewResolver(httpTimeout time.Duration, opts ...Option) *Resolver {
	if httpTimeout == 0 {
		httpTimeout = 10 * time.Second
	}
	r := &Resolver{
		locationCache: make(map[string]*Location),
		httpClient:    &http.Client{},
		httpTimeout:   httpTimeout,
		baseURL:       nominatimURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.defaultLocation != nil {
		log.Info().
			Str("name", r.defaultLocation.Name).
			Float64("lat", r.defaultLocation.Latitude).
			Float64("lon", r.defaultLocation.Longitude).
			Msg("Geo resolver initialized with pre-configured coordinates")
	}
	return r
}

// Resolve returns coordinates for a place name.
// Failed lookups are not cached; the next call retries the network.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Location, error) {
	if r.defaultLocation != nil {
		return r.defaultLocation, nil
	}

	r.mu.RLock()
	cached, ok := r.locationCache[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if r.persistentCache != nil {
		if loc, found := r.persistentCache.Get(name); found {
			r.mu.Lock()
			r.locationCache[name] = loc
			r.mu.Unlock()
			return loc, nil
		}
	}

	loc, err := r.geocode(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.locationCache[name] = loc
	r.mu.Unlock()

	if r.persistentCache != nil {
		r.persistentCache.Put(name, loc)
	}

	return loc, nil
}

// geocode performs a Nominatim lookup with timeout
func (r *Resolver) geocode(ctx context.Context, name string) (*Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.httpTimeout)
	defer cancel()

	apiURL := fmt.Sprintf("%s?q=%s&format=json&limit=1", r.baseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "smartshades/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude in geocoding response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude in geocoding response: %w", err)
	}

	loc := &Location{
		Name:      results[0].DisplayName,
		Latitude:  lat,
		Longitude: lon,
	}

	log.Info().
		Str("query", name).
		Str("resolved", loc.Name).
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("Location geocoded via Nominatim")

	return loc, nil
}
