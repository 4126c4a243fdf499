package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Kalatco/smartshades/internal/actions"
	"github.com/Kalatco/smartshades/internal/config"
	"github.com/Kalatco/smartshades/internal/db"
	"github.com/Kalatco/smartshades/internal/eventbus"
	"github.com/Kalatco/smartshades/internal/events/schedule"
	"github.com/Kalatco/smartshades/internal/geo"
	"github.com/Kalatco/smartshades/internal/hubitat"
	"github.com/Kalatco/smartshades/internal/ledger"
	"github.com/Kalatco/smartshades/internal/scheduler"
	"github.com/Kalatco/smartshades/internal/solar"
	"github.com/Kalatco/smartshades/internal/storage"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Solar pipeline
	Resolver *geo.Resolver
	Engine   *solar.Engine

	// Command system
	Registry  *actions.Registry
	Invoker   *actions.Invoker
	Hubitat   *hubitat.Client
	Positions *storage.PositionStore

	// High-level services
	Scheduler *scheduler.Scheduler
	Agent     *Agent
	Health    *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Geo resolver: explicit coordinates bypass geocoding entirely
	geoOpts := []geo.Option{geo.WithPersistentCache(geo.NewCache(database.DB))}
	if cfg.Location.HasCoordinates() {
		geoOpts = append(geoOpts, geo.WithCoordinates(cfg.Location.City, cfg.Location.Lat, cfg.Location.Lon))
	} else {
		log.Warn().Msg("No lat/lon configured, will use Nominatim geocoding (cached in SQLite)")
	}
	s.Resolver = geo.NewResolver(cfg.Location.HTTPTimeout.Duration(), geoOpts...)

	s.Engine = solar.NewEngine(solar.SiteSpec{
		City:      cfg.Location.City,
		Latitude:  cfg.Location.Lat,
		Longitude: cfg.Location.Lon,
		Timezone:  cfg.Location.Timezone,
		Altitude:  cfg.Location.Altitude,
	}, s.Resolver, solar.NewSnapshotCache())

	s.Registry = actions.NewRegistry()
	s.Invoker = actions.NewInvoker(s.Registry, s.Ledger)

	s.Hubitat = hubitat.NewClient(
		cfg.Hubitat.URL,
		cfg.Hubitat.MakerAPIID,
		cfg.Hubitat.AccessToken,
		cfg.Hubitat.Timeout.Duration(),
		cfg.Hubitat.MaxRetries,
	)
	s.Positions = storage.NewPositionStore(database.DB)

	s.Scheduler = scheduler.New(
		scheduler.NewStore(),
		scheduler.NewTimeResolver(s.Engine),
		s.Bus,
		s.Ledger,
		cfg.Location.Timezone,
		cfg.Scheduler.GetMisfireGrace(),
	)

	s.Agent = NewAgent(cfg.Rooms, s.Engine, s.Scheduler, s.Hubitat, s.Positions)

	if err := s.Registry.Register(CallbackShadeCommand, s.Agent.ExecuteCommand); err != nil {
		s.Close()
		return nil, err
	}

	s.Health = NewHealthService(cfg)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Schedule firings go through the event bus to the invoker
	schedule.RegisterHandler(ctx, s.Bus, s.Invoker, s.cfg.Scheduler.GetMaxConcurrentFirings())

	go func() {
		if err := s.Scheduler.Run(ctx); err != nil {
			onFatalError(err)
		}
	}()

	go s.runLedgerCleanup(ctx)

	s.Health.Start(ctx)

	return nil
}

// runLedgerCleanup periodically applies the ledger retention policy
func (s *Services) runLedgerCleanup(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Ledger cleanup completed")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	if s.Bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		s.Bus.Close(shutdownCtx)
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
