// Package bootstrap assembles the substitution engine from configuration. It
// is shared by the HTTP server and the command line tool.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute/internal/handler"
	"github.com/noah-isme/sma-substitute/internal/models"
	"github.com/noah-isme/sma-substitute/internal/repository"
	"github.com/noah-isme/sma-substitute/internal/service"
	"github.com/noah-isme/sma-substitute/pkg/config"
	"github.com/noah-isme/sma-substitute/pkg/database"
	"github.com/noah-isme/sma-substitute/pkg/lock"
	"github.com/noah-isme/sma-substitute/pkg/names"
	"github.com/noah-isme/sma-substitute/pkg/storage"
)

// Store is everything the services need from an assignment backend.
type Store interface {
	LoadRecord(ctx context.Context, date string) (*models.AssignmentRecord, error)
	LoadAssignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error)
	SaveAssignments(ctx context.Context, record models.AssignmentRecord, history models.RunHistory) error
	LoadAbsences(ctx context.Context, date string) ([]models.Absence, error)
	SaveAbsences(ctx context.Context, date string, absences []models.Absence) error
	ListRuns(ctx context.Context, date string) ([]models.RunHistory, error)
}

// App holds the wired services.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *service.MetricsService
	Store         Store
	Substitutions *service.SubstitutionService
	Verifier      *service.VerificationService
	Exports       *service.ExportService
	Checks        map[string]handler.ReadinessCheck

	closers []func() error
}

// New builds the application for cfg. Callers must Close it.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: service.NewMetricsService(),
		Checks:  map[string]handler.ReadinessCheck{},
	}

	store, err := app.newStore(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = store

	locker, err := app.newLocker()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	validate := validator.New()
	sources := repository.NewSourceRepository(cfg.Sources, validate)
	engineCfg := service.SubstitutionServiceConfig{
		Policy:   service.PolicyFromConfig(cfg.Policy),
		Matching: matchConfig(cfg.Matching),
	}

	app.Substitutions = service.NewSubstitutionService(sources, store, locker, app.Metrics, validate, log, engineCfg)
	app.Verifier = service.NewVerificationService(sources, store, log, engineCfg)
	app.Exports = service.NewExportService(store, nil, nil, validate, log)

	log.Info("substitution engine ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("lock", cfg.Lock.Driver),
		zap.Int("class_slots", len(engineCfg.Policy.ClassSlots)),
	)
	return app, nil
}

func (a *App) newStore(ctx context.Context) (Store, error) {
	switch a.Config.Store.Driver {
	case config.StoreDriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := database.NewPostgres(connectCtx, a.Config.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Checks["database"] = db.PingContext
		return repository.NewAssignmentRepository(db, a.Metrics), nil
	case config.StoreDriverFile, "":
		local, err := storage.NewLocalStorage(a.Config.Store.Dir)
		if err != nil {
			return nil, err
		}
		return repository.NewAssignmentFileRepository(local, a.Metrics, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
}

func (a *App) newLocker() (lock.Locker, error) {
	switch a.Config.Lock.Driver {
	case config.LockDriverRedis:
		client, err := lock.NewRedis(a.Config.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, client) }
		return lock.NewRedisLocker(client, a.Config.Lock.TTL, a.Config.Lock.Wait), nil
	case config.LockDriverMemory, "":
		return lock.NewMemoryLocker(a.Config.Lock.Wait), nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", a.Config.Lock.Driver)
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func matchConfig(cfg config.MatchingConfig) names.MatchConfig {
	match := names.DefaultMatchConfig()
	if cfg.Threshold > 0 {
		match.Threshold = cfg.Threshold
	}
	return match
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
