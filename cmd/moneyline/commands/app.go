package commands

import (
	"context"
	"fmt"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/engine"
	"github.com/KevinGoltermann/moneyline-sub000/internal/gamefeed"
	"github.com/KevinGoltermann/moneyline-sub000/internal/metrics"
	"github.com/KevinGoltermann/moneyline-sub000/internal/publicread"
	"github.com/KevinGoltermann/moneyline-sub000/internal/realtime"
	"github.com/KevinGoltermann/moneyline-sub000/internal/recommender"
	"github.com/KevinGoltermann/moneyline-sub000/internal/scheduler"
	"github.com/KevinGoltermann/moneyline-sub000/internal/scheduler/jobs"
	"github.com/KevinGoltermann/moneyline-sub000/internal/store"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/config"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/database"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/httputil"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/redis"
)

// app holds the wired process dependencies shared by the commands
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics

	db     *database.DB // nil with the memory store
	redis  *redis.Client
	store  contracts.PickStore
	engine *engine.Engine

	public *publicread.Service
	hub    *realtime.Hub
}

// newApp wires config → logger → store → feed → recommender → engine.
// Listeners for the public cache and the live feed are subscribed here.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	// 1. Logger & metrics
	log := logger.New(cfg)
	m := metrics.New()

	a := &app{cfg: cfg, log: log, metrics: m}

	// 2. Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("Using in-memory store; picks are lost on restart")
		a.store = store.NewMemory()
	default:
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.store = store.NewRepository(db.Pool)
		log.Info("Connected to database")
	}

	// 3. Redis (no-op client when disabled)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		// the public cache and the limiter degrade without redis
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc, _ = redis.New(ctx, &config.Config{})
	}
	a.redis = rc

	// 4. External clients
	httpClient := httputil.New(log)
	feed := gamefeed.NewFeed(cfg, httpClient, log, m)

	var rec contracts.Recommender
	switch cfg.Recommender.Mode {
	case "remote":
		// the engine's caller owns retries; a second layer would blow the budget
		rec = recommender.NewRemote(httputil.New(log).DisableRetry(), log, cfg.Recommender.URL, cfg.Recommender.Timeout)
	default:
		rec = recommender.NewHeuristic(log)
	}

	// 5. Engine
	a.engine = engine.New(a.store, feed, rec, engine.Options{
		Constraints: contracts.Constraints{
			MinConfidence: cfg.Picks.MinConfidence,
			MinOdds:       cfg.Picks.MinOdds,
			MaxOdds:       cfg.Picks.MaxOdds,
			MaxRisk:       contracts.RiskLevel(cfg.Picks.MaxRisk),
		},
		Location:      cfg.Location(),
		MaxFutureDays: cfg.Picks.MaxFutureDays,
	}, log, m)

	// 6. Read side and live feed
	var cache *redis.Cache
	if rc.Enabled() {
		cache = redis.NewCache(rc, "moneyline")
	}
	a.public = publicread.NewService(a.store, cache, cfg.PublicCacheTTL, cfg.Location(), log)
	a.hub = realtime.NewHub(log, m)

	a.engine.Subscribe(a.public.Listener())
	a.engine.Subscribe(a.hub.Listener())

	log.WithFields(map[string]interface{}{
		"env":         cfg.Env,
		"store":       cfg.StoreDriver,
		"recommender": cfg.Recommender.Mode,
		"timezone":    cfg.Location().String(),
	}).Info("Application wired")

	return a, nil
}

// newScheduler registers the lifecycle jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, a.metrics, scheduler.DefaultOptions(a.cfg.Location()))

	if err := sched.AddJob(jobs.NewDailyPickJob(a.engine, a.cfg.Schedule.DailyPick, a.cfg.Recommender.ScheduledTimeout, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewPerformanceRefreshJob(a.store, a.cfg.Schedule.PerformanceRefresh, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}

// migrate applies pending schema migrations; no-op on the memory store
func (a *app) migrate(ctx context.Context) ([]string, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Migrate(ctx)
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
