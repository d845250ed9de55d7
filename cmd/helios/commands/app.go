package commands

import (
	"context"
	"fmt"

	"github.com/wonny/helios/backend/internal/batch"
	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/internal/composition"
	"github.com/wonny/helios/backend/internal/engine"
	"github.com/wonny/helios/backend/internal/marketdata"
	"github.com/wonny/helios/backend/internal/marketdata/kis"
	"github.com/wonny/helios/backend/internal/marketdata/naver"
	"github.com/wonny/helios/backend/internal/marketdata/tickcache"
	"github.com/wonny/helios/backend/internal/performance"
	"github.com/wonny/helios/backend/internal/realtime"
	"github.com/wonny/helios/backend/internal/scheduler"
	"github.com/wonny/helios/backend/internal/scheduler/jobs"
	"github.com/wonny/helios/backend/internal/screening"
	"github.com/wonny/helios/backend/internal/store"
	"github.com/wonny/helios/backend/pkg/config"
	"github.com/wonny/helios/backend/pkg/database"
	"github.com/wonny/helios/backend/pkg/httputil"
	"github.com/wonny/helios/backend/pkg/logger"
	"github.com/wonny/helios/backend/pkg/redis"
)

// app bundles the wired components every command needs
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *database.DB
	redis  *redis.Client
	ticks  *tickcache.Cache

	store       *store.Store
	source      *marketdata.Source
	calendar    *engine.Calendar
	calculator  *engine.Calculator
	screener    *screening.Screener
	composition *composition.Manager
	realtime    *realtime.Calculator
	performance *performance.Aggregator
	tracker     *batch.Tracker
}

// initApp loads config and wires the full dependency graph
func initApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
		redisClient = redis.NewDisabled()
	}
	cache := redis.NewCache(redisClient, "helios")
	limiter := redis.NewRateLimiter(redisClient, "helios")

	httpClient := httputil.New(cfg, log).
		WithRateLimiter(limiter, redis.NaverRateLimit)

	naverClient := naver.NewClient(httpClient, log)
	kisClient := kis.NewClient(cfg.KIS, httpClient, log)
	ticks := tickcache.New(redis.TTLRealtime, log)

	source := marketdata.NewSource(cfg, naverClient, kisClient, ticks, cache, log)

	st := store.New(db.Pool)
	calendar := engine.NewCalendar()

	screener := screening.NewScreener(st.Fundamentals, log)
	manager := composition.NewManager(st.Compositions, log)

	calculator := engine.NewCalculator(
		st.Indexes, st.Compositions, st.History,
		source, screener, manager,
		calendar, log, cfg.Engine.AttributionTolerance,
	)

	var rtCache realtime.Cache
	if redisClient.Enabled() {
		rtCache = realtime.NewRedisCache(cache)
	} else {
		rtCache = realtime.NewMemoryCache(nil)
	}
	rtCalc := realtime.NewCalculator(st.History, st.Compositions, source, rtCache, calendar, log)

	aggregator := performance.NewAggregator(st.Compositions, st.History, source, calendar, log)

	tracker := batch.NewTracker(
		st.Indexes, st.Compositions, st.History, st.Checkpoints,
		calculator, screener, manager,
		calendar, log, cfg.Engine.BatchBudget,
	)

	return &app{
		cfg:         cfg,
		logger:      log,
		db:          db,
		redis:       redisClient,
		ticks:       ticks,
		store:       st,
		source:      source,
		calendar:    calendar,
		calculator:  calculator,
		screener:    screener,
		composition: manager,
		realtime:    rtCalc,
		performance: aggregator,
		tracker:     tracker,
	}, nil
}

// Close releases connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// startTickFeed connects the KIS websocket and subscribes every active
// constituent across all indices. Returns nil when KIS credentials are
// missing or the feed cannot start. 피드 없이도 REST 폴링으로 동작한다.
func (a *app) startTickFeed(ctx context.Context) *kis.WSFeed {
	if a.cfg.KIS.AppKey == "" || a.cfg.KIS.AppSecret == "" {
		return nil
	}

	feed := kis.NewWSFeed(a.cfg.KIS, a.logger, func(quote *contracts.Quote) {
		a.ticks.Update(quote)
	})
	if err := feed.Start(ctx); err != nil {
		a.logger.WithError(err).Warn("Tick feed unavailable, using REST quotes only")
		return nil
	}

	indices, err := a.store.Indexes.List(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Could not list indices for tick subscription")
		return feed
	}

	seen := make(map[string]bool)
	var tickers []string
	for _, idx := range indices {
		comps, err := a.store.Compositions.GetActive(ctx, idx.ID)
		if err != nil {
			continue
		}
		for _, c := range comps {
			if !seen[c.Ticker] {
				seen[c.Ticker] = true
				tickers = append(tickers, c.Ticker)
			}
		}
	}
	feed.Subscribe(tickers)

	return feed
}

// buildScheduler registers all recurring jobs
func (a *app) buildScheduler() *scheduler.Scheduler {
	sched := scheduler.New(a.logger)

	_ = sched.AddJob(jobs.NewIndexUpdateJob(a.tracker, a.logger))
	_ = sched.AddJob(jobs.NewDividendCheckJob(a.store.Indexes, a.store.Checkpoints, a.calculator, a.logger))
	_ = sched.AddJob(jobs.NewTickCleanupJob(a.ticks, a.logger))

	return sched
}
