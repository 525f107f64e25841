// Package scheduler polls Challonge for brackets that an organizer has to
// start by hand and pulls their matches once they run.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/service"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	CronSpec    string // e.g. "@every 1m"
	Concurrency int
	Timeout     time.Duration // per tournament
}

type Lister interface {
	ListAwaitingManualStart(ctx context.Context) ([]bracket.Tournament, error)
}

type Refresher interface {
	RefreshStatus(ctx context.Context, tournamentID uuid.UUID) (*service.RefreshResult, error)
}

// Notifier is told about every tournament whose matches were pulled by the poller.
type Notifier interface {
	BracketStarted(ctx context.Context, t bracket.Tournament, res *service.RefreshResult)
}

type Poller struct {
	c         *cron.Cron
	config    Config
	lister    Lister
	refresher Refresher
	notifier  Notifier
	logger    *slog.Logger
}

func New(cfg Config, lister Lister, refresher Refresher, notifier Notifier, logger *slog.Logger) (*Poller, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	p := &Poller{
		c: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		config:    cfg,
		lister:    lister,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger,
	}
	_, err := p.c.AddFunc(cfg.CronSpec, func() {
		p.RunOnce(context.Background())
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Poller) Start() {
	p.logger.Info("starting status poller", "cron", p.config.CronSpec, "concurrency", p.config.Concurrency)
	p.c.Start()
}

// Stop waits for a running tick to finish or ctx to expire.
func (p *Poller) Stop(ctx context.Context) {
	select {
	case <-p.c.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce refreshes every tournament awaiting a manual start and returns how
// many of them were synchronized. A failing tournament does not stop the others.
func (p *Poller) RunOnce(ctx context.Context) int {
	tournaments, err := p.lister.ListAwaitingManualStart(ctx)
	if err != nil {
		p.logger.Error("list tournaments awaiting start", "error", err)
		return 0
	}
	if len(tournaments) == 0 {
		return 0
	}

	var synced atomic.Int32
	var g errgroup.Group
	g.SetLimit(p.config.Concurrency)

	for _, t := range tournaments {
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()

			res, err := p.refresher.RefreshStatus(tctx, t.ID)
			if err != nil {
				p.logger.Warn("status refresh failed", "tournament_id", t.ID, "error", err)
				return nil
			}
			if !res.Synced() {
				return nil
			}

			synced.Add(1)
			if p.notifier != nil {
				p.notifier.BracketStarted(ctx, t, res)
			}
			return nil
		})
	}
	g.Wait()

	p.logger.Info("status poll finished", "checked", len(tournaments), "synced", synced.Load())
	return int(synced.Load())
}
