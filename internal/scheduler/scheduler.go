// Package scheduler runs the harvest cycle and the feed refresh on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/ahmethakanbesel/market-harvester/internal/run"
)

const (
	DefaultHarvestSchedule = "@hourly"
	DefaultFeedSchedule    = "@every 30m"
)

// Runner executes one recorded harvest cycle.
type Runner interface {
	Execute(ctx context.Context, req run.TriggerRequest) (*run.Run, error)
}

// FeedRefresher reloads the news and calendar snapshots.
type FeedRefresher interface {
	RefreshAll(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	feeds   FeedRefresher
	maxRows int

	mu  sync.Mutex
	ctx context.Context
}

func New(runner Runner, feeds FeedRefresher, maxRows int) *Scheduler {
	logger := slogAdapter{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runner:  runner,
		feeds:   feeds,
		maxRows: maxRows,
		ctx:     context.Background(),
	}
}

// Register adds the harvest and feed jobs. An empty schedule disables that job.
func (s *Scheduler) Register(harvestSchedule, feedSchedule string) error {
	if harvestSchedule != "" {
		if _, err := s.cron.AddFunc(harvestSchedule, s.harvest); err != nil {
			return fmt.Errorf("register harvest job %q: %w", harvestSchedule, err)
		}
	}
	if feedSchedule != "" {
		if _, err := s.cron.AddFunc(feedSchedule, s.refreshFeeds); err != nil {
			return fmt.Errorf("register feed job %q: %w", feedSchedule, err)
		}
	}
	return nil
}

// Start runs the registered jobs in the background until Stop. Jobs see ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new jobs from starting and waits for running ones.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunNow refreshes the feeds and runs one harvest cycle immediately,
// blocking until both finish.
func (s *Scheduler) RunNow(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.feeds.RefreshAll(ctx); err != nil {
			slog.Error("startup feed refresh failed", "error", err)
		}
	}()
	s.execute(ctx, run.TriggerStartup)
	wg.Wait()
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) harvest() {
	s.execute(s.jobContext(), run.TriggerSchedule)
}

func (s *Scheduler) refreshFeeds() {
	if err := s.feeds.RefreshAll(s.jobContext()); err != nil {
		slog.Error("scheduled feed refresh failed", "error", err)
	}
}

func (s *Scheduler) execute(ctx context.Context, trigger run.Trigger) {
	_, err := s.runner.Execute(ctx, run.TriggerRequest{Trigger: trigger, MaxRows: s.maxRows})
	switch {
	case run.IsConflict(err):
		slog.Info("harvest already running, skipping", "trigger", trigger)
	case err != nil:
		slog.Error("harvest cycle failed", "trigger", trigger, "error", err)
	}
}

// slogAdapter routes cron's own logging through slog.
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
