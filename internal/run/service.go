package run

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/apperror"
	"github.com/ahmethakanbesel/market-harvester/internal/harvest"
)

// Harvester runs one harvest cycle and reports how many symbols it published.
type Harvester interface {
	HarvestAll(ctx context.Context, maxRows int) (int, error)
	LastCycle() *harvest.Cycle
}

// Service records every harvest cycle and allows only one at a time.
type Service struct {
	repo      Repository
	harvester Harvester
	busy      atomic.Bool
}

func NewService(repo Repository, harvester Harvester) *Service {
	return &Service{repo: repo, harvester: harvester}
}

// RecoverStale fails runs a crashed process left in the running state.
func (s *Service) RecoverStale(ctx context.Context) error {
	n, err := s.repo.FailStale(ctx, "interrupted by shutdown")
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("marked interrupted runs as failed", "count", n)
	}
	return nil
}

// Execute runs a harvest cycle synchronously and returns its ledger entry.
// A cycle already in flight yields a Conflict error.
func (s *Service) Execute(ctx context.Context, req TriggerRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, apperror.New(apperror.Conflict, "a harvest is already running")
	}
	defer s.busy.Store(false)

	r := &Run{
		Trigger:   req.Trigger,
		Status:    StatusRunning,
		MaxRows:   req.MaxRows,
		StartedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	slog.Info("run started", "id", r.ID, "trigger", r.Trigger, "maxRows", r.MaxRows)

	n, harvestErr := s.harvester.HarvestAll(ctx, req.MaxRows)

	finished := time.Now().UTC()
	r.FinishedAt = &finished
	r.SymbolsHarvested = n
	if c := s.harvester.LastCycle(); c != nil && !c.StartedAt.Before(r.StartedAt) {
		r.SymbolsTotal = c.Symbols
	}
	if harvestErr != nil {
		r.Status = StatusFailed
		r.Error = harvestErr.Error()
	} else {
		r.Status = StatusCompleted
	}

	// The ledger update must land even when the trigger's context ended.
	if err := s.repo.Update(context.WithoutCancel(ctx), r); err != nil {
		slog.Error("error updating run", "id", r.ID, "error", err)
		if harvestErr == nil {
			return r, err
		}
	}

	if harvestErr != nil {
		slog.Error("run failed", "id", r.ID, "error", harvestErr)
		return r, harvestErr
	}
	slog.Info("run completed", "id", r.ID, "symbols", r.SymbolsTotal, "harvested", n,
		"duration", finished.Sub(r.StartedAt).String())
	return r, nil
}

// Running reports whether a cycle is in flight.
func (s *Service) Running() bool {
	return s.busy.Load()
}

func (s *Service) Get(ctx context.Context, req GetRunRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, req.ID)
}

func (s *Service) List(ctx context.Context, req ListRunsRequest) ([]Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	runs, err := s.repo.List(ctx, req.Status, req.Limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []Run{}
	}
	return runs, nil
}

// IsConflict reports whether err is the error Execute returns while another
// cycle runs.
func IsConflict(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code() == apperror.Conflict
}
