package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/market-harvester/internal/apperror"
	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/scraper"
)

const (
	DefaultWorkers  = 10
	DefaultCacheTTL = 2 * time.Hour
)

// SymbolHarvester collects the history of one symbol.
type SymbolHarvester interface {
	HarvestSymbol(ctx context.Context, sym history.Symbol, maxRows int) history.SymbolHistory
}

// Publisher stores a finished history snapshot.
type Publisher interface {
	Put(ctx context.Context, h history.SymbolHistory, ttl time.Duration) error
}

// Cycle summarizes one HarvestAll call.
type Cycle struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Symbols    int       `json:"symbols"`
	Harvested  int       `json:"harvested"`
}

// Orchestrator harvests every symbol with at most `workers` symbols in
// flight and publishes each result as soon as it is complete.
type Orchestrator struct {
	symbols   scraper.SymbolLister
	harvester SymbolHarvester
	publisher Publisher
	workers   int
	ttl       time.Duration

	mu        sync.RWMutex
	lastCycle *Cycle
}

func NewOrchestrator(symbols scraper.SymbolLister, harvester SymbolHarvester, publisher Publisher, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		symbols:   symbols,
		harvester: harvester,
		publisher: publisher,
		workers:   DefaultWorkers,
		ttl:       DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type OrchestratorOption func(*Orchestrator)

// WithWorkers sets how many symbols may be harvested at once.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCacheTTL sets the expiry of published histories.
func WithCacheTTL(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.ttl = d }
}

// HarvestAll runs one full cycle and returns how many symbols were
// published. Only symbol discovery failing, or every publish failing, is an
// error; a symbol that yields nothing, fails to publish or panics is logged
// and skipped.
func (o *Orchestrator) HarvestAll(ctx context.Context, maxRows int) (int, error) {
	started := time.Now()

	symbols, err := o.symbols.ListSymbols(ctx)
	if err != nil {
		return 0, apperror.Wrap(apperror.Upstream, "symbol discovery failed", err)
	}
	slog.Info("harvest started", "symbols", len(symbols), "workers", o.workers, "maxRows", maxRows)

	var (
		published atomic.Int64
		attempted atomic.Int64
		errMu     sync.Mutex
		lastErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, sym := range symbols {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic harvesting symbol, skipping", "symbol", sym.ID, "panic", r)
				}
			}()

			h := o.harvester.HarvestSymbol(gctx, sym, maxRows)
			if gctx.Err() != nil {
				// A history cut short by shutdown is never published.
				return nil
			}
			if len(h.Rows) == 0 {
				slog.Warn("no rows harvested, keeping previous entry", "symbol", sym.ID)
				return nil
			}

			attempted.Add(1)
			if err := o.publisher.Put(gctx, h, o.ttl); err != nil {
				slog.Error("error publishing history", "symbol", sym.ID, "error", err)
				errMu.Lock()
				lastErr = err
				errMu.Unlock()
				return nil
			}
			published.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(published.Load()), err
	}
	if err := ctx.Err(); err != nil {
		return int(published.Load()), err
	}

	n := int(published.Load())
	cycle := &Cycle{
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Symbols:    len(symbols),
		Harvested:  n,
	}
	o.mu.Lock()
	o.lastCycle = cycle
	o.mu.Unlock()

	if attempted.Load() > 0 && n == 0 {
		return 0, apperror.Wrap(apperror.Unavailable, "cache store unavailable",
			errors.Join(fmt.Errorf("all %d publishes failed", attempted.Load()), lastErr))
	}

	slog.Info("harvest finished", "symbols", len(symbols), "published", n,
		"duration", cycle.FinishedAt.Sub(cycle.StartedAt).String())
	return n, nil
}

// LastCycle returns the summary of the most recent cycle that got past
// symbol discovery, or nil.
func (o *Orchestrator) LastCycle() *Cycle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastCycle == nil {
		return nil
	}
	c := *o.lastCycle
	return &c
}
