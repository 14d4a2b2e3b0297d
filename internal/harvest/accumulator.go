// Package harvest drives the multi-symbol history harvest: it discovers
// symbols, pages through each symbol's history and publishes the result.
package harvest

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/scraper"
)

const (
	DefaultPageSize  = 50
	DefaultPageDelay = 500 * time.Millisecond
	// MaxPages bounds the pages fetched for one symbol regardless of how
	// many rows they produced.
	MaxPages = 500
	// MaxEmptyPages is how many consecutive failed pages end a symbol.
	MaxEmptyPages = 3
)

// Accumulator pages through a single symbol's history.
type Accumulator struct {
	fetcher   scraper.PageFetcher
	pageSize  int
	pageDelay time.Duration
	now       func() time.Time
}

func NewAccumulator(fetcher scraper.PageFetcher, opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		fetcher:   fetcher,
		pageSize:  DefaultPageSize,
		pageDelay: DefaultPageDelay,
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type AccumulatorOption func(*Accumulator)

// WithPageSize sets the number of rows a full page holds.
func WithPageSize(n int) AccumulatorOption {
	return func(a *Accumulator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithPageDelay sets the pause between page fetches.
func WithPageDelay(d time.Duration) AccumulatorOption {
	return func(a *Accumulator) { a.pageDelay = d }
}

// HarvestSymbol fetches pages of sym at increasing offsets until one of the
// following holds, checked in this order on every iteration:
//
//  1. maxRows rows were collected (maxRows <= 0 means no limit); the last
//     batch is truncated so exactly maxRows are kept.
//  2. MaxPages pages were fetched.
//  3. The source ran out: a page came back empty, a page was shorter than
//     the page size, or MaxEmptyPages fetches in a row failed.
//
// A failed page is fetched again at the same offset. HarvestSymbol never
// fails; a symbol that yields nothing gets an empty history.
func (a *Accumulator) HarvestSymbol(ctx context.Context, sym history.Symbol, maxRows int) history.SymbolHistory {
	var (
		rows   []history.Row
		offset int
		empty  int
		pages  int
		reason string
	)

	for {
		if maxRows > 0 && len(rows) >= maxRows {
			reason = "row budget reached"
			break
		}
		if pages >= MaxPages {
			reason = "page limit reached"
			break
		}
		if ctx.Err() != nil {
			reason = "cancelled"
			break
		}

		page := a.fetcher.FetchPage(ctx, sym.ID, offset)
		pages++

		stop := false
		switch page.Status {
		case scraper.PageNoMoreData:
			reason, stop = "no more data", true
		case scraper.PageFetchFailed:
			empty++
			slog.Warn("history page failed", "symbol", sym.ID, "offset", offset,
				"consecutive", empty, "error", page.Err)
			if empty >= MaxEmptyPages {
				reason, stop = "too many failed pages", true
			}
		default:
			empty = 0
			rows = append(rows, page.Rows...)
			if maxRows > 0 && len(rows) > maxRows {
				rows = rows[:maxRows]
			}
			if page.Size() < a.pageSize {
				reason, stop = "short page", true
			}
			offset += a.pageSize
		}
		if stop {
			break
		}

		if !a.pause(ctx) {
			reason = "cancelled"
			break
		}
	}

	slog.Info("harvested symbol", "symbol", sym.ID, "rows", len(rows), "pages", pages, "reason", reason)
	return history.SymbolHistory{
		Symbol:    sym,
		Rows:      rows,
		FetchedAt: a.now().UTC(),
	}
}

// pause waits out the politeness delay. It returns false if ctx ended first.
func (a *Accumulator) pause(ctx context.Context) bool {
	if a.pageDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(a.pageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
