package scraper

import (
	"context"

	"github.com/ahmethakanbesel/market-harvester/internal/history"
)

// PageStatus tells a caller why a page came back the way it did, so an
// empty page from an exhausted source is not confused with a failed fetch.
type PageStatus int

const (
	PageOK PageStatus = iota
	// PageNoMoreData means the page was retrieved and holds no rows.
	PageNoMoreData
	// PageFetchFailed means every retry attempt failed; Err holds the last
	// failure.
	PageFetchFailed
)

func (s PageStatus) String() string {
	switch s {
	case PageOK:
		return "ok"
	case PageNoMoreData:
		return "no_more_data"
	case PageFetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// Page is one fixed-size batch of history rows for a symbol at an offset.
type Page struct {
	Status PageStatus
	Rows   []history.Row
	// Scanned counts the table rows seen before invalid ones were dropped.
	Scanned int
	Err     error
}

// Size is the number of rows the source returned for the page, valid or
// not. It is what decides whether a page was short.
func (p Page) Size() int {
	return max(p.Scanned, len(p.Rows))
}

// PageFetcher retrieves one page of a symbol's history. Implementations
// retry transient failures themselves and never return an error.
type PageFetcher interface {
	FetchPage(ctx context.Context, symbolID string, offset int) Page
}

// SymbolLister discovers the symbols the source publishes history for.
type SymbolLister interface {
	ListSymbols(ctx context.Context) ([]history.Symbol, error)
}
