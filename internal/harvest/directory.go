package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/scraper"
)

const DefaultDirectoryTTL = 10 * time.Minute

// Directory memoizes the symbol list of a SymbolLister. A memoized list is
// reused while it is younger than the staleness window.
type Directory struct {
	lister scraper.SymbolLister
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	symbols     []history.Symbol
	lastRefresh time.Time
}

func NewDirectory(lister scraper.SymbolLister, window time.Duration) *Directory {
	return &Directory{
		lister: lister,
		window: window,
		now:    time.Now,
	}
}

// ListSymbols returns the memoized symbols, refreshing them from the source
// once the window has elapsed. A failed refresh is returned as is and keeps
// the previous memo in place.
func (d *Directory) ListSymbols(ctx context.Context) ([]history.Symbol, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastRefresh.IsZero() && d.now().Sub(d.lastRefresh) < d.window {
		return d.snapshot(), nil
	}

	symbols, err := d.lister.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	d.symbols = symbols
	d.lastRefresh = d.now()
	return d.snapshot(), nil
}

// LastRefresh reports when the memo was last filled.
func (d *Directory) LastRefresh() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRefresh
}

func (d *Directory) snapshot() []history.Symbol {
	return append([]history.Symbol(nil), d.symbols...)
}
