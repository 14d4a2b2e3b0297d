package newsmaker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ahmethakanbesel/market-harvester/internal/history"
)

// ListSymbols reads the symbol picker on the historical-data landing page.
// It makes a single request; failures are returned to the caller.
func (s *Scraper) ListSymbols(ctx context.Context) ([]history.Symbol, error) {
	doc, err := s.fetchDocument(ctx, s.baseURL+"/historical-data")
	if err != nil {
		return nil, fmt.Errorf("fetch symbol directory: %w", err)
	}

	seen := make(map[string]bool)
	var symbols []history.Symbol
	doc.Find("select[name=symbol] option").Each(func(_ int, opt *goquery.Selection) {
		id := strings.TrimSpace(opt.AttrOr("value", ""))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		name := strings.TrimSpace(opt.Text())
		if name == "" {
			name = id
		}
		symbols = append(symbols, history.Symbol{ID: id, Name: name})
	})

	if len(symbols) == 0 {
		return nil, fmt.Errorf("parse symbol directory: no symbols found")
	}

	slog.Info("retrieved symbol directory", "count", len(symbols))
	return symbols, nil
}
