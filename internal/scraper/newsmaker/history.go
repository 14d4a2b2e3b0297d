package newsmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/numeric"
	"github.com/ahmethakanbesel/market-harvester/internal/scraper"
)

// minObservationCells is date plus open, high, low, close.
const minObservationCells = 5

var errNoTable = errors.New("response has no history table")

func (s *Scraper) historyURL(symbolID string, offset int) string {
	return fmt.Sprintf("%s/historical-data/%s?start=%d", s.baseURL, url.PathEscape(symbolID), offset)
}

// FetchPage retrieves the history table of symbolID starting at offset.
// Transient failures are retried; once retries run out the page is reported
// as PageFetchFailed instead of returning an error.
func (s *Scraper) FetchPage(ctx context.Context, symbolID string, offset int) scraper.Page {
	reqURL := s.historyURL(symbolID, offset)

	doc, err := s.fetchWithRetry(ctx, reqURL, requireTable)
	if err != nil {
		slog.Error("error retrieving history page", "symbol", symbolID, "offset", offset, "error", err)
		return scraper.Page{Status: scraper.PageFetchFailed, Err: err}
	}

	rows, scanned := parseHistoryTable(doc.Find("table").First())
	if scanned == 0 {
		return scraper.Page{Status: scraper.PageNoMoreData}
	}

	slog.Debug("retrieved history page", "symbol", symbolID, "offset", offset,
		"rows", len(rows), "scanned", scanned)
	return scraper.Page{Status: scraper.PageOK, Rows: rows, Scanned: scanned}
}

func requireTable(doc *goquery.Document) error {
	if doc.Find("table").Length() == 0 {
		return errNoTable
	}
	return nil
}

// parseHistoryTable turns body rows into history rows, dropping those that
// are neither a priced observation nor an annotation. It also returns how
// many data rows the table held.
func parseHistoryTable(table *goquery.Selection) ([]history.Row, int) {
	var (
		rows     []history.Row
		scanned  int
		lastDate string
	)
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return // header row
		}
		scanned++

		row, ok := parseRow(cells, lastDate)
		if !ok {
			return
		}
		if row.Date != "" {
			lastDate = row.Date
		}
		rows = append(rows, row)
	})
	return rows, scanned
}

// parseRow classifies one table row. A row containing a cell that spans
// several columns is an annotation; everything else must look like
// date, open, high, low, close[, change, volume, open interest].
func parseRow(cells *goquery.Selection, prevDate string) (history.Row, bool) {
	texts := make([]string, 0, cells.Length())
	wide := -1
	cells.Each(func(i int, td *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(td.Text()))
		if span, err := strconv.Atoi(td.AttrOr("colspan", "1")); err == nil && span > 1 && wide < 0 {
			wide = i
		}
	})

	if wide >= 0 {
		note := texts[wide]
		if note == "" {
			return history.Row{}, false
		}
		date := prevDate
		for i, t := range texts {
			if i != wide && t != "" {
				date = t
				break
			}
		}
		return history.Annotation(date, note), true
	}

	if len(texts) < minObservationCells || texts[0] == "" {
		return history.Row{}, false
	}

	row := history.Row{
		Kind:  history.KindObservation,
		Date:  texts[0],
		Open:  numeric.Parse(texts[1]),
		High:  numeric.Parse(texts[2]),
		Low:   numeric.Parse(texts[3]),
		Close: numeric.Parse(texts[4]),
	}
	if len(texts) > 5 {
		row.Change = numeric.Text(texts[5])
	}
	if len(texts) > 6 {
		row.Volume = numeric.Parse(texts[6])
	}
	if len(texts) > 7 {
		row.OpenInterest = numeric.Parse(texts[7])
	}

	if !row.HasPrice() {
		return history.Row{}, false
	}
	return row, true
}
