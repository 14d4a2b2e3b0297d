package newsmaker

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultNewsPages = 10
	newsPageSize     = 10
)

var defaultNewsCategories = []string{
	"economic-news/all-economic-news",
	"economic-news/fiscal-moneter",
	"market-news/index/all-index",
	"market-news/commodity/all-commodity",
	"market-news/currencies/all-currencies",
	"analysis/analysis-market",
	"analysis/analysis-opinion",
}

var newsDate = regexp.MustCompile(`\d{1,2} \w+ \d{4}`)

type NewsItem struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Image    string `json:"image"`
	Category string `json:"category"`
	Date     string `json:"date"`
	Summary  string `json:"summary"`
}

// ScrapeNews walks every configured category listing and returns the items
// found, de-duplicated by link in first-seen order. Pages that fail are
// skipped; an error is returned only when no page could be read.
func (s *Scraper) ScrapeNews(ctx context.Context) ([]NewsItem, error) {
	var (
		items   []NewsItem
		seen    = make(map[string]bool)
		okPage  int
		lastErr error
	)

	for _, cat := range s.newsCategories {
		for i := range s.newsPages {
			reqURL := fmt.Sprintf("%s/%s?start=%d", s.baseURL, cat, i*newsPageSize)

			doc, err := s.fetchDocument(ctx, reqURL)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				slog.Warn("error retrieving news page", "category", cat, "page", i, "error", err)
				lastErr = err
				continue
			}
			okPage++

			for _, item := range s.parseNews(doc) {
				if seen[item.Link] {
					continue
				}
				seen[item.Link] = true
				items = append(items, item)
			}
		}
	}

	if okPage == 0 && lastErr != nil {
		return nil, fmt.Errorf("scrape news: %w", lastErr)
	}
	return items, nil
}

func (s *Scraper) parseNews(doc *goquery.Document) []NewsItem {
	var items []NewsItem
	doc.Find("div.single-news-item").Each(func(_ int, el *goquery.Selection) {
		a := el.Find("h5.card-title a").First()
		item := NewsItem{
			Title:    strings.TrimSpace(a.Text()),
			Link:     s.absURL(a.AttrOr("href", "")),
			Image:    s.absURL(el.Find("img.card-img").First().AttrOr("src", "")),
			Category: strings.TrimSpace(el.Find("span.category-label").First().Text()),
		}

		el.Find("p.card-text").Each(func(_ int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if newsDate.MatchString(text) {
				item.Date = text
			} else {
				item.Summary = text
			}
		})

		if item.Title == "" || item.Link == "" || item.Summary == "" {
			return
		}
		items = append(items, item)
	})
	return items
}
