package newsmaker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"
)

var (
	calendarDateHeader = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	figurePrevious     = regexp.MustCompile(`Previous:\s*([^|]*)`)
	figureForecast     = regexp.MustCompile(`Forecast:\s*([^|]*)`)
	figureActual       = regexp.MustCompile(`Actual:\s*([^|]*)`)
)

type CalendarEvent struct {
	Time     string      `json:"time"`
	Currency string      `json:"currency"`
	Impact   string      `json:"impact"`
	Event    null.String `json:"event"`
	Previous null.String `json:"previous"`
	Forecast null.String `json:"forecast"`
	Actual   null.String `json:"actual"`
}

// ScrapeCalendar reads the economic calendar table.
func (s *Scraper) ScrapeCalendar(ctx context.Context) ([]CalendarEvent, error) {
	doc, err := s.fetchWithRetry(ctx, s.baseURL+"/analysis/economic-calendar", requireTable)
	if err != nil {
		return nil, fmt.Errorf("scrape calendar: %w", err)
	}
	return parseCalendar(doc), nil
}

func parseCalendar(doc *goquery.Document) []CalendarEvent {
	events := []CalendarEvent{}
	doc.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 4 {
			return
		}

		ev := CalendarEvent{
			Time:     strings.TrimSpace(tds.Eq(0).Text()),
			Currency: strings.TrimSpace(tds.Eq(1).Text()),
			Impact:   strings.TrimSpace(tds.Eq(2).Find("span").First().Text()),
		}
		lines := cellLines(tds.Eq(3))
		raw := strings.Join(lines, "\n")

		if ev.Time == "" || ev.Currency == "" || ev.Impact == "" || raw == "" ||
			raw == "-" || ev.Currency == "-" || calendarDateHeader.MatchString(raw) {
			return
		}

		ev.Event = null.NewString(lines[0], lines[0] != "")
		if len(lines) > 1 {
			figures := lines[1]
			ev.Previous = null.StringFrom(figure(figurePrevious, figures))
			ev.Forecast = null.StringFrom(figure(figureForecast, figures))
			ev.Actual = null.StringFrom(figure(figureActual, figures))
		}
		events = append(events, ev)
	})
	return events
}

// cellLines returns the visible lines of a cell, treating <br> and block
// children as line breaks.
func cellLines(td *goquery.Selection) []string {
	td.Find("br").ReplaceWithHtml("\n")

	var texts []string
	if blocks := td.ChildrenFiltered("div, p"); blocks.Length() > 0 {
		blocks.Each(func(_ int, b *goquery.Selection) {
			texts = append(texts, b.Text())
		})
	} else {
		texts = append(texts, td.Text())
	}

	var lines []string
	for _, t := range texts {
		for _, l := range strings.Split(t, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}
	return lines
}

func figure(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "-"
	}
	return strings.TrimSpace(m[1])
}
