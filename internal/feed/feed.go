// Package feed keeps the latest news and calendar scrapes in memory.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/market-harvester/internal/scraper/newsmaker"
)

// Snapshot is the last successful result of a list scrape.
type Snapshot[T any] struct {
	name string
	now  func() time.Time

	mu        sync.RWMutex
	items     []T
	updatedAt time.Time
}

func newSnapshot[T any](name string) *Snapshot[T] {
	return &Snapshot[T]{name: name, now: time.Now}
}

// Refresh replaces the snapshot with the result of fetch. A failed or empty
// fetch keeps the previous snapshot.
func (s *Snapshot[T]) Refresh(ctx context.Context, fetch func(context.Context) ([]T, error)) error {
	items, err := fetch(ctx)
	if err != nil {
		slog.Error("error refreshing feed", "feed", s.name, "error", err)
		return err
	}
	if len(items) == 0 {
		slog.Warn("feed refresh returned nothing, keeping previous snapshot", "feed", s.name)
		return nil
	}

	s.mu.Lock()
	s.items = items
	s.updatedAt = s.now().UTC()
	s.mu.Unlock()

	slog.Info("feed refreshed", "feed", s.name, "items", len(items))
	return nil
}

// Items returns a copy of the snapshot and when it was taken. The time is
// zero until the first successful refresh.
func (s *Snapshot[T]) Items() ([]T, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T{}, s.items...), s.updatedAt
}

// Source scrapes the news listing and the economic calendar.
type Source interface {
	ScrapeNews(ctx context.Context) ([]newsmaker.NewsItem, error)
	ScrapeCalendar(ctx context.Context) ([]newsmaker.CalendarEvent, error)
}

type Service struct {
	source   Source
	News     *Snapshot[newsmaker.NewsItem]
	Calendar *Snapshot[newsmaker.CalendarEvent]
}

func NewService(source Source) *Service {
	return &Service{
		source:   source,
		News:     newSnapshot[newsmaker.NewsItem]("news"),
		Calendar: newSnapshot[newsmaker.CalendarEvent]("calendar"),
	}
}

func (s *Service) RefreshNews(ctx context.Context) error {
	return s.News.Refresh(ctx, s.source.ScrapeNews)
}

func (s *Service) RefreshCalendar(ctx context.Context) error {
	return s.Calendar.Refresh(ctx, s.source.ScrapeCalendar)
}

// RefreshAll refreshes both feeds concurrently and returns the first error.
// One feed failing does not stop the other.
func (s *Service) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.RefreshNews(ctx) })
	g.Go(func() error { return s.RefreshCalendar(ctx) })
	return g.Wait()
}
