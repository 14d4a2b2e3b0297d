package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/history"
)

type stubLister struct {
	calls   int
	symbols []history.Symbol
	err     error
}

func (s *stubLister) ListSymbols(context.Context) ([]history.Symbol, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.symbols, nil
}

func TestDirectory_ReusesWithinWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &stubLister{symbols: []history.Symbol{{ID: "gold", Name: "Gold"}}}
	d := NewDirectory(lister, time.Minute)
	d.now = func() time.Time { return now }

	for range 3 {
		got, err := d.ListSymbols(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ID != "gold" {
			t.Fatalf("unexpected symbols: %+v", got)
		}
	}
	if lister.calls != 1 {
		t.Errorf("expected 1 source call, got %d", lister.calls)
	}

	now = now.Add(59 * time.Second)
	d.ListSymbols(context.Background())
	if lister.calls != 1 {
		t.Errorf("expected memo reuse before the window elapses, got %d calls", lister.calls)
	}

	now = now.Add(time.Second)
	d.ListSymbols(context.Background())
	if lister.calls != 2 {
		t.Errorf("expected refresh once the window elapsed, got %d calls", lister.calls)
	}
}

func TestDirectory_ErrorKeepsMemo(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &stubLister{symbols: []history.Symbol{{ID: "gold"}}}
	d := NewDirectory(lister, time.Minute)
	d.now = func() time.Time { return now }

	if _, err := d.ListSymbols(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refreshed := d.LastRefresh()

	now = now.Add(2 * time.Minute)
	lister.err = errors.New("down")
	if _, err := d.ListSymbols(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
	if !d.LastRefresh().Equal(refreshed) {
		t.Error("failed refresh must not move the refresh time")
	}

	lister.err = nil
	lister.symbols = []history.Symbol{{ID: "silver"}}
	got, err := d.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].ID != "silver" {
		t.Errorf("expected refreshed list, got %+v", got)
	}
}

func TestDirectory_ReturnsCopy(t *testing.T) {
	lister := &stubLister{symbols: []history.Symbol{{ID: "gold"}}}
	d := NewDirectory(lister, time.Hour)

	got, _ := d.ListSymbols(context.Background())
	got[0].ID = "mutated"

	again, _ := d.ListSymbols(context.Background())
	if again[0].ID != "gold" {
		t.Errorf("memo was mutated through returned slice: %+v", again)
	}
}
