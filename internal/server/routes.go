package server

import (
	"net/http"

	"github.com/ahmethakanbesel/market-harvester/internal/feed"
	"github.com/ahmethakanbesel/market-harvester/internal/harvest"
	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/run"
	"github.com/ahmethakanbesel/market-harvester/internal/scraper"
)

// CycleReporter exposes the summary of the last harvest cycle.
type CycleReporter interface {
	LastCycle() *harvest.Cycle
}

// Services are the handles the HTTP layer reads from and triggers.
type Services struct {
	History *history.Service
	Runs    *run.Service
	Feeds   *feed.Service
	Symbols scraper.SymbolLister
	Cycles  CycleReporter
	// MaxRows is the per-symbol row budget used when a trigger omits one.
	MaxRows int
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(svcs Services) http.Handler {
	return newMux(svcs)
}

func newMux(svcs Services) http.Handler {
	h := &handler{svcs: svcs}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /api/v1/harvest", h.triggerHarvest)
	mux.HandleFunc("GET /api/v1/historical", h.listHistory)
	mux.HandleFunc("GET /api/v1/historical/{symbol}", h.getHistory)
	mux.HandleFunc("DELETE /api/v1/cache", h.invalidateCache)
	mux.HandleFunc("GET /api/v1/symbols", h.listSymbols)
	mux.HandleFunc("GET /api/v1/runs", h.listRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.getRun)
	mux.HandleFunc("GET /api/all-news", h.listNews)
	mux.HandleFunc("GET /api/calendar", h.listCalendar)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
