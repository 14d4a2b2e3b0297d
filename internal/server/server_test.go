package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/cache"
	"github.com/ahmethakanbesel/market-harvester/internal/feed"
	"github.com/ahmethakanbesel/market-harvester/internal/harvest"
	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/platform/sqlite"
	runrepo "github.com/ahmethakanbesel/market-harvester/internal/repository/run"
	"github.com/ahmethakanbesel/market-harvester/internal/run"
	"github.com/ahmethakanbesel/market-harvester/internal/scraper/newsmaker"
)

const (
	directoryPage = `<html><body><form><select name="symbol">
<option value="gold">Gold Spot</option>
<option value="oil">Crude Oil</option>
</select></form></body></html>`

	goldPage = `<html><body><table><tbody>
<tr><td>03 Jan 2024</td><td>2,040.50</td><td>2,051.00</td><td>2,030.25</td><td>2,044.00</td><td>+0.2%</td><td>1,234</td><td>-</td></tr>
<tr><td>02 Jan 2024</td><td>-</td><td>2,049.00</td><td>2,020.00</td><td>2,041.00</td><td>-0.1%</td><td>987</td><td>-</td></tr>
</tbody></table></body></html>`

	emptyPage = `<html><body><table><tbody></tbody></table></body></html>`

	newsPage = `<html><body>
<div class="single-news-item">
  <h5 class="card-title"><a href="/news/gold-up">Gold climbs</a></h5>
  <p class="card-text">12 March 2024</p>
  <p class="card-text">Gold rose on a weaker dollar.</p>
</div>
<div class="single-news-item">
  <h5 class="card-title"><a href="/news/oil-down">Oil slips</a></h5>
  <p class="card-text">Crude fell after inventories grew.</p>
</div>
</body></html>`

	calendarPage = `<html><body><table><tbody>
<tr><td>08:30</td><td>USD</td><td><span>High</span></td><td>CPI m/m<br>Previous: 0.3% | Forecast: 0.4%</td></tr>
</tbody></table></body></html>`
)

// fakeSource serves the pages the newsmaker scraper reads.
type fakeSource struct {
	discoveryDown atomic.Bool
}

func (f *fakeSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/historical-data":
		if f.discoveryDown.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, directoryPage)
	case "/historical-data/gold":
		_, _ = io.WriteString(w, goldPage)
	case "/historical-data/oil":
		_, _ = io.WriteString(w, emptyPage)
	case "/news/all":
		_, _ = io.WriteString(w, newsPage)
	case "/analysis/economic-calendar":
		_, _ = io.WriteString(w, calendarPage)
	default:
		http.NotFound(w, r)
	}
}

type testEnv struct {
	api    *httptest.Server
	source *fakeSource
	feeds  *feed.Service
}

func setupE2E(t *testing.T, override run.Harvester) *testEnv {
	t.Helper()

	source := &fakeSource{}
	upstream := httptest.NewServer(source)
	t.Cleanup(upstream.Close)

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	scr := newsmaker.New(
		newsmaker.WithClient(upstream.Client()),
		newsmaker.WithBaseURL(upstream.URL),
		newsmaker.WithRetryDelay(time.Millisecond),
		newsmaker.WithNewsCategories("news/all"),
		newsmaker.WithNewsPages(1),
	)

	historySvc := history.NewService(cache.NewMemoryStore())
	directory := harvest.NewDirectory(scr, time.Minute)
	orchestrator := harvest.NewOrchestrator(
		directory,
		harvest.NewAccumulator(scr, harvest.WithPageSize(5), harvest.WithPageDelay(0)),
		historySvc,
		harvest.WithWorkers(2),
	)

	var harvester run.Harvester = orchestrator
	if override != nil {
		harvester = override
	}
	feeds := feed.NewService(scr)

	api := httptest.NewServer(NewHandler(Services{
		History: historySvc,
		Runs:    run.NewService(runrepo.NewRepository(db.DB), harvester),
		Feeds:   feeds,
		Symbols: directory,
		Cycles:  orchestrator,
	}))
	t.Cleanup(api.Close)

	return &testEnv{api: api, source: source, feeds: feeds}
}

func doRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

type aggregateBody struct {
	Status       string `json:"status"`
	TotalSymbols int    `json:"totalSymbols"`
	Data         []struct {
		Symbol   string           `json:"symbol"`
		SymbolID string           `json:"symbolId"`
		Data     []map[string]any `json:"data"`
	} `json:"data"`
}

func TestE2E_Health(t *testing.T) {
	env := setupE2E(t, nil)

	resp := doRequest(t, http.MethodGet, env.api.URL+"/health")
	body := decode[APIResponse[healthResponse]](t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if body.Data.Status != "ok" || body.Data.HarvestRunning {
		t.Errorf("unexpected health: %+v", body.Data)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestE2E_HarvestAndRead(t *testing.T) {
	env := setupE2E(t, nil)

	empty := decode[aggregateBody](t, doRequest(t, http.MethodGet, env.api.URL+"/api/v1/historical"))
	if empty.Status != "empty" || empty.TotalSymbols != 0 || empty.Data == nil {
		t.Fatalf("expected empty aggregate, got %+v", empty)
	}

	resp := doRequest(t, http.MethodPost, env.api.URL+"/api/v1/harvest?maxRows=10")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	triggered := decode[APIResponse[run.Run]](t, resp)
	if triggered.Data.Status != run.StatusCompleted {
		t.Errorf("expected completed run, got %+v", triggered.Data)
	}
	// oil has no rows and is not published.
	if triggered.Data.SymbolsHarvested != 1 || triggered.Data.SymbolsTotal != 2 {
		t.Errorf("unexpected counts: %+v", triggered.Data)
	}

	agg := decode[aggregateBody](t, doRequest(t, http.MethodGet, env.api.URL+"/api/v1/historical"))
	if agg.Status != "success" || agg.TotalSymbols != 1 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
	gold := agg.Data[0]
	if gold.SymbolID != "gold" || gold.Symbol != "Gold Spot" {
		t.Errorf("unexpected symbol: %+v", gold)
	}
	if len(gold.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(gold.Data))
	}
	if gold.Data[0]["close"] != 2044.0 {
		t.Errorf("expected close 2044, got %v", gold.Data[0]["close"])
	}
	if v, ok := gold.Data[1]["open"]; !ok || v != nil {
		t.Errorf("expected null open, got %v (present=%v)", v, ok)
	}

	runs := decode[APIResponse[[]run.Run]](t, doRequest(t, http.MethodGet, env.api.URL+"/api/v1/runs"))
	if len(runs.Data) != 1 || runs.Data[0].Trigger != run.TriggerAPI {
		t.Errorf("unexpected runs: %+v", runs.Data)
	}

	got := decode[APIResponse[run.Run]](t, doRequest(t, http.MethodGet, fmt.Sprintf("%s/api/v1/runs/%d", env.api.URL, triggered.Data.ID)))
	if got.Data.ID != triggered.Data.ID {
		t.Errorf("expected run %d, got %d", triggered.Data.ID, got.Data.ID)
	}
}

func TestE2E_GetHistory(t *testing.T) {
	env := setupE2E(t, nil)
	_ = doRequest(t, http.MethodPost, env.api.URL+"/api/v1/harvest").Body.Close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"json", "/api/v1/historical/gold", http.StatusOK},
		{"csv", "/api/v1/historical/gold?format=csv", http.StatusOK},
		{"bad format", "/api/v1/historical/gold?format=xml", http.StatusBadRequest},
		{"missing", "/api/v1/historical/oil", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, env.api.URL+tt.path)
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}

	resp := doRequest(t, http.MethodGet, env.api.URL+"/api/v1/historical/gold?format=csv")
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines: %q", len(lines), b)
	}
	if !strings.HasPrefix(lines[2], "gold,observation,02 Jan 2024,,2049,") {
		t.Errorf("unexpected csv row: %q", lines[2])
	}
}

func TestE2E_InvalidateCache(t *testing.T) {
	env := setupE2E(t, nil)
	_ = doRequest(t, http.MethodPost, env.api.URL+"/api/v1/harvest").Body.Close()

	bad := doRequest(t, http.MethodDelete, env.api.URL+"/api/v1/cache?pattern=%5B")
	_ = bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed pattern, got %d", bad.StatusCode)
	}

	resp := doRequest(t, http.MethodDelete, env.api.URL+"/api/v1/cache")
	body := decode[APIResponse[history.InvalidateResponse]](t, resp)
	if body.Data.Deleted != 1 || body.Data.Pattern != history.KeyPattern {
		t.Errorf("unexpected invalidation: %+v", body.Data)
	}

	agg := decode[aggregateBody](t, doRequest(t, http.MethodGet, env.api.URL+"/api/v1/historical"))
	if agg.Status != "empty" {
		t.Errorf("expected empty after invalidation, got %s", agg.Status)
	}
}

func TestE2E_DiscoveryFailure(t *testing.T) {
	env := setupE2E(t, nil)
	env.source.discoveryDown.Store(true)

	resp := doRequest(t, http.MethodPost, env.api.URL+"/api/v1/harvest")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}

	symbols := doRequest(t, http.MethodGet, env.api.URL+"/api/v1/symbols")
	_ = symbols.Body.Close()
	if symbols.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 from symbols, got %d", symbols.StatusCode)
	}

	runs := decode[APIResponse[[]run.Run]](t, doRequest(t, http.MethodGet, env.api.URL+"/api/v1/runs?status=failed"))
	if len(runs.Data) != 1 || runs.Data[0].Error == "" {
		t.Errorf("expected one failed run, got %+v", runs.Data)
	}
}

type blockingHarvester struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingHarvester) HarvestAll(context.Context, int) (int, error) {
	close(b.started)
	<-b.release
	return 0, nil
}

func (b *blockingHarvester) LastCycle() *harvest.Cycle { return nil }

func TestE2E_ConcurrentTrigger(t *testing.T) {
	h := &blockingHarvester{started: make(chan struct{}), release: make(chan struct{})}
	env := setupE2E(t, h)

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(env.api.URL+"/api/v1/harvest", "", nil)
		if err != nil {
			first <- 0
			return
		}
		_ = resp.Body.Close()
		first <- resp.StatusCode
	}()
	<-h.started

	resp := doRequest(t, http.MethodPost, env.api.URL+"/api/v1/harvest")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}

	close(h.release)
	if code := <-first; code != http.StatusOK {
		t.Errorf("expected first trigger to succeed, got %d", code)
	}
}

func TestE2E_BadRequests(t *testing.T) {
	env := setupE2E(t, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/v1/harvest?maxRows=abc", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/harvest?maxRows=-1", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/runs/abc", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/runs/0", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/runs/99", http.StatusNotFound},
		{http.MethodGet, "/api/v1/runs?limit=x", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/runs?status=bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := doRequest(t, tt.method, env.api.URL+tt.path)
			_ = resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestE2E_Symbols(t *testing.T) {
	env := setupE2E(t, nil)

	body := decode[APIResponse[[]history.Symbol]](t, doRequest(t, http.MethodGet, env.api.URL+"/api/v1/symbols"))
	if len(body.Data) != 2 || body.Data[1].ID != "oil" {
		t.Errorf("unexpected symbols: %+v", body.Data)
	}
}

func TestE2E_Feeds(t *testing.T) {
	env := setupE2E(t, nil)

	before := decode[FeedResponse[newsmaker.NewsItem]](t, doRequest(t, http.MethodGet, env.api.URL+"/api/all-news"))
	if before.Status != "empty" || before.UpdatedAt != nil || before.Data == nil {
		t.Errorf("expected empty feed, got %+v", before)
	}

	if err := env.feeds.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh feeds: %v", err)
	}

	news := decode[FeedResponse[newsmaker.NewsItem]](t, doRequest(t, http.MethodGet, env.api.URL+"/api/all-news"))
	if news.Status != "success" || news.Total != 2 || news.UpdatedAt == nil {
		t.Errorf("unexpected news: %+v", news)
	}

	cal := decode[FeedResponse[newsmaker.CalendarEvent]](t, doRequest(t, http.MethodGet, env.api.URL+"/api/calendar"))
	if cal.Total != 1 || cal.Data[0].Currency != "USD" {
		t.Fatalf("unexpected calendar: %+v", cal)
	}
	if cal.Data[0].Forecast.String != "0.4%" || cal.Data[0].Actual.String != "-" {
		t.Errorf("unexpected figures: %+v", cal.Data[0])
	}
}
