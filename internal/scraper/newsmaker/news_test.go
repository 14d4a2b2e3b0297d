package newsmaker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newsListing(links ...string) string {
	body := "<html><body>"
	for _, l := range links {
		body += fmt.Sprintf(`<div class="single-news-item">
			<img class="card-img" src="/images/%[1]s.jpg">
			<span class="category-label"> Commodity </span>
			<h5 class="card-title"><a href="/index.php/en/news/%[1]s"> Headline %[1]s </a></h5>
			<p class="card-text">12 March 2024</p>
			<p class="card-text">Summary of %[1]s</p>
		</div>`, l)
	}
	body += `<div class="single-news-item"><h5 class="card-title"><a href="/x">No summary</a></h5></div>`
	return body + "</body></html>"
}

func TestScrapeNews(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("start") {
		case "0":
			_, _ = w.Write([]byte(newsListing("gold-up", "oil-down")))
		case "10":
			_, _ = w.Write([]byte(newsListing("oil-down", "usd-flat")))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	s := New(
		WithClient(ts.Client()),
		WithBaseURL(ts.URL+"/index.php/en"),
		WithNewsCategories("market-news/commodity/all-commodity"),
		WithNewsPages(3),
	)

	items, err := s.ScrapeNews(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 unique items, got %d: %+v", len(items), items)
	}

	first := items[0]
	if first.Title != "Headline gold-up" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.Link != ts.URL+"/index.php/en/news/gold-up" {
		t.Errorf("unexpected link %q", first.Link)
	}
	if first.Image != ts.URL+"/images/gold-up.jpg" {
		t.Errorf("unexpected image %q", first.Image)
	}
	if first.Date != "12 March 2024" || first.Summary != "Summary of gold-up" {
		t.Errorf("unexpected date/summary %q / %q", first.Date, first.Summary)
	}
	if first.Category != "Commodity" {
		t.Errorf("unexpected category %q", first.Category)
	}
}

func TestScrapeNews_AllPagesFail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	s := New(WithClient(ts.Client()), WithBaseURL(ts.URL), WithNewsPages(2))
	if _, err := s.ScrapeNews(context.Background()); err == nil {
		t.Fatal("expected error when every page fails")
	}
}
