package newsmaker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListSymbols(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/historical-data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`<form><select name="symbol">
			<option value="">-- choose --</option>
			<option value="XAUUSD">Gold</option>
			<option value="EURUSD"> Euro / Dollar </option>
			<option value="XAUUSD">Gold (dup)</option>
			<option value="HSI"></option>
		</select></form>`))
	}))
	defer ts.Close()

	s := New(WithClient(ts.Client()), WithBaseURL(ts.URL))
	symbols, err := s.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) != 3 {
		t.Fatalf("expected 3 symbols, got %d: %+v", len(symbols), symbols)
	}
	if symbols[0].ID != "XAUUSD" || symbols[0].Name != "Gold" {
		t.Errorf("unexpected first symbol %+v", symbols[0])
	}
	if symbols[1].Name != "Euro / Dollar" {
		t.Errorf("expected trimmed name, got %q", symbols[1].Name)
	}
	if symbols[2].Name != "HSI" {
		t.Errorf("expected id as fallback name, got %q", symbols[2].Name)
	}
}

func TestListSymbols_ParseFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>redesigned page</body></html>`))
	}))
	defer ts.Close()

	s := New(WithClient(ts.Client()), WithBaseURL(ts.URL))
	if _, err := s.ListSymbols(context.Background()); err == nil {
		t.Fatal("expected error when no symbols can be parsed")
	}
}

func TestListSymbols_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	s := New(WithClient(ts.Client()), WithBaseURL(ts.URL))
	if _, err := s.ListSymbols(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
