package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/guregu/null/v6"

	"github.com/ahmethakanbesel/market-harvester/internal/history"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// FeedResponse is the body of the news and calendar endpoints.
type FeedResponse[T any] struct {
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updatedAt"`
	Total     int        `json:"total"`
	Data      []T        `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	writeBody(w, status, APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

// writeBody writes v as the whole response body, without the envelope.
func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

func writeCSV(w http.ResponseWriter, h *history.SymbolHistory) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(h.Symbol.ID+".csv"))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Symbol", "Type", "Date", "Open", "High", "Low", "Close", "Change", "Volume", "OpenInterest", "Note"})
	for _, r := range h.Rows {
		_ = cw.Write([]string{
			h.Symbol.ID,
			string(r.Kind),
			r.Date,
			formatFloat(r.Open),
			formatFloat(r.High),
			formatFloat(r.Low),
			formatFloat(r.Close),
			r.Change.ValueOrZero(),
			formatFloat(r.Volume),
			formatFloat(r.OpenInterest),
			r.Note,
		})
	}
	cw.Flush()
}

func formatFloat(f null.Float) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Float64, 'f', -1, 64)
}
