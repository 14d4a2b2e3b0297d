package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/apperror"
	"github.com/ahmethakanbesel/market-harvester/internal/history"
	"github.com/ahmethakanbesel/market-harvester/internal/run"
)

type handler struct {
	svcs Services
}

type healthResponse struct {
	Status         string `json:"status"`
	HarvestRunning bool   `json:"harvestRunning"`
	LastCycle      any    `json:"lastCycle"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", HarvestRunning: h.svcs.Runs.Running()}
	if h.svcs.Cycles != nil {
		if c := h.svcs.Cycles.LastCycle(); c != nil {
			resp.LastCycle = c
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) triggerHarvest(w http.ResponseWriter, r *http.Request) {
	maxRows := h.svcs.MaxRows
	if v := r.URL.Query().Get("maxRows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid maxRows")
			return
		}
		maxRows = n
	}

	// A full cycle outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	res, err := h.svcs.Runs.Execute(r.Context(), run.TriggerRequest{Trigger: run.TriggerAPI, MaxRows: maxRows})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svcs.History.All(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeBody(w, http.StatusOK, resp)
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	req := history.GetHistoryRequest{
		SymbolID: r.PathValue("symbol"),
		Format:   r.URL.Query().Get("format"),
	}

	if appErr := req.Validate(); appErr != nil {
		writeError(w, appErr.HTTPStatus(), appErr.Message())
		return
	}

	hist, err := h.svcs.History.Get(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Format == "csv" {
		writeCSV(w, hist)
		return
	}

	writeJSON(w, http.StatusOK, hist)
}

func (h *handler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	req := history.InvalidateRequest{Pattern: r.URL.Query().Get("pattern")}

	resp, err := h.svcs.History.Invalidate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.svcs.Symbols.ListSymbols(r.Context())
	if err != nil {
		writeServiceError(w, apperror.Wrap(apperror.Upstream, "symbol discovery failed", err))
		return
	}

	writeJSON(w, http.StatusOK, symbols)
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	req := run.GetRunRequest{ID: id}
	if appErr := req.Validate(); appErr != nil {
		writeError(w, appErr.HTTPStatus(), appErr.Message())
		return
	}

	res, err := h.svcs.Runs.Get(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	req := run.ListRunsRequest{Status: run.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}

	runs, err := h.svcs.Runs.List(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (h *handler) listNews(w http.ResponseWriter, _ *http.Request) {
	items, updated := h.svcs.Feeds.News.Items()
	writeBody(w, http.StatusOK, newFeedResponse(items, updated))
}

func (h *handler) listCalendar(w http.ResponseWriter, _ *http.Request) {
	events, updated := h.svcs.Feeds.Calendar.Items()
	writeBody(w, http.StatusOK, newFeedResponse(events, updated))
}

func newFeedResponse[T any](items []T, updated time.Time) FeedResponse[T] {
	resp := FeedResponse[T]{Status: history.StatusEmpty, Total: len(items), Data: items}
	if len(items) > 0 {
		resp.Status = history.StatusSuccess
	}
	if !updated.IsZero() {
		resp.UpdatedAt = &updated
	}
	return resp
}

// writeServiceError maps an AppError to its status; anything else is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		if ae.HTTPStatus() >= http.StatusInternalServerError {
			slog.Error("request failed", "code", ae.Code(), "error", err)
		}
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
