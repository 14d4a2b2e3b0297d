// Package history holds the harvested-history domain types and the read
// side of the cache: aggregation across symbols, single-symbol lookup and
// bulk invalidation.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/apperror"
	"github.com/ahmethakanbesel/market-harvester/internal/cache"
)

type Service struct {
	store cache.Store
}

func NewService(store cache.Store) *Service {
	return &Service{store: store}
}

// Put publishes h as one complete snapshot under its symbol key,
// replacing any previous entry.
func (s *Service) Put(ctx context.Context, h SymbolHistory, ttl time.Duration) error {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", h.Symbol.ID, err)
	}
	return s.store.Set(ctx, Key(h.Symbol.ID), b, ttl)
}

// All fans out over every cached history. Missing or unparsable entries are
// skipped; only a failure to enumerate keys is returned.
func (s *Service) All(ctx context.Context) (*AggregateResponse, error) {
	keys, err := s.store.Keys(ctx, KeyPattern)
	if err != nil {
		slog.Error("list history keys", "error", err)
		return nil, apperror.New(apperror.Unavailable, "cache store unavailable")
	}

	resp := &AggregateResponse{Status: StatusEmpty, Data: []SymbolData{}}
	if len(keys) == 0 {
		return resp, nil
	}

	payloads, err := s.store.MGet(ctx, keys...)
	if err != nil {
		slog.Error("read history entries", "keys", len(keys), "error", err)
		return nil, apperror.New(apperror.Unavailable, "cache store unavailable")
	}

	for i, key := range keys {
		if payloads[i] == nil {
			slog.Warn("history entry vanished during read", "key", key)
			continue
		}
		var h SymbolHistory
		if err := json.Unmarshal(payloads[i], &h); err != nil {
			slog.Warn("skipping unparsable history entry", "key", key, "error", err)
			continue
		}
		resp.Data = append(resp.Data, toSymbolData(h))
	}

	resp.TotalSymbols = len(resp.Data)
	if resp.TotalSymbols > 0 {
		resp.Status = StatusSuccess
	}
	return resp, nil
}

// Get returns the cached history of a single symbol.
func (s *Service) Get(ctx context.Context, req GetHistoryRequest) (*SymbolHistory, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	b, err := s.store.Get(ctx, Key(req.SymbolID))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, apperror.New(apperror.NotFound, "no cached history for symbol")
	}
	if err != nil {
		slog.Error("read history entry", "symbol", req.SymbolID, "error", err)
		return nil, apperror.New(apperror.Unavailable, "cache store unavailable")
	}

	var h SymbolHistory
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", req.SymbolID, err)
	}
	return &h, nil
}

// Invalidate deletes every key matching the pattern (all histories when the
// pattern is empty) and reports how many were removed.
func (s *Service) Invalidate(ctx context.Context, req InvalidateRequest) (*InvalidateResponse, error) {
	if req.Pattern == "" {
		req.Pattern = KeyPattern
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	keys, err := s.store.Keys(ctx, req.Pattern)
	if err != nil {
		slog.Error("list keys for invalidation", "pattern", req.Pattern, "error", err)
		return nil, apperror.New(apperror.Unavailable, "cache store unavailable")
	}

	resp := &InvalidateResponse{Pattern: req.Pattern}
	if len(keys) == 0 {
		return resp, nil
	}

	n, err := s.store.Delete(ctx, keys...)
	if err != nil {
		slog.Error("delete keys", "pattern", req.Pattern, "count", len(keys), "error", err)
		return nil, apperror.New(apperror.Unavailable, "cache store unavailable")
	}
	resp.Deleted = n

	slog.Info("invalidated cache entries", "pattern", req.Pattern, "deleted", n)
	return resp, nil
}

func toSymbolData(h SymbolHistory) SymbolData {
	name := h.Symbol.Name
	if name == "" {
		name = h.Symbol.ID
	}
	rows := h.Rows
	if rows == nil {
		rows = []Row{}
	}
	return SymbolData{
		Symbol:    name,
		SymbolID:  h.Symbol.ID,
		Data:      rows,
		UpdatedAt: h.FetchedAt,
	}
}
