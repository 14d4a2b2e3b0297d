package history

import (
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/apperror"
	"github.com/ahmethakanbesel/market-harvester/internal/cache"
)

const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
)

// SymbolData is one symbol's entry in the aggregate response.
type SymbolData struct {
	Symbol    string    `json:"symbol"`
	SymbolID  string    `json:"symbolId"`
	Data      []Row     `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AggregateResponse struct {
	Status       string       `json:"status"`
	TotalSymbols int          `json:"totalSymbols"`
	Data         []SymbolData `json:"data"`
}

type GetHistoryRequest struct {
	SymbolID string
	Format   string // "json" or "csv"
}

func (r GetHistoryRequest) Validate() *apperror.AppError {
	if r.SymbolID == "" {
		return apperror.New(apperror.BadRequest, "symbol is required")
	}
	if r.Format != "" && r.Format != "json" && r.Format != "csv" {
		return apperror.New(apperror.BadRequest, "format must be json or csv")
	}
	return nil
}

type InvalidateRequest struct {
	Pattern string
}

func (r InvalidateRequest) Validate() *apperror.AppError {
	if err := cache.ValidatePattern(r.Pattern); err != nil {
		return apperror.New(apperror.BadRequest, "invalid key pattern")
	}
	return nil
}

type InvalidateResponse struct {
	Pattern string `json:"pattern"`
	Deleted int64  `json:"deleted"`
}
