package history

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/guregu/null/v6"
)

// KeyPrefix namespaces per-symbol history entries in the cache.
const KeyPrefix = "historical:"

// KeyPattern matches every cached symbol history.
const KeyPattern = KeyPrefix + "*"

// Key returns the cache key holding the history of symbolID.
func Key(symbolID string) string { return KeyPrefix + symbolID }

// SymbolID recovers the symbol id from a cache key.
func SymbolID(key string) string { return strings.TrimPrefix(key, KeyPrefix) }

type Symbol struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RowKind string

const (
	KindObservation RowKind = "observation"
	KindAnnotation  RowKind = "annotation"
)

// Row is one line of a symbol's history table: either a numeric
// observation or an annotation (an event marker interleaved with prices).
type Row struct {
	Kind         RowKind     `json:"type"`
	Date         string      `json:"date"`
	Note         string      `json:"note,omitempty"`
	Open         null.Float  `json:"open"`
	High         null.Float  `json:"high"`
	Low          null.Float  `json:"low"`
	Close        null.Float  `json:"close"`
	Change       null.String `json:"change"`
	Volume       null.Float  `json:"volume"`
	OpenInterest null.Float  `json:"openInterest"`
}

func Annotation(date, note string) Row {
	return Row{Kind: KindAnnotation, Date: date, Note: note}
}

// HasPrice reports whether at least one of open, high, low, close is set.
// Observations without a price are dropped before they reach a history.
func (r Row) HasPrice() bool {
	return r.Open.Valid || r.High.Valid || r.Low.Valid || r.Close.Valid
}

// MarshalJSON writes annotations without numeric fields.
func (r Row) MarshalJSON() ([]byte, error) {
	if r.Kind == KindAnnotation {
		return json.Marshal(struct {
			Kind RowKind `json:"type"`
			Date string  `json:"date"`
			Note string  `json:"note"`
		}{r.Kind, r.Date, r.Note})
	}
	type plain Row
	return json.Marshal(plain(r))
}

// SymbolHistory is the unit published to the cache: the complete set of
// rows harvested for one symbol in one cycle, in source order.
type SymbolHistory struct {
	Symbol    Symbol    `json:"symbol"`
	Rows      []Row     `json:"rows"`
	FetchedAt time.Time `json:"fetchedAt"`
}
