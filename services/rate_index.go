package services

import (
	"sync"

	"github.com/LovationAdmin/gst-api/models"
)

// RateIndex is an in-memory snapshot of stored rates with their normalized
// descriptions, rebuilt after every write to the rate table.
type RateIndex struct {
	mu         sync.RWMutex
	rates      []models.GSTRate
	choices    []string
	normalized []string
	loaded     bool
	gen        uint64
}

func NewRateIndex() *RateIndex {
	return &RateIndex{}
}

// ReplaceIfCurrent swaps in a snapshot read at generation gen. It reports
// false, leaving the index stale, when an Invalidate happened since.
func (idx *RateIndex) ReplaceIfCurrent(rates []models.GSTRate, gen uint64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.gen != gen {
		return false
	}
	idx.store(rates)
	return true
}

func (idx *RateIndex) store(rates []models.GSTRate) {
	choices := make([]string, len(rates))
	normalized := make([]string, len(rates))
	for i, r := range rates {
		choices[i] = r.Description
		normalized[i] = NormalizeText(r.Description)
	}
	idx.rates = rates
	idx.choices = choices
	idx.normalized = normalized
	idx.loaded = true
}

// Invalidate marks the snapshot stale so the next search reloads it.
func (idx *RateIndex) Invalidate() {
	idx.mu.Lock()
	idx.loaded = false
	idx.gen++
	idx.mu.Unlock()
}

// Generation changes on every Invalidate.
func (idx *RateIndex) Generation() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.gen
}

func (idx *RateIndex) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

func (idx *RateIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rates)
}

// RateMatch pairs a stored rate with its match score.
type RateMatch struct {
	Rate  models.GSTRate
	Score float64
}

// Search returns up to limit rates ranked by WRatio against query.
func (idx *RateIndex) Search(query string, limit int) []RateMatch {
	idx.mu.RLock()
	rates, choices, normalized := idx.rates, idx.choices, idx.normalized
	idx.mu.RUnlock()

	scored := extractNormalized(NormalizeText(query), choices, normalized, limit)
	out := make([]RateMatch, len(scored))
	for i, s := range scored {
		out[i] = RateMatch{Rate: rates[s.Index], Score: s.Score}
	}
	return out
}
