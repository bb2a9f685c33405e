package cost

import (
	"sync"

	"github.com/sells-group/walkability-cli/pkg/anthropic"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Google    GoogleRate           `yaml:"google" mapstructure:"google"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// GoogleRate holds Google Maps Platform pricing per 1000 requests.
type GoogleRate struct {
	NearbySearch       float64 `yaml:"nearby_search" mapstructure:"nearby_search"`
	PlaceDetails       float64 `yaml:"place_details" mapstructure:"place_details"`
	StreetView         float64 `yaml:"street_view" mapstructure:"street_view"`
	StreetViewMetadata float64 `yaml:"street_view_metadata" mapstructure:"street_view_metadata"`
}

// GoogleSKU identifies a billed Google request type.
type GoogleSKU string

// Google request types.
const (
	SKUNearbySearch       GoogleSKU = "nearby_search"
	SKUPlaceDetails       GoogleSKU = "place_details"
	SKUStreetView         GoogleSKU = "street_view"
	SKUStreetViewMetadata GoogleSKU = "street_view_metadata"
)

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one Claude call or batch item.
func (c *Calculator) Claude(model string, isBatch bool, u anthropic.TokenUsage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	batchMul := 1.0
	if isBatch && rate.BatchDiscount > 0 {
		batchMul = rate.BatchDiscount
	}

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return (inCost + outCost + cwCost + crCost) * batchMul
}

// Google computes the cost of n requests of the given type. Metadata
// requests are free unless a rate is configured.
func (c *Calculator) Google(sku GoogleSKU, n int) float64 {
	var per1000 float64
	switch sku {
	case SKUNearbySearch:
		per1000 = c.rates.Google.NearbySearch
	case SKUPlaceDetails:
		per1000 = c.rates.Google.PlaceDetails
	case SKUStreetView:
		per1000 = c.rates.Google.StreetView
	case SKUStreetViewMetadata:
		per1000 = c.rates.Google.StreetViewMetadata
	}
	return float64(n) / 1000 * per1000
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-1-20250805": {
				Input: 15.00, Output: 75.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Google: GoogleRate{
			NearbySearch: 32.00,
			PlaceDetails: 20.00,
			StreetView:   7.00,
		},
	}
}

// Tally accumulates the usage and cost of one run. It is safe for
// concurrent use. A nil Tally discards everything recorded on it.
type Tally struct {
	calc *Calculator

	mu     sync.Mutex
	tokens anthropic.TokenUsage
	google map[GoogleSKU]int
	total  float64
}

// NewTally returns an empty Tally priced by calc.
func NewTally(calc *Calculator) *Tally {
	return &Tally{calc: calc, google: make(map[GoogleSKU]int)}
}

// AddClaude records one Claude call.
func (t *Tally) AddClaude(model string, isBatch bool, u anthropic.TokenUsage) {
	if t == nil {
		return
	}
	c := t.calc.Claude(model, isBatch, u)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens.Add(u)
	t.total += c
}

// AddGoogle records n Google requests.
func (t *Tally) AddGoogle(sku GoogleSKU, n int) {
	if t == nil || n == 0 {
		return
	}
	c := t.calc.Google(sku, n)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.google[sku] += n
	t.total += c
}

// Tokens returns the accumulated token usage.
func (t *Tally) Tokens() anthropic.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens
}

// Requests returns the number of recorded Google requests of a type.
func (t *Tally) Requests(sku GoogleSKU) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.google[sku]
}

// Total returns the accumulated cost in USD.
func (t *Tally) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
