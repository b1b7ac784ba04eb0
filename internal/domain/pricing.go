package domain

import "errors"

// ErrPricingNotFound indicates that no pricing is registered for a model.
// Callers surface the cost as null rather than zero in that case.
var ErrPricingNotFound = errors.New("pricing not found")

// PricingConfig contains model pricing information.
type PricingConfig struct {
	InputCostPer1K  float64 // USD per 1K input tokens
	OutputCostPer1K float64 // USD per 1K output tokens
}
