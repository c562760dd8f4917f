package domain

import "context"

// FactorTable maps an activity type to its emission factor, expressed as
// kilograms of CO2 per reported unit (km, kWh, hour, GB depending on type).
// Negative factors represent avoided emissions.
type FactorTable map[string]float64

// DefaultFactors returns the built-in fallback table. Callers get a fresh
// copy so nothing mutates shared state.
func DefaultFactors() FactorTable {
	return FactorTable{
		"Car Travel":        0.2,   // kg CO2 per km
		"Electricity":       0.5,   // kg CO2 per kWh
		"Flight":            0.15,  // kg CO2 per km
		"Public Transport":  0.05,  // kg CO2 per km
		"Walking":           -0.1,  // saved vs. driving, per km
		"Cycling":           -0.1,  // saved vs. driving, per km
		"Streaming (Video)": 0.036, // kg CO2 per hour
		"Internet Data":     0.01,  // kg CO2 per GB
		"Gaming":            0.05,  // kg CO2 per hour
	}
}

// FactorSource supplies operator-configured emission factors.
type FactorSource interface {
	// FactorFor returns the configured factor for the exact, case-sensitive
	// activity type, and whether one is configured at all.
	FactorFor(ctx context.Context, activityType string) (float64, bool, error)
}

// FactorResolver resolves the emission factor for an activity type:
// configured value first, then the fallback table, else zero. An unknown
// type is a valid zero-impact activity, never an error.
type FactorResolver struct {
	source   FactorSource
	fallback FactorTable
}

// NewFactorResolver constructs a resolver. source may be nil when no
// configured table exists; fallback is typically DefaultFactors().
func NewFactorResolver(source FactorSource, fallback FactorTable) *FactorResolver {
	return &FactorResolver{source: source, fallback: fallback}
}

// Resolve returns the factor for activityType. A configured factor of
// exactly zero is indistinguishable from "not configured" and falls
// through to the fallback table, matching the historical behaviour.
func (r *FactorResolver) Resolve(ctx context.Context, activityType string) (float64, error) {
	if r.source != nil {
		factor, ok, err := r.source.FactorFor(ctx, activityType)
		if err != nil {
			return 0, err
		}
		if ok && factor != 0 {
			return factor, nil
		}
	}
	return r.fallback[activityType], nil
}

// ComputeEmission derives the signed emission amount from a reported
// quantity and a resolved factor. Negative results are net savings. No
// rounding happens here; display rounding is a presentation concern.
func ComputeEmission(quantity, factor float64) float64 {
	return quantity * factor
}
