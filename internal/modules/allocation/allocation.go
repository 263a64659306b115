package allocation

import (
	"fmt"
	"strings"

	"github.com/finvoice/riskengine/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Bucket is a top-level allocation bucket.
type Bucket string

const (
	BucketEquity Bucket = "equity"
	BucketDebt   Bucket = "debt"
	BucketGold   Bucket = "gold"
	BucketCash   Bucket = "cash"
)

// Buckets lists the allocation buckets in a stable order.
var Buckets = []Bucket{BucketEquity, BucketDebt, BucketGold, BucketCash}

// AssetClass maps a bucket onto the asset class used by the risk models.
func (b Bucket) AssetClass() domain.AssetClass {
	switch b {
	case BucketDebt:
		return domain.AssetClassDebt
	case BucketGold:
		return domain.AssetClassCommodity
	case BucketCash:
		return domain.AssetClassCash
	default:
		return domain.AssetClassEquity
	}
}

// Allocation maps buckets to weights.
type Allocation map[Bucket]float64

// Clone returns a copy of a.
func (a Allocation) Clone() Allocation {
	out := make(Allocation, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Normalize clamps negative weights to zero and scales the rest to sum to 1.
// An allocation with no positive weight is returned as all zero.
func (a Allocation) Normalize() Allocation {
	out := make(Allocation, len(Buckets))
	weights := make([]float64, len(Buckets))
	for i, b := range Buckets {
		if w := a[b]; w > 0 {
			weights[i] = w
		}
	}
	total := floats.Sum(weights)
	if total <= 0 {
		for _, b := range Buckets {
			out[b] = 0
		}
		return out
	}
	floats.Scale(1/total, weights)
	for i, b := range Buckets {
		out[b] = weights[i]
	}
	return out
}

// Blend linearly interpolates from base toward emergency by weight (clamped
// to [0, 1]) and normalizes the result.
func Blend(base, emergency Allocation, weight float64) Allocation {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	out := make(Allocation, len(Buckets))
	for _, b := range Buckets {
		out[b] = base[b]*(1-weight) + emergency[b]*weight
	}
	return out.Normalize()
}

// RiskTolerance selects the base allocation.
type RiskTolerance string

const (
	Conservative RiskTolerance = "conservative"
	Moderate     RiskTolerance = "moderate"
	Aggressive   RiskTolerance = "aggressive"
)

// ParseRiskTolerance validates a caller supplied tolerance.
func ParseRiskTolerance(s string) (RiskTolerance, error) {
	switch t := RiskTolerance(strings.ToLower(strings.TrimSpace(s))); t {
	case Conservative, Moderate, Aggressive:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q (want conservative, moderate or aggressive)", domain.ErrInvalidRiskTolerance, s)
}

// Horizon bounds in months
const (
	MinHorizonMonths = 1
	MaxHorizonMonths = 600
)

// ValidateHorizon rejects horizons outside [MinHorizonMonths, MaxHorizonMonths].
func ValidateHorizon(months int) error {
	if months < MinHorizonMonths || months > MaxHorizonMonths {
		return fmt.Errorf("%w: %d months (want %d-%d)", domain.ErrInvalidHorizon, months, MinHorizonMonths, MaxHorizonMonths)
	}
	return nil
}

// SeverityTier names the emergency table chosen for a crisis severity.
type SeverityTier string

const (
	TierLow      SeverityTier = "low"
	TierModerate SeverityTier = "moderate"
	TierExtreme  SeverityTier = "extreme"
)

// TierFor maps a 0-10 severity onto an emergency tier.
func TierFor(severity float64) SeverityTier {
	switch {
	case severity >= 8:
		return TierExtreme
	case severity >= 6:
		return TierModerate
	default:
		return TierLow
	}
}

// BlendWeight converts a crisis severity into the emergency blend weight.
func BlendWeight(severity float64) float64 {
	w := severity / 10
	if w > 0.7 {
		w = 0.7
	}
	if w < 0 {
		w = 0
	}
	return w
}

// Split divides a bucket between sub-buckets. Shares sum to 1.
type Split map[string]float64

// Sub-bucket names
const (
	LargeCap   = "large_cap"
	MidCap     = "mid_cap"
	SmallCap   = "small_cap"
	Government = "government"
	Corporate  = "corporate"
)

// Tables is the immutable allocation reference data.
type Tables struct {
	Base        map[RiskTolerance]Allocation
	Emergency   map[SeverityTier]Allocation
	EquitySplit map[RiskTolerance]Split
	DebtSplit   Split
}

// DefaultTables returns the standard allocation tables.
func DefaultTables() Tables {
	return Tables{
		Base: map[RiskTolerance]Allocation{
			Conservative: {BucketEquity: 0.30, BucketDebt: 0.50, BucketGold: 0.15, BucketCash: 0.05},
			Moderate:     {BucketEquity: 0.50, BucketDebt: 0.30, BucketGold: 0.10, BucketCash: 0.10},
			Aggressive:   {BucketEquity: 0.70, BucketDebt: 0.20, BucketGold: 0.05, BucketCash: 0.05},
		},
		Emergency: map[SeverityTier]Allocation{
			TierExtreme:  {BucketEquity: 0.35, BucketDebt: 0.30, BucketGold: 0.15, BucketCash: 0.20},
			TierModerate: {BucketEquity: 0.55, BucketDebt: 0.20, BucketGold: 0.10, BucketCash: 0.15},
			TierLow:      {BucketEquity: 0.67, BucketDebt: 0.15, BucketGold: 0.08, BucketCash: 0.10},
		},
		EquitySplit: map[RiskTolerance]Split{
			Conservative: {LargeCap: 0.70, MidCap: 0.20, SmallCap: 0.10},
			Moderate:     {LargeCap: 0.60, MidCap: 0.25, SmallCap: 0.15},
			Aggressive:   {LargeCap: 0.50, MidCap: 0.30, SmallCap: 0.20},
		},
		DebtSplit: Split{Government: 0.70, Corporate: 0.30},
	}
}
