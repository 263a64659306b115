package domain

import "errors"

// Error taxonomy shared by the engine modules. Wrap with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrEmptyPortfolio is recovered locally as a zero valuation.
	ErrEmptyPortfolio = errors.New("portfolio has no holdings")
	// ErrProviderUnavailable means a single price provider failed for a request.
	ErrProviderUnavailable = errors.New("price provider unavailable")
	// ErrAllProvidersExhausted means no provider could price a symbol.
	ErrAllProvidersExhausted = errors.New("all price providers exhausted")
	ErrInvalidRiskTolerance  = errors.New("invalid risk tolerance")
	ErrInvalidHorizon        = errors.New("invalid investment horizon")
	// ErrSnapshotPersistence is returned next to an already computed valuation.
	ErrSnapshotPersistence = errors.New("snapshot persistence failed")
	ErrPortfolioNotFound   = errors.New("portfolio not found")
)

// IsValidationError reports whether err is caused by malformed caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRiskTolerance) || errors.Is(err, ErrInvalidHorizon)
}
