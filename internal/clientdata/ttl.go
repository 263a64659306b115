package clientdata

import "time"

// TTL constants for cached client data.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLExchangeRate = time.Hour       // Currency exchange rates
	TTLQuote        = 5 * time.Minute // Default quote TTL, overridden by QUOTE_CACHE_TTL
)
