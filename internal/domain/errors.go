package domain

import "errors"

// Error taxonomy for the accounting core. All of these are hard failures of
// the whole operation that produced them; nothing is recovered silently.
// Callers match with errors.Is after unwrapping.
var (
	// ErrUnsortedInput - transactions not in ascending datetime order.
	ErrUnsortedInput = errors.New("transactions not sorted by datetime")

	// ErrLotNotFound - SPECIFIC_ID sell references a nonexistent or fully
	// closed lot.
	ErrLotNotFound = errors.New("referenced lot not found or already closed")

	// ErrOverselling - sell quantity exceeds total open shares.
	ErrOverselling = errors.New("sell quantity exceeds open shares")

	// ErrMissingPrice - no adjusted close for a required trading day.
	ErrMissingPrice = errors.New("missing price for trading day")

	// ErrMissingFxRate - no FX rate for a required date/currency pair.
	ErrMissingFxRate = errors.New("missing fx rate")

	// ErrDuplicateLotID - lot store insertion collision.
	ErrDuplicateLotID = errors.New("duplicate lot id")

	// ErrNoOpenShares - target price inversion attempted with zero position.
	ErrNoOpenShares = errors.New("no open shares")
)
