package domain

import "errors"

// Error taxonomy of the decision pipeline. Callers match with errors.Is;
// wrapping adds context without losing the category.
var (
	// ErrDataUnavailable - the provider could not deliver the required window
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientHistory - the provider delivered fewer bars than required
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNoData - the engine cannot produce any decision (total data failure)
	ErrNoData = errors.New("no data for recommendation")

	// ErrNotTracked - the instrument is not in the tracked set
	ErrNotTracked = errors.New("instrument not tracked")

	// ErrCacheBuildFailed - a cache builder failed; wraps the builder error
	ErrCacheBuildFailed = errors.New("cache build failed")
)
