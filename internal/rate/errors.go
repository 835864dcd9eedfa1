package rate

import "errors"

var (
	// ErrRateLimited is an exported constant or variable used by the session orchestrator.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is an exported constant or variable used by the session orchestrator.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
