// Package rate implements the redis fixed-window rate limiter that gates
// login and registration attempts, keyed by endpoint plus client identifier
// with an optional secondary per-IP throttle.
package rate
