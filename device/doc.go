// Package device derives a stable fingerprint for the current device from
// request attributes and manages its trust association per user in Redis.
package device
