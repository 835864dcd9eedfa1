// Package jwt inspects backend-issued JWTs without verifying their
// signatures. The orchestrator is a client of the identity backend, not its
// verifier; it only needs expiry and subject claims to decide whether a
// stored session is still usable.
package jwt
