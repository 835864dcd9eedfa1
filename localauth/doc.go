// Package localauth is an in-process Authenticator for deployments without a
// separate identity backend: credentials are verified against a UserProvider
// with argon2id, two-factor challenges are delivered through a notify
// callback, and token pairs are issued as HS256 JWTs.
package localauth
