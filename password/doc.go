// Package password provides argon2id hashing and verification in PHC string
// format for the in-process authenticator. It is not used when the
// orchestrator talks to a remote identity backend; credentials then never
// leave the transport layer.
package password
