// Package user owns accounts, admin sessions, and password resets.
//
// Credentials never leave the server: passwords are bcrypt hashes,
// sessions are opaque IDs resolved in Redis, and reset tokens are
// stored hashed with a short TTL and consumed on first use. Every
// authentication failure reads the same from the outside, and the
// reset-request endpoint answers identically for known and unknown
// usernames.
package user
