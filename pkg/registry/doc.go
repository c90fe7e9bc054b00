// Package registry provides an authoritative registry for media asset
// metadata with per-entry ownership and explicit view permissions.
//
// It exposes a single Registry interface that validates caller payloads,
// enforces ownership on every mutation and gates reads through an access
// matrix. Persistence is delegated to a transactional Store; in-memory and
// Postgres implementations are provided under the repo subpackages.
//
// State Model
//
// The registry owns three pieces of state reached through a Store
// transaction: the content vault (id -> ContentRecord), the sequence
// counter that hands out identifiers, and the access matrix of
// (id, principal) -> bool grants. Every operation runs under one registry
// lock and one store transaction, so a call either commits all of its
// writes or none of them.
//
// Identifiers are never reused. Deleting a record leaves its grants in the
// matrix unless the registry is built with WithGrantCascade(true); such
// grants are inert because every operation checks that the record exists
// before consulting the matrix.
package registry
