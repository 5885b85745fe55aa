// Package inventory owns the lendable catalog.
//
// Items carry a stored reservation status plus a denormalized available
// flag. Both are derived state: loans and reservations are the source
// of truth, and the Reconciler re-derives them inside every transaction
// that touches an item, repairing any drift before it can be observed.
// Status changes through the update API are only accepted while the
// derivation allows them; BORROWED in particular can never be set by
// hand. Photos live in object storage keyed by item ID.
package inventory
