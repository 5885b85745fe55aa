// Package reservation owns bookings and their expiry.
//
// A booking is valid only if its window overlaps no CONFIRMED
// reservation of the same item; overlap is inclusive on both edges.
// Both the range check and the conflict check run before anything is
// written. Expired reservations are swept row by row, each in its own
// transaction: audit entry first, then deletion, then a reconcile of
// the item the booking was holding.
package reservation
