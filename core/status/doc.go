// Package status implements the item status reconciliation engine.
//
// An item's availability is not an independently settable field while a
// loan is outstanding — it is derived. This package is the single
// source of truth reconciling the two otherwise-independently-updatable
// tables (items and loans): any write path that can change loan state
// re-runs the engine against the affected item and corrects the stored
// status and available mirror when they disagree with the derived value.
//
// # Derivation
//
// Derive returns BORROWED whenever the item has an open loan (a
// non-returned SCHEDULED, ACTIVE, or OVERDUE loan) and passes the
// stored status through otherwise. CanModifyStatus gates direct status
// edits on the absence of open loans.
//
// # Reconciliation
//
// Reconcile produces a Plan: the desired stored status, the desired
// available mirror, the reserving user for RESERVED items, and the set
// of duplicate open loans to close. Reconcile is pure and idempotent;
// callers apply the plan inside the same transaction as the write that
// triggered it. The Reporter hook receives every changed plan so
// operators can audit how often stored state drifts.
//
// # Overdue loans
//
// OVERDUE is a time-derived display state. The stored loan status never
// holds it; EffectiveLoanStatus computes it from the due date at read
// time, keeping all read paths consistent at any given instant.
package status
