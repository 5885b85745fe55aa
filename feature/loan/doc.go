// Package loan owns borrow and return transactions.
//
// Every borrow runs check-then-write under a row lock on the item, so
// the at-most-one-open-loan rule holds without a storage constraint.
// Returns are idempotent and settle the item through the post-return
// policy: next confirmed reservation, remaining scheduled loan, or
// back to AVAILABLE. OVERDUE is derived at read time from the due
// date; the stored status column never holds it.
package loan
