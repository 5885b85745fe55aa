// Package history owns the append-only audit logs.
//
// Three tables back it: loan_history, reservation_history, and
// user_action_history. The Recorder writes entries inside the caller's
// transaction so an audit row can never describe a change that was
// rolled back, and a change can never commit without its audit row.
// Rows are immutable once written; the only read surface is the list
// endpoints exposed by the Handler.
package history
