// Package models defines the core domain models for splitledger.
//
// # Records
//
// The balance engine only ever reads three kinds of record:
//   - Expense: a shared cost or a settle-up payment between users
//   - Group: a set of members that expenses can belong to
//   - User: display metadata, never used in arithmetic
//
// Participant is a transient calculation input. It carries the raw value a
// user typed into the split form and receives the computed share.
//
// # Design Principles
//
//  1. **Closed tags**: string tags coming from storage are parsed into closed
//     enum types with an explicit Unknown variant instead of failing.
//  2. **IDs, not pointers**: relationships are expressed with ID strings.
//  3. **Immutable snapshots**: records handed to the calculator are treated as
//     read-only values; nothing in the core mutates them.
//
// # Non-group expenses
//
// Expenses between friends outside of any group carry the NonGroupID sentinel
// as their GroupID. An empty GroupID is treated the same way.
package models
