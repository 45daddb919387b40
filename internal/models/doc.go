// Package models defines the core domain models for Halver.
//
// # Entities
//
//   - Bill: a shared obligation owed to one creditor, split among participants
//   - BillAction: one participant's slice of a bill, with its own fee breakdown
//     and settlement status
//   - BillArrear: a missed recurring charge on an action, settled separately
//   - BillTransaction: the append-only ledger of completed settlements
//   - PaystackTransaction / PaystackTransfer / PaystackSubscription /
//     PaystackPlan: local mirrors of gateway-side objects, created from
//     webhook payloads
//
// # Design principles
//
//  1. Entities reference each other by ID strings, never by pointers, to avoid
//     circular references and keep rows storable as-is.
//  2. Every entity carries a public opaque UUID; internal sequential IDs are
//     never exposed outside the store.
//  3. Money is decimal.Decimal everywhere. Float money does not exist in this
//     package.
//  4. Status fields are typed string enums so transitions can be validated in
//     one place (internal/settlement).
package models
