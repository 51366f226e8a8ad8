// Package store provides SQLite-backed storage for ledgerql.
//
// The store holds:
//   - Documents: the fields, joins, aliases and categories documents read by
//     the schema registry. *Store implements schema.Supplier.
//   - Compilations: an append-only log of compiled formulas and their SQL.
//
// # Ordering
//
// Rows carry a seq INTEGER (logical clock), never timestamps. Listing queries
// order by seq or by key with COLLATE BINARY so results are identical across
// runs.
//
// # Identity
//
// Document hashes and compilation IDs are SHA-256 over a domain prefix, a
// 0x00 separator and the content, so equal content always gets the same ID.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
