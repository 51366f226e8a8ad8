// Package fieldpath models one addressable column of the ledger schema.
//
// A field is identified by a backslash-delimited path code such as
// LA\CA\TREF. The first segment is the base table alias (the root), the last
// segment is the column (the leaf), and everything between names the chain of
// joined tables needed to reach it (the family).
//
//	code     LA\CA\X1\TREF
//	root     LA
//	family   LA\CA\X1
//	parent   CAX1          (SQL alias of the family)
//	leaf     TREF
//	child    CA\X1\TREF
//
// FieldPath values are immutable. The zero value is the Empty sentinel: every
// rendering and formatting method on it returns "".
//
// Typed literal formatting lives on Literals, which carries the clock used to
// substitute the current date for the "C" sentinel. Join emission lives on
// JoinClause, which resolves aliases and join conditions through a Resolver
// (implemented by schema.Registry).
package fieldpath
