// Package fact holds compiled record-type descriptors and the fact
// instances built from them.
//
// A Type is produced once by the schema compiler and is immutable. A Fact
// is an ordered list of typed values tagged with its Type; its identity is
// the structural key computed by ir.FactKey, so two facts with equal field
// values are the same fact.
package fact
