// Package source loads table snapshots for comparison.
//
// A source identifier names where a snapshot comes from:
//
//	v1.csv                             CSV file on disk
//	csv:exports/v1.csv                 same, explicit scheme
//	postgres:parts                     every row of a PostgreSQL table
//	postgres:parts?upload_id=<uuid>    one upload batch of that table
//
// [Mux] dispatches identifiers to the [CSVLoader] or [PostgresLoader] by
// scheme. Every loader normalizes cells the same way (see [Normalizer]) so
// that equal values compare equal regardless of where they were read from.
// Failures are returned as *core.LoadError.
package source
