// Package sqlitestore persists jobs, their timelines, and users in SQLite.
//
// It is the default record store. Timeline entries live in their own table
// and are only ever inserted, so concurrent appends to the same job never
// overwrite each other. Press renumbering batches run in one transaction.
package sqlitestore
