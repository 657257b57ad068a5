// Package mongostore implements the record store on MongoDB.
//
// Jobs live in one collection with their timeline embedded as an array, so a
// timeline append and the matching metric update land in a single document
// write. Appends are guarded by the stored array length, giving the same
// lost-update protection the SQLite backend gets from its transactions.
package mongostore
