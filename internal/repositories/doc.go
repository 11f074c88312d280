// Package repositories provides the persistence layer for sync jobs.
//
// [JobRepository] stores jobs and their track records in SQLite over
// database/sql. Candidate lists and rejected refs are serialized to JSON
// text columns; everything else maps to plain columns. Reads that must see
// a consistent job snapshot (job row plus ordered tracks) run inside a
// single transaction.
package repositories
