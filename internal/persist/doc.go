// Package persist owns the single live database handle and its backing file.
//
// The live database is an in-memory SQLite database. Open copies the backing
// file into it (SQLite backup API) or starts empty when the file is absent.
// Every mutation goes through Mutate, which:
//
//  1. takes the single-writer lock
//  2. runs the caller's statements inside one transaction
//  3. commits
//  4. flushes the whole database to disk
//
// Flush writes VACUUM INTO <path>.tmp, fsyncs it and renames it over the
// backing file, so the file on disk is always a complete database from some
// committed state. A failed flush leaves the committed change in memory; the
// next successful flush persists it. Such failures wrap ErrFlush.
//
// # Connection configuration
//
//   - one connection (the in-memory database lives as long as it does)
//   - foreign_keys=ON
//   - busy_timeout=5000
package persist
