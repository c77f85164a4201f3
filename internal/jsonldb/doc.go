// Package jsonldb provides a generic, concurrent-safe, JSONL-backed data store.
//
// # Overview
//
// The package centers around [Table], a generic container that stores rows in a
// JSONL (JSON Lines) file with full in-memory caching for fast reads. Tables are
// safe for concurrent use by multiple goroutines.
//
// # Writes
//
// [Table.Append] appends one line. [Table.Replace] rewrites the whole file through
// a temp file and a rename, so readers of the file never observe a partial table.
//
// # Reloading
//
// [Table.Reload] re-reads the file, used when another process edited it.
package jsonldb
