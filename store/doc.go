// Package store keeps a SQLite history of conformance runs, so that results can be compared
// across runs. Each run and each of its policy results is one row.
package store
