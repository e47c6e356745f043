// Package sqlite contains the SQLite repository for simulation run
// records.
//
// All database read/write operations for runs belong here rather than
// in internal/echo. This keeps the synthesis engine free of SQL noise
// and makes it easier to swap storage backends for testing.
package sqlite
