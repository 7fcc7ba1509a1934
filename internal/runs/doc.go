// Package runs records the history of canopy analyses in SQLite: one row
// per run with its parameters, outcome, grid shape, point counts and value
// summary. The schema is managed with embedded golang-migrate migrations.
package runs
