// Package api serves the analysis run history: a JSON listing of runs,
// individual run records, and the stored HTML report of each run.
package api
