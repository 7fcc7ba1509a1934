// Package report renders quick-look previews of output rasters: a PNG heat
// map and a self-contained HTML page with an interactive heat map and a
// value histogram.
package report
