// Package pipeline orchestrates one canopy analysis.
//
// Compute runs the in-memory reduction on a classified cloud: the grid is
// defined once, then either the height branch (DTM, DSM, CHM) or the cover
// branch (normalise, tally, cover) produces the output surface. Runner wraps
// Compute with the file-level steps around it: optional ground
// classification, reading, writing, previews and run history. Every failure
// is reported as a StageError naming the stage and file involved.
package pipeline
