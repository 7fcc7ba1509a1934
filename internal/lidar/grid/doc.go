// Package grid owns the raster lattice shared by every canopy product.
//
// Responsibilities: snapping a planimetric extent to a fixed-resolution
// grid, the single geo-to-cell mapping, cell centres, the affine
// geotransform, and the row-major float32 Surface container.
// Key types: Definition, Surface.
//
// Row 0 is the northern edge. NoData (-9999) marks cells with no value in
// finished products; NaN marks cells not yet resolved between
// interpolation stages and never leaves internal/lidar.
package grid
