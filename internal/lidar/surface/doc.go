// Package surface builds the canopy height model rasters.
//
// BuildDTM interpolates bare-ground elevation at cell centres, BuildDSM
// takes the highest non-ground return per cell and back-fills empty cells
// from the DTM, and CombineCHM subtracts the two.
//
// Dependency rule: surface depends on pointcloud, grid and interp only.
package surface
