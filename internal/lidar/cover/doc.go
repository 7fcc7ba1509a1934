// Package cover computes canopy cover: the percentage of returns per cell
// that stand higher than a threshold above the ground.
//
// Heights are normalised against the nearest ground point rather than a
// gridded terrain model, so no grid discretisation enters the height.
package cover
