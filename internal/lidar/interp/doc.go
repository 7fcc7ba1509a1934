// Package interp turns scattered elevation samples into gridded surfaces.
//
// Linear interpolates inside a Delaunay triangulation and leaves locations
// outside the convex hull unresolved. Nearest answers with the closest
// sample via a k-d tree. Fill composes the two: primary everywhere, then
// fallback only where primary left NaN.
package interp
