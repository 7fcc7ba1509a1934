// Package classify assigns ASPRS ground codes to unclassified point clouds
// by delegating to an external tool. The canopy products only consume the
// result; the ground filter itself lives in PDAL.
package classify
