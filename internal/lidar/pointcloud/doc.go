// Package pointcloud owns the classified point cloud consumed by the
// canopy pipeline.
//
// Responsibilities: the Point/Cloud data model, ground/non-ground split,
// planimetric extent, and decoding of LAS and PCD files including the
// coordinate reference system embedded in LAS variable length records.
// Key types: Point, Cloud, CRS, Extent.
//
// Dependency rule: pointcloud depends on nothing else in internal/lidar.
package pointcloud
