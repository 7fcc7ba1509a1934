package pointcloud

import (
	"errors"
	"math"
)

// GroundClass is the ASPRS classification code for ground returns.
// Every other code is treated as non-ground.
const GroundClass uint8 = 2

// ErrEmptyCloud is returned when an operation needs at least one point.
var ErrEmptyCloud = errors.New("point cloud is empty")

// Point is a single classified LiDAR return in a projected coordinate system.
type Point struct {
	X, Y, Z        float64 // Projected position (same linear unit as the raster resolution)
	Classification uint8   // ASPRS classification code
}

// IsGround reports whether the point carries the ground classification.
func (p Point) IsGround() bool {
	return p.Classification == GroundClass
}

// Cloud is an ordered set of points plus the coordinate reference system
// they were captured in.
type Cloud struct {
	Points []Point
	CRS    CRS
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// Split partitions the cloud into ground and non-ground points, preserving
// input order in both slices.
func (c *Cloud) Split() (ground, nonGround []Point) {
	if c == nil {
		return nil, nil
	}
	for _, p := range c.Points {
		if p.IsGround() {
			ground = append(ground, p)
		} else {
			nonGround = append(nonGround, p)
		}
	}
	return ground, nonGround
}

// CountGround returns the number of ground-classified points.
func (c *Cloud) CountGround() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, p := range c.Points {
		if p.IsGround() {
			n++
		}
	}
	return n
}

// Extent is an axis-aligned planimetric bounding box.
type Extent struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Valid reports whether the extent is finite and non-inverted.
func (e Extent) Valid() bool {
	for _, v := range [4]float64{e.MinX, e.MinY, e.MaxX, e.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// Extent returns the XY bounding box of all points in the cloud.
func (c *Cloud) Extent() (Extent, error) {
	if c.Len() == 0 {
		return Extent{}, ErrEmptyCloud
	}
	return ExtentOf(c.Points)
}

// ExtentOf returns the XY bounding box of pts.
func ExtentOf(pts []Point) (Extent, error) {
	if len(pts) == 0 {
		return Extent{}, ErrEmptyCloud
	}
	e := Extent{
		MinX: pts[0].X, MaxX: pts[0].X,
		MinY: pts[0].Y, MaxY: pts[0].Y,
	}
	for _, p := range pts[1:] {
		e.MinX = math.Min(e.MinX, p.X)
		e.MaxX = math.Max(e.MaxX, p.X)
		e.MinY = math.Min(e.MinY, p.Y)
		e.MaxY = math.Max(e.MaxY, p.Y)
	}
	return e, nil
}
