package surface

import (
	"errors"
	"fmt"

	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/lidar/interp"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

// ErrNoGroundPoints is returned when no ground-classified point exists.
var ErrNoGroundPoints = errors.New("no ground points found; cannot build a terrain model")

// BuildDTM interpolates the ground points onto def. Cells inside the convex
// hull of the ground points are interpolated linearly on their Delaunay
// triangulation; the remaining cells take the elevation of the nearest
// ground point.
func BuildDTM(ground []pointcloud.Point, def grid.Definition) (*grid.Surface, error) {
	if len(ground) == 0 {
		return nil, ErrNoGroundPoints
	}
	samples := make([]interp.Sample, len(ground))
	for i, p := range ground {
		samples[i] = interp.Sample{X: p.X, Y: p.Y, Z: p.Z}
	}

	linear, err := interp.NewLinear(samples)
	if err != nil {
		return nil, fmt.Errorf("triangulate %d ground points: %w", len(ground), err)
	}
	nearest, err := interp.NewNearest(samples)
	if err != nil {
		return nil, fmt.Errorf("index ground points: %w", err)
	}

	dtm, st := interp.Fill(def, linear, nearest)
	if st.Unresolved > 0 {
		opsf("DTM left %d of %d cells unresolved", st.Unresolved, def.Len())
	}
	diagf("DTM %s: %d linear, %d nearest-filled", def, st.Primary, st.Fallback)
	return dtm, nil
}

// BuildDSM records the maximum Z of the non-ground points falling in each
// cell, then copies the DTM value into every cell no point reached. Points
// outside the grid are ignored.
func BuildDSM(nonGround []pointcloud.Point, def grid.Definition, dtm *grid.Surface) (*grid.Surface, error) {
	if dtm == nil || dtm.Def != def || len(dtm.Data) != def.Len() {
		return nil, fmt.Errorf("DSM: %w", grid.ErrShapeMismatch)
	}

	dsm := grid.NewSurface(def, grid.NoData)
	touched := make([]bool, def.Len())
	dropped := 0
	for _, p := range nonGround {
		row, col, ok := def.CellIndex(p.X, p.Y)
		if !ok {
			dropped++
			continue
		}
		i := def.Index(row, col)
		z := float32(p.Z)
		if !touched[i] || z > dsm.Data[i] {
			dsm.Data[i] = z
			touched[i] = true
		}
	}

	filled := 0
	for i, hit := range touched {
		if !hit {
			dsm.Data[i] = dtm.Data[i]
			filled++
		}
	}
	if dropped > 0 {
		diagf("DSM ignored %d points outside the grid", dropped)
	}
	diagf("DSM %s: %d cells with returns, %d back-filled from DTM", def, def.Len()-filled, filled)
	return dsm, nil
}

// CombineCHM returns dsm - dtm with negative heights clamped to zero. Cells
// whose DTM (or DSM) has no value are NoData.
func CombineCHM(dtm, dsm *grid.Surface) (*grid.Surface, error) {
	if !dtm.SameShape(dsm) {
		return nil, fmt.Errorf("CHM: %w", grid.ErrShapeMismatch)
	}

	chm := grid.NewSurface(dtm.Def, 0)
	nodata := 0
	for i, ground := range dtm.Data {
		top := dsm.Data[i]
		if !grid.IsValue(ground) || !grid.IsValue(top) {
			chm.Data[i] = grid.NoData
			nodata++
			continue
		}
		if h := top - ground; h > 0 {
			chm.Data[i] = h
		}
	}
	diagf("CHM %s: %d no-data cells", dtm.Def, nodata)
	return chm, nil
}
