package cover

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/lidar/interp"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

var (
	// ErrNoGroundPoints is returned when no ground point is available for normalisation.
	ErrNoGroundPoints = errors.New("no ground points found; cannot normalize heights")
	// ErrInvalidThreshold is returned for a NaN or infinite height threshold.
	ErrInvalidThreshold = errors.New("height threshold must be finite")
)

// NormalizeHeights returns, for every point, its Z minus the Z of the
// planimetrically nearest ground point. The result is index-aligned with
// points; no point is dropped.
func NormalizeHeights(points, ground []pointcloud.Point) ([]float64, error) {
	if len(ground) == 0 {
		return nil, ErrNoGroundPoints
	}
	samples := make([]interp.Sample, len(ground))
	for i, g := range ground {
		samples[i] = interp.Sample{X: g.X, Y: g.Y, Z: g.Z}
	}
	nn, err := interp.NewNearest(samples)
	if err != nil {
		return nil, fmt.Errorf("index ground points: %w", err)
	}

	heights := make([]float64, len(points))
	for i, p := range points {
		gz, _ := nn.Interpolate(p.X, p.Y)
		heights[i] = p.Z - gz
	}
	diagf("normalized %d points against %d ground points", len(points), len(ground))
	return heights, nil
}

// Tally holds per-cell return counts. Total counts every return in the
// cell; Above counts those whose normalised height strictly exceeds
// Threshold.
type Tally struct {
	Def       grid.Definition
	Threshold float64
	Total     []int32
	Above     []int32
	Dropped   int
}

// TallyReturns bins points into def and counts total and above-threshold
// returns per cell. heights must be index-aligned with points. Points
// outside the grid are counted in Dropped only.
func TallyReturns(points []pointcloud.Point, heights []float64, def grid.Definition, threshold float64) (*Tally, error) {
	if len(points) != len(heights) {
		return nil, fmt.Errorf("tally: %d points but %d heights", len(points), len(heights))
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, ErrInvalidThreshold
	}

	t := &Tally{
		Def:       def,
		Threshold: threshold,
		Total:     make([]int32, def.Len()),
		Above:     make([]int32, def.Len()),
	}
	for i, p := range points {
		row, col, ok := def.CellIndex(p.X, p.Y)
		if !ok {
			t.Dropped++
			continue
		}
		idx := def.Index(row, col)
		t.Total[idx]++
		if heights[i] > threshold {
			t.Above[idx]++
		}
	}
	if t.Dropped > 0 {
		diagf("tally ignored %d points outside the grid", t.Dropped)
	}
	return t, nil
}

// Cover returns 100*Above/Total per cell, or NoData where Total is zero.
func (t *Tally) Cover() *grid.Surface {
	s := grid.NewSurface(t.Def, grid.NoData)
	for i, total := range t.Total {
		if total > 0 {
			s.Data[i] = float32(float64(100*int64(t.Above[i])) / float64(total))
		}
	}
	return s
}
