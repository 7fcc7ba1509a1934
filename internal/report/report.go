package report

import (
	"fmt"
	"math"

	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/raster"
)

// Report is the content shared by every preview format.
type Report struct {
	Title    string
	Subtitle string
	Unit     string
	Raster   *raster.Raster
	Summary  raster.Summary
}

// New builds a Report for r and computes its summary.
func New(title, unit string, r *raster.Raster) (*Report, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	def := r.Surface.Def
	return &Report{
		Title:    title,
		Subtitle: fmt.Sprintf("%d x %d cells at %g, %s", def.Cols, def.Rows, def.Resolution, r.CRS),
		Unit:     unit,
		Raster:   r,
		Summary:  raster.Summarize(r.Surface),
	}, nil
}

// valueRange returns the colour scale bounds, widened when the surface
// is flat or has no value at all.
func (rep *Report) valueRange() (lo, hi float64) {
	if rep.Summary.Valued == 0 {
		return 0, 1
	}
	lo, hi = rep.Summary.Min, rep.Summary.Max
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// surfaceGrid adapts a surface to gonum/plot's GridXYZ. Plot rows run
// south to north, the reverse of the surface.
type surfaceGrid struct {
	s *grid.Surface
}

func (g surfaceGrid) Dims() (c, r int) { return g.s.Def.Cols, g.s.Def.Rows }

func (g surfaceGrid) Z(c, r int) float64 {
	v := g.s.At(g.s.Def.Rows-1-r, c)
	if !grid.IsValue(v) {
		return math.NaN()
	}
	return float64(v)
}

func (g surfaceGrid) X(c int) float64 {
	x, _ := g.s.Def.CellCenter(0, c)
	return x
}

func (g surfaceGrid) Y(r int) float64 {
	_, y := g.s.Def.CellCenter(g.s.Def.Rows-1-r, 0)
	return y
}
