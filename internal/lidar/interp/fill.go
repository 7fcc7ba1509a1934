package interp

import (
	"math"

	"github.com/banshee-data/canopy.report/internal/lidar/grid"
)

// Interpolator evaluates a surface at a planimetric location. ok is false
// when the location cannot be resolved.
type Interpolator interface {
	Interpolate(x, y float64) (v float64, ok bool)
}

// InterpolatorFunc adapts a function to Interpolator.
type InterpolatorFunc func(x, y float64) (float64, bool)

// Interpolate calls f(x, y).
func (f InterpolatorFunc) Interpolate(x, y float64) (float64, bool) {
	return f(x, y)
}

// FillStats counts how each cell of a filled surface was resolved.
type FillStats struct {
	Primary    int
	Fallback   int
	Unresolved int
}

// Fill evaluates primary at every cell centre of def, then evaluates
// fallback only at the cells primary left unresolved. Cells neither
// resolves stay NaN. fallback may be nil.
func Fill(def grid.Definition, primary, fallback Interpolator) (*grid.Surface, FillStats) {
	s := grid.Unresolved(def)
	var st FillStats

	for row := 0; row < def.Rows; row++ {
		for col := 0; col < def.Cols; col++ {
			x, y := def.CellCenter(row, col)
			if v, ok := primary.Interpolate(x, y); ok && !math.IsNaN(v) {
				s.Set(row, col, float32(v))
				st.Primary++
			}
		}
	}

	if fallback != nil && st.Primary < def.Len() {
		for row := 0; row < def.Rows; row++ {
			for col := 0; col < def.Cols; col++ {
				if !grid.IsNaN(s.At(row, col)) {
					continue
				}
				x, y := def.CellCenter(row, col)
				if v, ok := fallback.Interpolate(x, y); ok && !math.IsNaN(v) {
					s.Set(row, col, float32(v))
					st.Fallback++
				}
			}
		}
	}

	st.Unresolved = def.Len() - st.Primary - st.Fallback
	diagf("fill %s: primary=%d fallback=%d unresolved=%d", def, st.Primary, st.Fallback, st.Unresolved)
	return s, st
}
