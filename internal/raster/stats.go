package raster

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/canopy.report/internal/lidar/grid"
)

// Summary describes the valued cells of a surface.
type Summary struct {
	Cells  int     `json:"cells"`
	Valued int     `json:"valued"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P10    float64 `json:"p10"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
}

// Summarize computes summary statistics over cells that are neither NaN
// nor NoData. Every statistic is zero when no cell has a value.
func Summarize(s *grid.Surface) Summary {
	sum := Summary{Cells: len(s.Data)}
	vals := make([]float64, 0, len(s.Data))
	for _, v := range s.Data {
		if grid.IsValue(v) {
			vals = append(vals, float64(v))
		}
	}
	sum.Valued = len(vals)
	if len(vals) == 0 {
		return sum
	}

	sort.Float64s(vals)
	sum.Min = floats.Min(vals)
	sum.Max = floats.Max(vals)
	sum.Mean, sum.StdDev = stat.MeanStdDev(vals, nil)
	if len(vals) == 1 {
		sum.StdDev = 0
	}
	sum.P10 = stat.Quantile(0.10, stat.Empirical, vals, nil)
	sum.P50 = stat.Quantile(0.50, stat.Empirical, vals, nil)
	sum.P90 = stat.Quantile(0.90, stat.Empirical, vals, nil)
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d cells valued, min=%.2f max=%.2f mean=%.2f sd=%.2f p50=%.2f",
		s.Valued, s.Cells, s.Min, s.Max, s.Mean, s.StdDev, s.P50)
}
