package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar/grid"
)

// AssetsHost serves the echarts JavaScript used by HTML reports.
const AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxHTMLEdge bounds the heat map to roughly this many cells per axis;
// larger grids are sampled with a stride.
const maxHTMLEdge = 250

const histogramBins = 20

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// RenderHTML writes a self-contained HTML page for rep to w.
func RenderHTML(w io.Writer, rep *Report) error {
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(heatMapChart(rep), histogramChart(rep))
	return page.Render(w)
}

// WriteHTML renders rep to path.
func WriteHTML(fsys fsutil.FileSystem, path string, rep *Report) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, rep); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func heatMapChart(rep *Report) *charts.HeatMap {
	s := rep.Raster.Surface
	def := s.Def
	stride := 1
	if edge := max(def.Rows, def.Cols); edge > maxHTMLEdge {
		stride = int(math.Ceil(float64(edge) / maxHTMLEdge))
	}

	var xs, ys []string
	for col := 0; col < def.Cols; col += stride {
		x, _ := def.CellCenter(0, col)
		xs = append(xs, strconv.FormatFloat(x, 'f', -1, 64))
	}
	// Category axes grow upward, so list rows south first.
	for row := def.Rows - 1; row >= 0; row -= stride {
		_, y := def.CellCenter(row, 0)
		ys = append(ys, strconv.FormatFloat(y, 'f', -1, 64))
	}

	data := make([]opts.HeatMapData, 0, len(xs)*len(ys))
	for yi := range ys {
		row := def.Rows - 1 - yi*stride
		for xi := range xs {
			v := s.At(row, xi*stride)
			if !grid.IsValue(v) {
				continue
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{xi, yi, v}})
		}
	}

	lo, hi := rep.valueRange()
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: rep.Title, Width: "900px", Height: "900px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: rep.Title, Subtitle: fmt.Sprintf("%s stride=%d", rep.Subtitle, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Easting", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "Northing", NameLocation: "middle", NameGap: 60}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Text:       []string{rep.Unit},
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xs).AddSeries(rep.Title, data)
	return hm
}

func histogramChart(rep *Report) *charts.Bar {
	labels, counts := histogram(rep.Raster.Surface, histogramBins)

	bars := make([]opts.BarData, len(counts))
	for i, c := range counts {
		bars[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Distribution", Subtitle: rep.Summary.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: rep.Unit, NameLocation: "middle", NameGap: 25}),
	)
	bar.SetXAxis(labels).AddSeries("cells", bars)
	return bar
}

// histogram bins the valued cells of s into n equal-width bins and returns
// the lower edge label and count of each.
func histogram(s *grid.Surface, n int) ([]string, []float64) {
	vals := make([]float64, 0, len(s.Data))
	for _, v := range s.Data {
		if grid.IsValue(v) {
			vals = append(vals, float64(v))
		}
	}
	if len(vals) == 0 {
		return nil, nil
	}
	sort.Float64s(vals)

	lo, hi := vals[0], vals[len(vals)-1]
	if hi <= lo {
		hi = lo + 1
	}
	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram needs the last divider strictly above the maximum.
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, vals, nil)
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strconv.FormatFloat(dividers[i], 'f', 1, 64)
	}
	return labels, counts
}
