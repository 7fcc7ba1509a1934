package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/canopy.report/internal/fsutil"
)

// PreviewSize is the edge length of PNG previews.
const PreviewSize = 8 * vg.Inch

// WritePreviewPNG renders rep as a heat map PNG at path. NoData cells are
// left transparent.
func WritePreviewPNG(fsys fsutil.FileSystem, path string, rep *Report) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s\n%s", rep.Title, rep.Subtitle)
	p.X.Label.Text = "Easting"
	p.Y.Label.Text = "Northing"

	lo, hi := rep.valueRange()
	pal := palette.Heat(32, 1)
	hm := plotter.NewHeatMap(surfaceGrid{s: rep.Raster.Surface}, pal)
	hm.Min, hm.Max = lo, hi
	hm.NaN = color.Transparent
	p.Add(hm)

	wt, err := p.WriterTo(PreviewSize, PreviewSize, "png")
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
