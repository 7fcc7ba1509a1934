package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

// MaxCells bounds Rows*Cols so a tiny resolution over a large extent fails
// fast instead of exhausting memory.
const MaxCells = 1 << 30

var (
	// ErrInvalidResolution is returned for a non-positive or non-finite resolution.
	ErrInvalidResolution = errors.New("resolution must be a positive finite number")
	// ErrEmptyExtent is returned when the extent is not a finite, non-inverted box.
	ErrEmptyExtent = errors.New("extent is empty or invalid")
	// ErrTooLarge is returned when the grid would exceed MaxCells.
	ErrTooLarge = errors.New("grid too large")
)

// Definition is an immutable grid snapped to multiples of Resolution.
//
// OriginX and MinY are the snapped minimum corner. OriginYMax is the
// northern edge of row 0 (MinY + Rows*Resolution).
type Definition struct {
	OriginX    float64
	OriginYMax float64
	MinY       float64
	Resolution float64
	Rows       int
	Cols       int
}

// Define snaps ext to a grid of square cells of size resolution. The column
// count is the number of steps from the snapped minimum up to, but not
// including, the maximum X; rows likewise for Y. A degenerate axis yields
// one step.
func Define(ext pointcloud.Extent, resolution float64) (Definition, error) {
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return Definition{}, ErrInvalidResolution
	}
	if !ext.Valid() {
		return Definition{}, ErrEmptyExtent
	}

	originX := math.Floor(ext.MinX/resolution) * resolution
	minY := math.Floor(ext.MinY/resolution) * resolution
	cols := steps(originX, ext.MaxX, resolution)
	rows := steps(minY, ext.MaxY, resolution)
	if float64(rows)*float64(cols) > MaxCells {
		return Definition{}, fmt.Errorf("%w: %d x %d cells at resolution %g", ErrTooLarge, rows, cols, resolution)
	}

	return Definition{
		OriginX:    originX,
		OriginYMax: minY + float64(rows)*resolution,
		MinY:       minY,
		Resolution: resolution,
		Rows:       rows,
		Cols:       cols,
	}, nil
}

// steps counts the values start, start+res, ... strictly below stop, with a
// minimum of one.
func steps(start, stop, res float64) int {
	n := math.Ceil((stop - start) / res)
	if n < 1 {
		return 1
	}
	return int(n)
}

// Len returns Rows*Cols.
func (d Definition) Len() int {
	return d.Rows * d.Cols
}

// Index returns the row-major offset of (row, col).
func (d Definition) Index(row, col int) int {
	return row*d.Cols + col
}

// CellIndex maps a planimetric coordinate to its cell. ok is false when the
// coordinate falls outside the grid; such points are dropped by callers.
func (d Definition) CellIndex(x, y float64) (row, col int, ok bool) {
	fc := math.Floor((x - d.OriginX) / d.Resolution)
	fr := math.Floor((y - d.MinY) / d.Resolution)
	if math.IsNaN(fc) || math.IsNaN(fr) {
		return 0, 0, false
	}
	if fc < 0 || fc >= float64(d.Cols) || fr < 0 || fr >= float64(d.Rows) {
		return 0, 0, false
	}
	return d.Rows - 1 - int(fr), int(fc), true
}

// CellCenter returns the planimetric centre of (row, col).
func (d Definition) CellCenter(row, col int) (x, y float64) {
	x = d.OriginX + (float64(col)+0.5)*d.Resolution
	y = d.OriginYMax - (float64(row)+0.5)*d.Resolution
	return x, y
}

// Transform returns the GDAL-order affine geotransform of the grid's
// north-west corner: [originX, res, 0, originYMax, 0, -res].
func (d Definition) Transform() [6]float64 {
	return [6]float64{d.OriginX, d.Resolution, 0, d.OriginYMax, 0, -d.Resolution}
}

func (d Definition) String() string {
	return fmt.Sprintf("%dx%d @ %g (origin %.3f, %.3f)", d.Rows, d.Cols, d.Resolution, d.OriginX, d.OriginYMax)
}
