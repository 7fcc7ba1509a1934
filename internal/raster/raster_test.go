package raster

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

func testSurface() *grid.Surface {
	def := grid.Definition{OriginX: 500000, OriginYMax: 4100002, MinY: 4100000, Resolution: 1, Rows: 2, Cols: 3}
	s := grid.NewSurface(def, 0)
	copy(s.Data, []float32{1.5, 2, grid.NoData, 0, float32(math.NaN()), 12.25})
	return s
}

func TestESRIWriter(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w := &ESRIWriter{FS: fsys}
	r := &Raster{Surface: testSurface(), CRS: pointcloud.CRS{WKT: `PROJCS["WGS 84 / UTM zone 33N"]`}}

	require.NoError(t, w.Write("/out/chm.asc", r))

	data, err := fsys.ReadFile("/out/chm.asc")
	require.NoError(t, err)
	want := strings.Join([]string{
		"ncols 3",
		"nrows 2",
		"xllcorner 500000",
		"yllcorner 4100000",
		"cellsize 1",
		"NODATA_value -9999",
		"1.5 2 -9999",
		"0 -9999 12.25",
		"",
	}, "\n")
	assert.Equal(t, want, string(data))

	prj, err := fsys.ReadFile("/out/chm.prj")
	require.NoError(t, err)
	assert.Equal(t, r.CRS.WKT, string(prj))

	assert.False(t, fsys.Exists(TempPath("/out/chm.asc")), "temporary file must be renamed away")
}

func TestESRIWriter_EPSGOnlySkipsPrj(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w := &ESRIWriter{FS: fsys}
	require.NoError(t, w.Write("/cover.asc", &Raster{Surface: testSurface(), CRS: pointcloud.CRS{EPSG: 32633}}))
	assert.True(t, fsys.Exists("/cover.asc"))
	assert.False(t, fsys.Exists("/cover.prj"))
}

func TestESRIWriter_Invalid(t *testing.T) {
	w := &ESRIWriter{FS: fsutil.NewMemoryFileSystem()}

	err := w.Write("/x.asc", &Raster{})
	assert.ErrorIs(t, err, ErrEmptyRaster)

	s := testSurface()
	s.Data = s.Data[:4]
	err = w.Write("/x.asc", &Raster{Surface: s})
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

// failingFS refuses renames so the commit step fails.
type failingFS struct {
	*fsutil.MemoryFileSystem
}

func (failingFS) Rename(string, string) error { return errors.New("rename refused") }

func TestESRIWriter_FailedCommitLeavesNothing(t *testing.T) {
	fsys := failingFS{fsutil.NewMemoryFileSystem()}
	w := &ESRIWriter{FS: fsys}

	err := w.Write("/out.asc", &Raster{Surface: testSurface()})
	require.Error(t, err)
	assert.False(t, fsys.Exists("/out.asc"))
	assert.False(t, fsys.Exists(TempPath("/out.asc")))
}

func TestTempPath(t *testing.T) {
	assert.Equal(t, "/a/b.partial.tif", TempPath("/a/b.tif"))
	assert.Equal(t, "noext.partial", TempPath("noext"))
}

func TestSummarize(t *testing.T) {
	s := testSurface()
	sum := Summarize(s)
	assert.Equal(t, 6, sum.Cells)
	assert.Equal(t, 4, sum.Valued)
	assert.Equal(t, 0.0, sum.Min)
	assert.Equal(t, 12.25, sum.Max)
	assert.InDelta(t, (1.5+2+0+12.25)/4, sum.Mean, 1e-12)
	assert.Greater(t, sum.StdDev, 0.0)
	assert.LessOrEqual(t, sum.P10, sum.P50)
	assert.LessOrEqual(t, sum.P50, sum.P90)
	assert.Contains(t, sum.String(), "4/6 cells valued")
}

func TestSummarize_Degenerate(t *testing.T) {
	def := grid.Definition{Resolution: 1, Rows: 1, Cols: 2, OriginYMax: 1}

	empty := Summarize(grid.NewSurface(def, grid.NoData))
	assert.Equal(t, Summary{Cells: 2}, empty)

	one := grid.NewSurface(def, grid.NoData)
	one.Data[1] = 7
	sum := Summarize(one)
	assert.Equal(t, 1, sum.Valued)
	assert.Equal(t, 7.0, sum.Mean)
	assert.Equal(t, 0.0, sum.StdDev)
	assert.Equal(t, 7.0, sum.P90)
}
