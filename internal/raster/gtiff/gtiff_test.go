package gtiff

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
	"github.com/banshee-data/canopy.report/internal/raster"
)

func TestWriter_RoundTrip(t *testing.T) {
	def := grid.Definition{OriginX: 500000, OriginYMax: 4100020, MinY: 4100000, Resolution: 10, Rows: 2, Cols: 3}
	s := grid.NewSurface(def, 0)
	copy(s.Data, []float32{1, 2, 3, grid.NoData, float32(math.NaN()), 6.5})

	out := filepath.Join(t.TempDir(), "chm.tif")
	w := NewWriter()
	require.NoError(t, w.Write(out, &raster.Raster{Surface: s, CRS: pointcloud.CRS{EPSG: 32633}}))
	assert.False(t, fsutil.OSFileSystem{}.Exists(raster.TempPath(out)))

	ds, err := godal.Open(out)
	require.NoError(t, err)
	defer ds.Close()

	st := ds.Structure()
	assert.Equal(t, 3, st.SizeX)
	assert.Equal(t, 2, st.SizeY)
	assert.Equal(t, 1, st.NBands)

	gt, err := ds.GeoTransform()
	require.NoError(t, err)
	assert.Equal(t, [6]float64{500000, 10, 0, 4100020, 0, -10}, gt)
	assert.Contains(t, ds.Projection(), "32633")

	band := ds.Bands()[0]
	nd, ok := band.NoData()
	require.True(t, ok)
	assert.Equal(t, -9999.0, nd)

	buf := make([]float32, 6)
	require.NoError(t, band.Read(0, 0, buf, 3, 2))
	assert.Equal(t, []float32{1, 2, 3, grid.NoData, grid.NoData, 6.5}, buf, "NaN cells are written as NoData")
}

func TestWriter_Invalid(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bad.tif")
	err := NewWriter().Write(out, &raster.Raster{})
	assert.ErrorIs(t, err, raster.ErrEmptyRaster)
	assert.False(t, fsutil.OSFileSystem{}.Exists(out))
}
