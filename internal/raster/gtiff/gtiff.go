// Package gtiff writes rasters as single-band float32 GeoTIFFs through GDAL.
package gtiff

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/raster"
)

var registerOnce sync.Once

// DefaultCreationOptions are the GTiff creation options used when a Writer
// has none configured.
var DefaultCreationOptions = []string{"TILED=YES", "COMPRESS=DEFLATE"}

// Writer writes GeoTIFF files. GDAL writes to the OS filesystem directly;
// FS only performs the final rename and cleanup.
type Writer struct {
	CreationOptions []string
	FS              fsutil.FileSystem
}

// NewWriter returns a Writer with the default creation options.
func NewWriter() *Writer {
	return &Writer{CreationOptions: DefaultCreationOptions, FS: fsutil.OSFileSystem{}}
}

// Write encodes r at path with geotransform
// [OriginX, res, 0, OriginYMax, 0, -res] and NoData -9999.
func (w *Writer) Write(path string, r *raster.Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	registerOnce.Do(godal.RegisterAll)

	fsys := w.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	tmp := raster.TempPath(path)
	if err := w.encode(tmp, r); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

func (w *Writer) encode(path string, r *raster.Raster) (err error) {
	s := r.Surface
	def := s.Def

	var opts []godal.DatasetCreateOption
	if len(w.CreationOptions) > 0 {
		opts = append(opts, godal.CreationOption(w.CreationOptions...))
	}
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, def.Cols, def.Rows, opts...)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close dataset: %w", cerr)
		}
	}()

	if err := ds.SetGeoTransform(def.Transform()); err != nil {
		return fmt.Errorf("set geotransform: %w", err)
	}
	if err := setCRS(ds, r); err != nil {
		return err
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(float64(grid.NoData)); err != nil {
		return fmt.Errorf("set nodata: %w", err)
	}

	buf := make([]float32, len(s.Data))
	for i, v := range s.Data {
		if !grid.IsValue(v) {
			v = grid.NoData
		}
		buf[i] = v
	}
	if err := band.Write(0, 0, buf, def.Cols, def.Rows); err != nil {
		return fmt.Errorf("write band: %w", err)
	}
	return nil
}

func setCRS(ds *godal.Dataset, r *raster.Raster) error {
	switch {
	case r.CRS.WKT != "":
		if err := ds.SetProjection(r.CRS.WKT); err != nil {
			return fmt.Errorf("set projection: %w", err)
		}
	case r.CRS.EPSG != 0:
		sr, err := godal.NewSpatialRefFromEPSG(r.CRS.EPSG)
		if err != nil {
			return fmt.Errorf("EPSG:%d: %w", r.CRS.EPSG, err)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("set spatial reference: %w", err)
		}
	}
	return nil
}
