package raster

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

// ErrEmptyRaster is returned when a writer is given no surface.
var ErrEmptyRaster = errors.New("raster has no surface")

// Raster is a surface plus the coordinate reference system of its grid.
type Raster struct {
	Surface *grid.Surface
	CRS     pointcloud.CRS
}

// Validate checks that the surface data matches its grid definition.
func (r *Raster) Validate() error {
	if r == nil || r.Surface == nil {
		return ErrEmptyRaster
	}
	def := r.Surface.Def
	if def.Rows <= 0 || def.Cols <= 0 {
		return fmt.Errorf("%w: %d x %d grid", ErrEmptyRaster, def.Rows, def.Cols)
	}
	if len(r.Surface.Data) != def.Len() {
		return fmt.Errorf("%w: %d values for %d cells", grid.ErrShapeMismatch, len(r.Surface.Data), def.Len())
	}
	return nil
}

// Writer persists a raster at path.
type Writer interface {
	Write(path string, r *Raster) error
}

// WriterFunc adapts an ordinary function to Writer.
type WriterFunc func(path string, r *Raster) error

// Write calls f.
func (f WriterFunc) Write(path string, r *Raster) error {
	return f(path, r)
}

// TempPath returns the in-progress name used while path is being written.
// The original extension is kept last so format sniffing still works.
func TempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".partial" + ext
}
