package raster

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar/grid"
)

// ESRIWriter writes ESRI ASCII grids (.asc). When the raster carries an
// OGC WKT string it is stored alongside as a .prj file.
type ESRIWriter struct {
	FS fsutil.FileSystem
}

// NewESRIWriter returns an ESRIWriter on the OS filesystem.
func NewESRIWriter() *ESRIWriter {
	return &ESRIWriter{FS: fsutil.OSFileSystem{}}
}

// Write encodes r at path. The lower-left corner in the header is the
// south-west edge of the grid; rows are written north first.
func (w *ESRIWriter) Write(path string, r *Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	fsys := w.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	tmp := TempPath(path)
	if err := writeESRI(fsys, tmp, r.Surface); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("commit %s: %w", path, err)
	}

	if r.CRS.WKT != "" {
		prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
		if err := fsys.WriteFile(prj, []byte(r.CRS.WKT), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", prj, err)
		}
	} else if !r.CRS.IsZero() {
		diagf("no WKT for %s; %s written without .prj", r.CRS, path)
	}
	return nil
}

func writeESRI(fsys fsutil.FileSystem, path string, s *grid.Surface) error {
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)

	def := s.Def
	fmt.Fprintf(bw, "ncols %d\n", def.Cols)
	fmt.Fprintf(bw, "nrows %d\n", def.Rows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(def.OriginX))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(def.MinY))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(def.Resolution))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(float64(grid.NoData)))

	for row := 0; row < def.Rows; row++ {
		for col := 0; col < def.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			v := s.At(row, col)
			if !grid.IsValue(v) {
				v = grid.NoData
			}
			bw.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
