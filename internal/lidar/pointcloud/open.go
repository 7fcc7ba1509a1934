package pointcloud

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/canopy.report/internal/fsutil"
)

// ErrUnsupportedFormat is returned for file extensions with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported point cloud format")

// Format identifies an on-disk point cloud encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatLAS
	FormatLAZ
	FormatPCD
)

func (f Format) String() string {
	switch f {
	case FormatLAS:
		return "las"
	case FormatLAZ:
		return "laz"
	case FormatPCD:
		return "pcd"
	default:
		return "unknown"
	}
}

// FormatOf infers the encoding from a file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".las":
		return FormatLAS
	case ".laz":
		return FormatLAZ
	case ".pcd":
		return FormatPCD
	default:
		return FormatUnknown
	}
}

// Open reads and decodes the point cloud at path through fsys. Errors are
// wrapped with the path so callers can surface them directly.
func Open(fsys fsutil.FileSystem, path string) (*Cloud, error) {
	format := FormatOf(path)
	switch format {
	case FormatUnknown:
		return nil, fmt.Errorf("open %s: %w (want .las, .laz or .pcd)", path, ErrUnsupportedFormat)
	case FormatLAZ:
		return nil, fmt.Errorf("open %s: %w", path, ErrCompressed)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var cloud *Cloud
	switch format {
	case FormatLAS:
		cloud, err = ReadLAS(f)
	case FormatPCD:
		cloud, err = ReadPCD(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	diagf("loaded %d points (%d ground) from %s, crs=%s", cloud.Len(), cloud.CountGround(), path, cloud.CRS)
	return cloud, nil
}
