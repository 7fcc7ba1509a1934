package pointcloud

import "fmt"

// CRS describes the coordinate reference system of a cloud. LAS files carry
// either an OGC WKT string or a GeoTIFF key directory; for the latter only
// the EPSG code is retained.
type CRS struct {
	WKT  string
	EPSG int
}

// IsZero reports whether no CRS information is present.
func (c CRS) IsZero() bool {
	return c.WKT == "" && c.EPSG == 0
}

func (c CRS) String() string {
	switch {
	case c.EPSG != 0:
		return fmt.Sprintf("EPSG:%d", c.EPSG)
	case c.WKT != "":
		if len(c.WKT) > 48 {
			return c.WKT[:48] + "..."
		}
		return c.WKT
	default:
		return "unknown"
	}
}
