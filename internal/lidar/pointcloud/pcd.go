package pointcloud

import (
	"fmt"
	"io"

	"github.com/seqsense/pcgol/pc"
)

// classificationFields are the PCD field names searched, in order, for the
// per-point class code.
var classificationFields = []string{"classification", "label"}

// unclassifiedCode is assigned when a PCD file carries no class field.
const unclassifiedCode uint8 = 1

// ReadPCD decodes a PCD file. Coordinates come from the x/y/z fields and
// the class code from "classification" or "label". PCD carries no CRS.
func ReadPCD(r io.Reader) (*Cloud, error) {
	pp, err := pc.Unmarshal(r)
	if err != nil {
		return nil, fmt.Errorf("decode PCD: %w", err)
	}
	return FromPCD(pp)
}

// FromPCD converts an in-memory pcgol cloud.
func FromPCD(pp *pc.PointCloud) (*Cloud, error) {
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, fmt.Errorf("PCD xyz fields: %w", err)
	}

	classOf, err := pcdClassReader(pp)
	if err != nil {
		return nil, err
	}

	cloud := &Cloud{Points: make([]Point, 0, pp.Points)}
	for it.IsValid() {
		v := it.Vec3()
		cloud.Points = append(cloud.Points, Point{
			X:              float64(v[0]),
			Y:              float64(v[1]),
			Z:              float64(v[2]),
			Classification: classOf(),
		})
		it.Incr()
	}
	if cloud.Len() == 0 {
		diagf("PCD contained no points")
	}
	return cloud, nil
}

// pcdClassReader returns a closure yielding the class of the next point on
// each call.
func pcdClassReader(pp *pc.PointCloud) (func() uint8, error) {
	for _, name := range classificationFields {
		idx := -1
		for i, f := range pp.Fields {
			if f == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		if pp.Size[idx] != 4 {
			return nil, fmt.Errorf("PCD field %q has size %d, want 4", name, pp.Size[idx])
		}
		switch pp.Type[idx] {
		case "U", "I":
			lt, err := pp.Uint32Iterator(name)
			if err != nil {
				return nil, fmt.Errorf("PCD field %q: %w", name, err)
			}
			return func() uint8 {
				v := lt.Uint32()
				lt.Incr()
				return uint8(v)
			}, nil
		case "F":
			ft, err := pp.Float32Iterator(name)
			if err != nil {
				return nil, fmt.Errorf("PCD field %q: %w", name, err)
			}
			return func() uint8 {
				v := ft.Float32()
				ft.Incr()
				return uint8(v)
			}, nil
		default:
			return nil, fmt.Errorf("PCD field %q has unsupported type %q", name, pp.Type[idx])
		}
	}
	diagf("PCD has no classification field; treating all points as unclassified")
	return func() uint8 { return unclassifiedCode }, nil
}
