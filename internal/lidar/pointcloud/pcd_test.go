package pointcloud

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/banshee-data/canopy.report/internal/fsutil"
)

func newPCD(t *testing.T, fields []string, types []string, vecs []mat.Vec3, classes []uint32) *pc.PointCloud {
	t.Helper()
	sizes := make([]int, len(fields))
	counts := make([]int, len(fields))
	for i := range fields {
		sizes[i], counts[i] = 4, 1
	}
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Fields: fields,
			Size:   sizes,
			Type:   types,
			Count:  counts,
			Width:  len(vecs),
			Height: 1,
		},
		Points: len(vecs),
	}
	pp.Data = make([]byte, len(vecs)*pp.Stride())

	it, err := pp.Vec3Iterator()
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vecs {
		it.SetVec3(v)
		it.Incr()
	}
	if classes != nil {
		lt, err := pp.Uint32Iterator(fields[3])
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range classes {
			lt.SetUint32(c)
			lt.Incr()
		}
	}
	return pp
}

func TestReadPCD_ClassificationField(t *testing.T) {
	vecs := []mat.Vec3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	pp := newPCD(t,
		[]string{"x", "y", "z", "classification"},
		[]string{"F", "F", "F", "U"},
		vecs, []uint32{2, 5, 2})

	var buf bytes.Buffer
	if err := pc.Marshal(pp, &buf); err != nil {
		t.Fatal(err)
	}

	cloud, err := ReadPCD(&buf)
	if err != nil {
		t.Fatalf("ReadPCD failed: %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("expected 3 points, got %d", cloud.Len())
	}
	if cloud.CountGround() != 2 {
		t.Errorf("expected 2 ground points, got %d", cloud.CountGround())
	}
	if cloud.Points[1].X != 4 || cloud.Points[1].Z != 6 {
		t.Errorf("unexpected point: %+v", cloud.Points[1])
	}
	if !cloud.CRS.IsZero() {
		t.Errorf("expected no CRS for PCD input, got %s", cloud.CRS)
	}
}

func TestFromPCD_LabelFallback(t *testing.T) {
	pp := newPCD(t,
		[]string{"x", "y", "z", "label"},
		[]string{"F", "F", "F", "U"},
		[]mat.Vec3{{0, 0, 0}, {1, 1, 1}}, []uint32{2, 3})

	cloud, err := FromPCD(pp)
	if err != nil {
		t.Fatalf("FromPCD failed: %v", err)
	}
	if got := cloud.Points[0].Classification; got != GroundClass {
		t.Errorf("expected ground class from label field, got %d", got)
	}
	if got := cloud.Points[1].Classification; got != 3 {
		t.Errorf("expected class 3, got %d", got)
	}
}

func TestFromPCD_NoClassification(t *testing.T) {
	pp := newPCD(t,
		[]string{"x", "y", "z"},
		[]string{"F", "F", "F"},
		[]mat.Vec3{{0, 0, 0}, {1, 1, 1}}, nil)

	cloud, err := FromPCD(pp)
	if err != nil {
		t.Fatalf("FromPCD failed: %v", err)
	}
	for i, p := range cloud.Points {
		if p.Classification != unclassifiedCode {
			t.Errorf("point %d: expected unclassified, got %d", i, p.Classification)
		}
	}
}

func TestOpen(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	var las bytes.Buffer
	if err := WriteLAS(&las, sampleCloud()); err != nil {
		t.Fatal(err)
	}
	if err := mfs.WriteFile("/data/site.LAS", las.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	pp := newPCD(t,
		[]string{"x", "y", "z", "classification"},
		[]string{"F", "F", "F", "U"},
		[]mat.Vec3{{0, 0, 0}}, []uint32{2})
	var pcd bytes.Buffer
	if err := pc.Marshal(pp, &pcd); err != nil {
		t.Fatal(err)
	}
	if err := mfs.WriteFile("/data/site.pcd", pcd.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	cloud, err := Open(mfs, "/data/site.LAS")
	if err != nil {
		t.Fatalf("Open las failed: %v", err)
	}
	if cloud.Len() != 4 || cloud.CRS.EPSG != 32610 {
		t.Errorf("unexpected LAS cloud: len=%d crs=%s", cloud.Len(), cloud.CRS)
	}

	cloud, err = Open(mfs, "/data/site.pcd")
	if err != nil {
		t.Fatalf("Open pcd failed: %v", err)
	}
	if cloud.Len() != 1 {
		t.Errorf("expected 1 PCD point, got %d", cloud.Len())
	}

	tests := []struct {
		path string
		want error
	}{
		{"/data/site.laz", ErrCompressed},
		{"/data/site.xyz", ErrUnsupportedFormat},
		{"/data/missing.las", nil},
	}
	for _, tt := range tests {
		_, err := Open(mfs, tt.path)
		if err == nil {
			t.Errorf("%s: expected error", tt.path)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.path, tt.want, err)
		}
	}
}

func TestCloudSplitAndExtent(t *testing.T) {
	c := sampleCloud()
	ground, nonGround := c.Split()
	if len(ground) != 2 || len(nonGround) != 2 {
		t.Fatalf("split sizes: ground=%d nonGround=%d", len(ground), len(nonGround))
	}
	if ground[0].X != 500000.125 || ground[1].X != 500020.75 {
		t.Errorf("split must preserve input order: %+v", ground)
	}

	ext, err := c.Extent()
	if err != nil {
		t.Fatal(err)
	}
	want := Extent{MinX: 500000.125, MinY: 4100000.5, MaxX: 500020.75, MaxY: 4100019.0}
	if ext != want {
		t.Errorf("extent = %+v, want %+v", ext, want)
	}
	if !ext.Valid() {
		t.Error("expected valid extent")
	}

	if _, err := (&Cloud{}).Extent(); !errors.Is(err, ErrEmptyCloud) {
		t.Errorf("expected ErrEmptyCloud, got %v", err)
	}
	if (Extent{MinX: math.NaN()}).Valid() {
		t.Error("NaN extent must be invalid")
	}
	if (Extent{MinX: 2, MaxX: 1}).Valid() {
		t.Error("inverted extent must be invalid")
	}
}

func TestCRSString(t *testing.T) {
	tests := []struct {
		crs  CRS
		want string
	}{
		{CRS{}, "unknown"},
		{CRS{EPSG: 2193}, "EPSG:2193"},
		{CRS{WKT: `GEOGCS["x"]`}, `GEOGCS["x"]`},
		{CRS{WKT: `PROJCS["a very long name that will certainly be truncated"]`}, `PROJCS["a very long name that will certainly be ...`},
	}
	for _, tt := range tests {
		if got := tt.crs.String(); got != tt.want {
			t.Errorf("CRS%+v.String() = %q, want %q", tt.crs, got, tt.want)
		}
	}
}
