package cover

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

func pt(x, y, z float64, class uint8) pointcloud.Point {
	return pointcloud.Point{X: x, Y: y, Z: z, Classification: class}
}

func TestNormalizeHeights(t *testing.T) {
	ground := []pointcloud.Point{
		pt(0, 0, 100, 2),
		pt(10, 0, 110, 2),
	}
	points := []pointcloud.Point{
		pt(1, 1, 105, 5),  // nearest (0,0)
		pt(9, 0, 111, 5),  // nearest (10,0)
		pt(0, 0, 100, 2),  // ground itself
		pt(-40, 3, 90, 1), // far outside, still normalised
	}

	heights, err := NormalizeHeights(points, ground)
	if err != nil {
		t.Fatalf("NormalizeHeights failed: %v", err)
	}
	want := []float64{5, 1, 0, -10}
	if len(heights) != len(want) {
		t.Fatalf("expected %d heights, got %d", len(want), len(heights))
	}
	for i := range want {
		if heights[i] != want[i] {
			t.Errorf("height[%d] = %g, want %g", i, heights[i], want[i])
		}
	}
}

func TestNormalizeHeights_NoGround(t *testing.T) {
	_, err := NormalizeHeights([]pointcloud.Point{pt(0, 0, 0, 5)}, nil)
	if !errors.Is(err, ErrNoGroundPoints) {
		t.Fatalf("expected ErrNoGroundPoints, got %v", err)
	}
}

func TestTallyReturns(t *testing.T) {
	def := grid.Definition{OriginX: 0, OriginYMax: 20, MinY: 0, Resolution: 10, Rows: 2, Cols: 2}

	tests := []struct {
		name      string
		points    []pointcloud.Point
		heights   []float64
		threshold float64
		total     []int32
		above     []int32
		dropped   int
	}{
		{
			name: "strict threshold",
			points: []pointcloud.Point{
				pt(1, 1, 0, 5), pt(2, 2, 0, 5), pt(3, 3, 0, 5),
			},
			heights:   []float64{2, 2.0001, 1.9},
			threshold: 2,
			total:     []int32{0, 0, 3, 0},
			above:     []int32{0, 0, 1, 0},
		},
		{
			name: "outside points dropped",
			points: []pointcloud.Point{
				pt(15, 15, 0, 5), pt(20, 5, 0, 5), pt(5, 20, 0, 5), pt(-1, 5, 0, 5),
			},
			heights:   []float64{10, 10, 10, 10},
			threshold: 2,
			total:     []int32{0, 1, 0, 0},
			above:     []int32{0, 1, 0, 0},
			dropped:   3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally, err := TallyReturns(tt.points, tt.heights, def, tt.threshold)
			if err != nil {
				t.Fatalf("TallyReturns failed: %v", err)
			}
			for i := range tt.total {
				if tally.Total[i] != tt.total[i] || tally.Above[i] != tt.above[i] {
					t.Errorf("cell %d: total=%d above=%d, want %d/%d", i, tally.Total[i], tally.Above[i], tt.total[i], tt.above[i])
				}
			}
			if tally.Dropped != tt.dropped {
				t.Errorf("dropped = %d, want %d", tally.Dropped, tt.dropped)
			}
		})
	}
}

func TestTallyReturns_Errors(t *testing.T) {
	def := grid.Definition{Resolution: 1, Rows: 1, Cols: 1, OriginYMax: 1}
	if _, err := TallyReturns([]pointcloud.Point{pt(0, 0, 0, 5)}, nil, def, 2); err == nil {
		t.Error("expected error for misaligned heights")
	}
	if _, err := TallyReturns(nil, nil, def, math.NaN()); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestCover_ThreeOfTen(t *testing.T) {
	def := grid.Definition{OriginX: 0, OriginYMax: 10, MinY: 0, Resolution: 10, Rows: 1, Cols: 1}
	var points []pointcloud.Point
	var heights []float64
	for i := 0; i < 10; i++ {
		points = append(points, pt(float64(i)+0.5, 5, 0, 5))
		h := 0.5
		if i < 3 {
			h = 8
		}
		heights = append(heights, h)
	}

	tally, err := TallyReturns(points, heights, def, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := tally.Cover().At(0, 0); got != 30.0 {
		t.Errorf("cover = %v, want exactly 30.0", got)
	}
}

func TestCover_SingleReturnAboveGround(t *testing.T) {
	// Ground lies in the neighbouring cell so the canopy cell holds a
	// single return.
	points := []pointcloud.Point{
		pt(5, 5, 0, 2),
		pt(15, 5, 5, 5),
	}
	ground := points[:1]
	def := grid.Definition{OriginX: 0, OriginYMax: 10, MinY: 0, Resolution: 10, Rows: 1, Cols: 2}

	heights, err := NormalizeHeights(points, ground)
	if err != nil {
		t.Fatal(err)
	}
	tally, err := TallyReturns(points, heights, def, 2)
	if err != nil {
		t.Fatal(err)
	}
	if tally.Total[1] != 1 || tally.Above[1] != 1 {
		t.Fatalf("canopy cell: total=%d above=%d, want 1/1", tally.Total[1], tally.Above[1])
	}
	c := tally.Cover()
	if c.At(0, 1) != 100 {
		t.Errorf("canopy cell cover = %v, want 100", c.At(0, 1))
	}
	if c.At(0, 0) != 0 {
		t.Errorf("ground cell cover = %v, want 0", c.At(0, 0))
	}
}

func TestCover_BoundsAndSentinel(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	def := grid.Definition{OriginX: 0, OriginYMax: 100, MinY: 0, Resolution: 10, Rows: 10, Cols: 10}

	var points []pointcloud.Point
	var heights []float64
	for i := 0; i < 300; i++ {
		// Leave the eastern column empty.
		points = append(points, pt(rng.Float64()*90, rng.Float64()*100, 0, 5))
		heights = append(heights, rng.Float64()*10-2)
	}

	tally, err := TallyReturns(points, heights, def, 2)
	if err != nil {
		t.Fatal(err)
	}
	c := tally.Cover()
	for i, v := range c.Data {
		if tally.Total[i] == 0 {
			if v != grid.NoData {
				t.Errorf("empty cell %d = %v, want NoData", i, v)
			}
			continue
		}
		if v < 0 || v > 100 {
			t.Errorf("cell %d cover %v outside [0, 100]", i, v)
		}
	}
	if c.At(5, 9) != grid.NoData {
		t.Errorf("eastern column must be NoData, got %v", c.At(5, 9))
	}
}
