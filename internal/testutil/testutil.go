// Package testutil provides shared test utilities and synthetic point
// cloud fixtures.
package testutil

import (
	"bytes"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

// VegetationClass is the ASPRS high-vegetation code used for canopy returns.
const VegetationClass = 5

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ServeRequest runs a request with no body through h and returns the
// recorded response.
func ServeRequest(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// Ground returns a ground-classified point.
func Ground(x, y, z float64) pointcloud.Point {
	return pointcloud.Point{X: x, Y: y, Z: z, Classification: pointcloud.GroundClass}
}

// Vegetation returns a high-vegetation point.
func Vegetation(x, y, z float64) pointcloud.Point {
	return pointcloud.Point{X: x, Y: y, Z: z, Classification: VegetationClass}
}

// SingleTree is four flat ground corners of a 10 m square with one 5 m
// canopy return at its centre. At resolution 10 it grids to a single cell
// with canopy height 5.
func SingleTree() *pointcloud.Cloud {
	return &pointcloud.Cloud{Points: []pointcloud.Point{
		Ground(0, 0, 0), Ground(10, 0, 0), Ground(0, 10, 0), Ground(10, 10, 0),
		Vegetation(5, 5, 5),
	}}
}

// RandomStand scatters ground returns over a tilted plane and canopy
// returns up to maxHeight above it, inside a size x size square at
// (originX, originY). The same seed always gives the same cloud.
func RandomStand(seed int64, originX, originY, size float64, nGround, nCanopy int, maxHeight float64) *pointcloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	terrain := func(x, y float64) float64 {
		return 100 + 0.05*(x-originX) - 0.02*(y-originY)
	}
	cloud := &pointcloud.Cloud{Points: make([]pointcloud.Point, 0, nGround+nCanopy)}
	for i := 0; i < nGround; i++ {
		x, y := originX+rng.Float64()*size, originY+rng.Float64()*size
		cloud.Points = append(cloud.Points, Ground(x, y, terrain(x, y)+rng.Float64()*0.1))
	}
	for i := 0; i < nCanopy; i++ {
		x, y := originX+rng.Float64()*size, originY+rng.Float64()*size
		cloud.Points = append(cloud.Points, Vegetation(x, y, terrain(x, y)+rng.Float64()*maxHeight))
	}
	return cloud
}

// LASBytes encodes cloud as LAS, failing the test on error.
func LASBytes(t testing.TB, cloud *pointcloud.Cloud) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := pointcloud.WriteLAS(&buf, cloud); err != nil {
		t.Fatalf("encode LAS: %v", err)
	}
	return buf.Bytes()
}
