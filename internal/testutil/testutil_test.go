package testutil

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

func TestServeRequest(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(r.URL.Path))
	})

	w := ServeRequest(h, http.MethodGet, "/api/runs")
	AssertStatusCode(t, w.Code, http.StatusOK)
	if w.Body.String() != "/api/runs" {
		t.Errorf("body = %q", w.Body.String())
	}
	AssertStatusCode(t, ServeRequest(h, http.MethodPost, "/").Code, http.StatusMethodNotAllowed)
}

func TestSingleTree(t *testing.T) {
	cloud := SingleTree()
	if cloud.Len() != 5 || cloud.CountGround() != 4 {
		t.Fatalf("got %d points, %d ground; want 5, 4", cloud.Len(), cloud.CountGround())
	}
	ext, err := cloud.Extent()
	AssertNoError(t, err)
	if ext != (pointcloud.Extent{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}) {
		t.Errorf("extent = %+v", ext)
	}
}

func TestRandomStand(t *testing.T) {
	a := RandomStand(3, 500000, 4100000, 40, 100, 300, 25)
	b := RandomStand(3, 500000, 4100000, 40, 100, 300, 25)
	if a.Len() != 400 || a.CountGround() != 100 {
		t.Fatalf("got %d points, %d ground; want 400, 100", a.Len(), a.CountGround())
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			t.Fatalf("point %d differs between runs with the same seed", i)
		}
	}
	ext, err := a.Extent()
	AssertNoError(t, err)
	if ext.MinX < 500000 || ext.MaxX > 500040 || ext.MinY < 4100000 || ext.MaxY > 4100040 {
		t.Errorf("extent %+v outside the requested square", ext)
	}
}

func TestLASBytes(t *testing.T) {
	data := LASBytes(t, SingleTree())
	cloud, err := pointcloud.ReadLAS(bytes.NewReader(data))
	AssertNoError(t, err)
	if cloud.Len() != 5 || cloud.CountGround() != 4 {
		t.Errorf("decoded %d points, %d ground", cloud.Len(), cloud.CountGround())
	}
}
