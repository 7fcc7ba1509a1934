package lidar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/banshee-data/canopy.report/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
	"github.com/banshee-data/canopy.report/internal/testutil"
)

func TestSetLogWriters_FansOut(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})
	defer SetLogWriters(LogWriters{})

	if _, err := pipeline.Compute(testutil.SingleTree(), pipeline.DefaultParams(pipeline.KindCHM)); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !strings.Contains(diag.String(), "[pipeline] ") {
		t.Errorf("diag stream missing pipeline output: %q", diag.String())
	}
	if !strings.Contains(trace.String(), "[interp] ") {
		t.Errorf("trace stream missing interp output: %q", trace.String())
	}
	if ops.Len() != 0 {
		t.Errorf("successful compute must not log to ops, got %q", ops.String())
	}
}

func TestSetLegacyLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLegacyLogger(&buf)
	defer SetLegacyLogger(nil)

	cloud := &pointcloud.Cloud{Points: []pointcloud.Point{
		{X: 0, Y: 0, Classification: pointcloud.GroundClass},
		{X: 4, Y: 0, Classification: pointcloud.GroundClass},
		{X: 0, Y: 4, Classification: pointcloud.GroundClass},
	}}
	if _, err := pipeline.Compute(cloud, pipeline.DefaultParams(pipeline.KindCHM)); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !strings.Contains(buf.String(), "[pipeline] grid") {
		t.Errorf("legacy logger missing pipeline output: %q", buf.String())
	}

	SetLegacyLogger(nil)
	buf.Reset()
	if _, err := pipeline.Compute(cloud, pipeline.DefaultParams(pipeline.KindCHM)); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled logger still wrote %q", buf.String())
	}
}
