package lidar

import (
	"io"

	"github.com/banshee-data/canopy.report/internal/lidar/classify"
	"github.com/banshee-data/canopy.report/internal/lidar/cover"
	"github.com/banshee-data/canopy.report/internal/lidar/interp"
	"github.com/banshee-data/canopy.report/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
	"github.com/banshee-data/canopy.report/internal/lidar/surface"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// SetLogWriters configures the three logging streams of every LiDAR
// processing package at once. Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	pointcloud.SetLogWriters(w.Ops, w.Diag, w.Trace)
	interp.SetLogWriters(w.Ops, w.Diag, w.Trace)
	surface.SetLogWriters(w.Ops, w.Diag, w.Trace)
	cover.SetLogWriters(w.Ops, w.Diag, w.Trace)
	classify.SetLogWriters(w.Ops, w.Diag, w.Trace)
	pipeline.SetLogWriters(w.Ops, w.Diag, w.Trace)
}

// SetLegacyLogger routes all three streams to a single writer. Used by the
// CANOPY_DEBUG_LOG fallback. Pass nil to disable all logging.
func SetLegacyLogger(w io.Writer) {
	SetLogWriters(LogWriters{Ops: w, Diag: w, Trace: w})
}
