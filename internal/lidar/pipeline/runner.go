package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar/classify"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
	"github.com/banshee-data/canopy.report/internal/monitoring"
	"github.com/banshee-data/canopy.report/internal/raster"
	"github.com/banshee-data/canopy.report/internal/report"
	"github.com/banshee-data/canopy.report/internal/runs"
)

// Request describes one analysis run.
type Request struct {
	Input  string
	Output string // empty selects DefaultOutputPath

	// Classified skips ground classification and reads Input directly.
	Classified bool

	Params Params

	// Optional previews of the output raster.
	PreviewPNG string
	ReportHTML string
}

// DefaultOutputPath names the output after the input stem and the product:
// <dir>/<stem>_<kind>.tif.
func DefaultOutputPath(input string, kind Kind) string {
	dir, base := filepath.Split(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.tif", stem, kind))
}

// Runner runs analyses from file to file.
type Runner struct {
	// Classifier assigns ground codes when a request is not pre-classified.
	Classifier classify.Classifier

	// Writer persists the output raster.
	Writer raster.Writer

	// FS holds inputs, scratch files and previews; nil uses the OS.
	FS fsutil.FileSystem

	// TempDir is the parent of per-run scratch directories; empty uses
	// os.TempDir.
	TempDir string

	// Runs, when set, records every run in the run history.
	Runs *runs.Manager
}

func (r *Runner) fs() fsutil.FileSystem {
	if r.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.FS
}

// Run executes req. ctx bounds only the external classification process.
// Scratch files are removed whether or not the run succeeds.
func (r *Runner) Run(ctx context.Context, req Request) (res *Result, err error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if r.Writer == nil {
		return nil, errors.New("pipeline: no raster writer configured")
	}
	if req.Output == "" {
		req.Output = DefaultOutputPath(req.Input, req.Params.Kind)
	}

	recording := false
	if r.Runs != nil {
		if _, rerr := r.Runs.StartRun(req.Params.Kind.String(), req.Input, req.Output, req.Params); rerr != nil {
			opsf("run history unavailable: %v", rerr)
		} else {
			recording = true
		}
		defer func() {
			if err != nil && recording {
				if ferr := r.Runs.FailRun(err); ferr != nil {
					opsf("failed to record run failure: %v", ferr)
				}
			}
		}()
	}

	timer := monitoring.NewStageTimer(nil)
	cloudPath := req.Input
	if !req.Classified {
		scratch, cleanup, err := r.scratchDir()
		if err != nil {
			return nil, stageErr(StageClassify, req.Input, err)
		}
		defer cleanup()

		cloudPath, err = r.classify(ctx, req.Input, scratch, timer)
		if err != nil {
			return nil, err
		}
	}

	stop := timer.Start(string(StageRead))
	cloud, err := pointcloud.Open(r.fs(), cloudPath)
	stop()
	if err != nil {
		return nil, stageErr(StageRead, cloudPath, err)
	}
	opsf("%s: %d points (%d ground, %d non-ground), CRS %s",
		req.Input, cloud.Len(), cloud.CountGround(), cloud.Len()-cloud.CountGround(), cloud.CRS)

	res, err = compute(cloud, req.Params, req.Input, timer)
	if err != nil {
		return nil, err
	}

	// A failed run leaves neither previews nor a raster behind.
	summary := raster.Summarize(res.Surface)
	previews, err := r.writePreviews(req, res, summary)
	if err != nil {
		return nil, err
	}

	stop = timer.Start(string(StageWrite))
	err = r.Writer.Write(req.Output, res.Raster())
	stop()
	if err != nil {
		r.discard(previews)
		return nil, stageErr(StageWrite, req.Output, err)
	}
	opsf("wrote %s %s (%s): %s", req.Params.Kind, req.Output, res.Grid, summary)
	diagf("stage timings: %s", timer)

	if recording {
		out := runs.Outcome{
			Rows:            res.Grid.Rows,
			Cols:            res.Grid.Cols,
			GroundPoints:    res.GroundPoints,
			NonGroundPoints: res.NonGroundPoints,
			Summary:         summary,
			ReportPath:      absPath(req.ReportHTML),
		}
		if err := r.Runs.CompleteRun(out); err != nil {
			opsf("failed to record run completion: %v", err)
		}
	}
	return res, nil
}

// scratchDir creates a per-run directory and returns its cleanup.
func (r *Runner) scratchDir() (string, func(), error) {
	base := r.TempDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "canopy-"+uuid.New().String())
	fsys := r.fs()
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return dir, func() {
		if err := fsys.RemoveAll(dir); err != nil {
			opsf("failed to remove scratch directory %s: %v", dir, err)
		}
	}, nil
}

// classify runs the classifier on input and returns the classified file.
// PCD input is staged as LAS first so the classifier only sees LAS.
func (r *Runner) classify(ctx context.Context, input, scratch string, timer *monitoring.StageTimer) (string, error) {
	if r.Classifier == nil {
		return "", stageErr(StageClassify, input, errors.New("no ground classifier configured"))
	}
	stop := timer.Start(string(StageClassify))
	defer stop()

	source := input
	if pointcloud.FormatOf(input) == pointcloud.FormatPCD {
		staged, err := r.stageLAS(input, scratch)
		if err != nil {
			return "", err
		}
		source = staged
	}

	out := filepath.Join(scratch, "classified.las")
	n, err := r.Classifier.Classify(ctx, source, out)
	if err != nil {
		return "", stageErr(StageClassify, input, err)
	}
	diagf("classified %d points into %s", n, out)
	return out, nil
}

func (r *Runner) stageLAS(input, scratch string) (string, error) {
	fsys := r.fs()
	cloud, err := pointcloud.Open(fsys, input)
	if err != nil {
		return "", stageErr(StageRead, input, err)
	}
	staged := filepath.Join(scratch, "input.las")
	f, err := fsys.Create(staged)
	if err != nil {
		return "", stageErr(StageClassify, staged, err)
	}
	if err := pointcloud.WriteLAS(f, cloud); err != nil {
		f.Close()
		return "", stageErr(StageClassify, staged, err)
	}
	if err := f.Close(); err != nil {
		return "", stageErr(StageClassify, staged, err)
	}
	tracef("staged %s as %s", input, staged)
	return staged, nil
}

// writePreviews renders the requested PNG and HTML previews and returns the
// paths written. On failure nothing it wrote is left behind.
func (r *Runner) writePreviews(req Request, res *Result, summary raster.Summary) (written []string, err error) {
	if req.PreviewPNG == "" && req.ReportHTML == "" {
		return nil, nil
	}
	defer func() {
		if err != nil {
			r.discard(written)
			written = nil
		}
	}()

	kind := req.Params.Kind
	rep, err := report.New(kind.Title(), kind.Unit(), res.Raster())
	if err != nil {
		return nil, stageErr(StageReport, req.Output, err)
	}
	rep.Summary = summary
	if req.PreviewPNG != "" {
		if err := report.WritePreviewPNG(r.fs(), req.PreviewPNG, rep); err != nil {
			written = append(written, req.PreviewPNG)
			return written, stageErr(StageReport, req.PreviewPNG, err)
		}
		written = append(written, req.PreviewPNG)
	}
	if req.ReportHTML != "" {
		if err := report.WriteHTML(r.fs(), req.ReportHTML, rep); err != nil {
			written = append(written, req.ReportHTML)
			return written, stageErr(StageReport, req.ReportHTML, err)
		}
		written = append(written, req.ReportHTML)
	}
	return written, nil
}

// discard removes files written for a run that did not complete.
func (r *Runner) discard(paths []string) {
	fsys := r.fs()
	for _, p := range paths {
		if !fsys.Exists(p) {
			continue
		}
		if err := fsys.Remove(p); err != nil {
			opsf("failed to remove %s: %v", p, err)
		}
	}
}

// absPath makes a stored report path independent of the working
// directory of whoever reads the run history later.
func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
