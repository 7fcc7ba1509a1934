package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
)

// DefaultPDALBinary is the executable looked up on PATH.
const DefaultPDALBinary = "pdal"

// SMRFOptions tunes PDAL's Simple Morphological Filter. Nil fields keep
// PDAL's defaults.
type SMRFOptions struct {
	Slope     *float64 `json:"slope,omitempty"`
	Window    *float64 `json:"window,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Scalar    *float64 `json:"scalar,omitempty"`
}

// PDAL classifies ground with `pdal pipeline --stdin` running a reader,
// filters.smrf and writers.las.
type PDAL struct {
	Binary   string
	SMRF     SMRFOptions
	Commands CommandBuilder
	FS       fsutil.FileSystem
}

// NewPDAL returns a PDAL classifier using the real process runner and the
// OS filesystem.
func NewPDAL(binary string, smrf SMRFOptions) *PDAL {
	if binary == "" {
		binary = DefaultPDALBinary
	}
	return &PDAL{Binary: binary, SMRF: smrf, Commands: RealCommandBuilder{}, FS: fsutil.OSFileSystem{}}
}

type smrfStage struct {
	Type string `json:"type"`
	SMRFOptions
}

type writerStage struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

// Pipeline returns the PDAL pipeline JSON for one classification.
func (p *PDAL) Pipeline(inputPath, outputPath string) ([]byte, error) {
	doc := map[string][]any{
		"pipeline": {
			inputPath,
			smrfStage{Type: "filters.smrf", SMRFOptions: p.SMRF},
			writerStage{Type: "writers.las", Filename: outputPath},
		},
	}
	return json.Marshal(doc)
}

// Classify runs the pipeline and counts the points in the written file.
// Process failures carry PDAL's stderr verbatim.
func (p *PDAL) Classify(ctx context.Context, inputPath, outputPath string) (int, error) {
	body, err := p.Pipeline(inputPath, outputPath)
	if err != nil {
		return 0, fmt.Errorf("build PDAL pipeline: %w", err)
	}

	commands := p.Commands
	if commands == nil {
		commands = RealCommandBuilder{}
	}
	binary := p.Binary
	if binary == "" {
		binary = DefaultPDALBinary
	}

	diagf("running %s pipeline --stdin for %s", binary, inputPath)
	tracef("pipeline: %s", body)
	start := time.Now()

	cmd := commands.BuildCommand(ctx, binary, "pipeline", "--stdin")
	cmd.SetStdin(body)
	_, stderr, err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("pdal pipeline: %w", ctxErr)
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			return 0, fmt.Errorf("pdal pipeline: %w", err)
		}
		return 0, fmt.Errorf("pdal pipeline: %w: %s", err, msg)
	}

	n, err := p.countPoints(outputPath)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNoPoints
	}
	opsf("classified %d points from %s in %s", n, inputPath, time.Since(start).Round(time.Millisecond))
	return n, nil
}

func (p *PDAL) countPoints(path string) (int, error) {
	fsys := p.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open classified output %s: %w", path, err)
	}
	defer f.Close()

	h, err := pointcloud.ReadLASHeader(f)
	if err != nil {
		return 0, fmt.Errorf("read classified output %s: %w", path, err)
	}
	return int(h.PointCount), nil
}
