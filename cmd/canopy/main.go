package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/canopy.report/internal/api"
	"github.com/banshee-data/canopy.report/internal/config"
	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/lidar"
	"github.com/banshee-data/canopy.report/internal/lidar/classify"
	"github.com/banshee-data/canopy.report/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.report/internal/monitoring"
	"github.com/banshee-data/canopy.report/internal/raster"
	"github.com/banshee-data/canopy.report/internal/raster/gtiff"
	"github.com/banshee-data/canopy.report/internal/runs"
	"github.com/banshee-data/canopy.report/internal/version"
)

// debugLogEnv names a file that receives every log stream, regardless of
// -v and -trace.
const debugLogEnv = "CANOPY_DEBUG_LOG"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "chm":
		os.Exit(handleAnalysis(pipeline.KindCHM, args))
	case "cover":
		os.Exit(handleAnalysis(pipeline.KindCover, args))
	case "serve":
		os.Exit(handleServe(args))
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`canopy - canopy rasters from classified LiDAR point clouds

Usage: canopy <command> [options] <input>

Commands:
  chm        Canopy Height Model: per-cell canopy height in metres
  cover      Canopy Cover: per-cell percentage of returns above a height
  serve      Serve the run history over HTTP
  version    Show canopy version
  help       Show this help message

Inputs are LAS (.las) or PCD (.pcd) point clouds. LAZ (.laz) input is
accepted when ground classification runs, since PDAL decompresses it.

Outputs are GeoTIFF unless the output path ends in .asc (ESRI ASCII grid).

Run 'canopy <command> -h' for the options of a command.`)
}

// analysisFlags are the options shared by chm and cover.
type analysisFlags struct {
	output     string
	resolution float64
	threshold  float64
	classified bool
	pdal       string
	timeout    time.Duration
	tempDir    string
	png        string
	html       string
	db         string
	configPath string
	verbose    bool
	trace      bool
}

func newAnalysisFlagSet(kind pipeline.Kind, f *analysisFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(kind.String(), flag.ContinueOnError)
	fs.StringVar(&f.output, "o", "", "Output raster path (default <input-stem>_"+kind.String()+".tif)")
	fs.Float64Var(&f.resolution, "resolution", 0, "Cell size in CRS units (0 uses the config value)")
	if kind == pipeline.KindCover {
		fs.Float64Var(&f.threshold, "threshold", 0, "Height above ground in metres a return must exceed to count as canopy (0 uses the config value)")
	}
	fs.BoolVar(&f.classified, "classified", false, "Input already carries ground classification; skip PDAL")
	fs.StringVar(&f.pdal, "pdal", "", "Path to the pdal binary (default from config, else pdal)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Limit on ground classification time (0 uses the config value)")
	fs.StringVar(&f.tempDir, "tmp", "", "Parent directory for per-run scratch files")
	fs.StringVar(&f.png, "png", "", "Also write a PNG preview to this path")
	fs.StringVar(&f.html, "html", "", "Also write an HTML report to this path")
	fs.StringVar(&f.db, "db", "", "Record the run in this SQLite run history database")
	fs.StringVar(&f.configPath, "config", "", "Path to a JSON analysis config")
	fs.BoolVar(&f.verbose, "v", false, "Log diagnostics to stderr")
	fs.BoolVar(&f.trace, "trace", false, "Log per-stage trace detail to stderr")
	return fs
}

// loadConfig returns the config at path, or an empty config when path is
// empty.
func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		return config.EmptyAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(path)
}

// buildParams merges the flags over the config defaults for kind.
func buildParams(kind pipeline.Kind, f *analysisFlags, cfg *config.AnalysisConfig) pipeline.Params {
	p := pipeline.Params{Kind: kind}
	switch kind {
	case pipeline.KindCHM:
		p.Resolution = cfg.GetCHMResolution()
	case pipeline.KindCover:
		p.Resolution = cfg.GetCoverResolution()
		p.HeightThreshold = cfg.GetHeightThreshold()
		if f.threshold != 0 {
			p.HeightThreshold = f.threshold
		}
	}
	if f.resolution != 0 {
		p.Resolution = f.resolution
	}
	return p
}

// selectWriter picks the raster format from the output extension.
func selectWriter(output string, cfg *config.AnalysisConfig) raster.Writer {
	if strings.EqualFold(filepath.Ext(output), ".asc") {
		return raster.NewESRIWriter()
	}
	w := gtiff.NewWriter()
	w.CreationOptions = cfg.GetGTiffCreationOptions()
	return w
}

func smrfOptions(cfg *config.AnalysisConfig) classify.SMRFOptions {
	s := cfg.GetSMRF()
	return classify.SMRFOptions{Slope: s.Slope, Window: s.Window, Threshold: s.Threshold, Scalar: s.Scalar}
}

// setupLogging wires ops to stderr, diag with -v and trace with -trace.
// CANOPY_DEBUG_LOG overrides all three with a single file.
func setupLogging(verbose, trace bool) (io.Closer, error) {
	if path := os.Getenv(debugLogEnv); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", debugLogEnv, err)
		}
		lidar.SetLegacyLogger(f)
		raster.SetLogWriters(f, f, f)
		monitoring.SetLogger(log.New(f, "", log.LstdFlags|log.Lmicroseconds).Printf)
		return f, nil
	}

	var diag, tr io.Writer
	if verbose || trace {
		diag = os.Stderr
	}
	if trace {
		tr = os.Stderr
	}
	lidar.SetLogWriters(lidar.LogWriters{Ops: os.Stderr, Diag: diag, Trace: tr})
	raster.SetLogWriters(os.Stderr, diag, tr)
	if trace {
		monitoring.SetLogger(log.Printf)
	} else {
		monitoring.SetLogger(nil)
	}
	return nil, nil
}

func handleAnalysis(kind pipeline.Kind, args []string) int {
	var f analysisFlags
	fs := newAnalysisFlagSet(kind, &f)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one input point cloud is required\n")
		fs.Usage()
		return 2
	}
	input := fs.Arg(0)

	closer, err := setupLogging(f.verbose, f.trace)
	if err != nil {
		log.Printf("logging: %v", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	params := buildParams(kind, &f, cfg)
	if err := params.Validate(); err != nil {
		log.Printf("%v", err)
		return 2
	}

	output := f.output
	if output == "" {
		output = pipeline.DefaultOutputPath(input, kind)
	}

	binary := f.pdal
	if binary == "" {
		binary = cfg.GetPDALBinary()
	}
	tempDir := f.tempDir
	if tempDir == "" {
		tempDir = cfg.GetTempDir()
	}

	runner := &pipeline.Runner{
		Classifier: classify.NewPDAL(binary, smrfOptions(cfg)),
		Writer:     selectWriter(output, cfg),
		FS:         fsutil.OSFileSystem{},
		TempDir:    tempDir,
	}

	dbPath := f.db
	if dbPath == "" && cfg.DBPath != nil {
		dbPath = *cfg.DBPath
	}
	if dbPath != "" {
		store, err := runs.Open(dbPath)
		if err != nil {
			log.Printf("run history: %v", err)
			return 1
		}
		defer store.Close()
		runner.Runs = runs.NewManager(store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	timeout := f.timeout
	if timeout == 0 {
		timeout = cfg.GetClassifyTimeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err = runner.Run(ctx, pipeline.Request{
		Input:      input,
		Output:     output,
		Classified: f.classified,
		Params:     params,
		PreviewPNG: f.png,
		ReportHTML: f.html,
	})
	if err != nil {
		log.Printf("%s failed: %v", kind, err)
		return 1
	}
	return 0
}

func handleServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "Listen address (default from config, else :8080)")
	dbPath := fs.String("db", "", "Run history database (default from config, else canopy.db)")
	configPath := fs.String("config", "", "Path to a JSON analysis config")
	reports := fs.String("reports", "", "Comma-separated directories reports may be served from (default: any recorded path)")
	debug := fs.Bool("debug", true, "Mount /debug/ with the tailsql console (loopback and tailnet only)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}
	if *listen == "" {
		*listen = cfg.GetListen()
	}
	if *dbPath == "" {
		*dbPath = cfg.GetDBPath()
	}

	store, err := runs.Open(*dbPath)
	if err != nil {
		log.Printf("run history: %v", err)
		return 1
	}
	defer store.Close()

	server := api.NewServer(store, fsutil.OSFileSystem{})
	if dirs := splitList(*reports); len(dirs) > 0 {
		server.AllowReportDirs(dirs...)
	}

	mux := http.NewServeMux()
	mux.Handle("/", server.ServeMux())
	if *debug {
		if err := api.AttachDebug(mux, store.DB()); err != nil {
			log.Printf("debug routes: %v", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := api.Start(ctx, *listen, api.LoggingMiddleware(mux)); err != nil {
		log.Printf("failed to start server: %v", err)
		return 1
	}
	log.Printf("Graceful shutdown complete")
	return 0
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
