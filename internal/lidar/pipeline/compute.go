package pipeline

import (
	"github.com/banshee-data/canopy.report/internal/lidar/cover"
	"github.com/banshee-data/canopy.report/internal/lidar/grid"
	"github.com/banshee-data/canopy.report/internal/lidar/pointcloud"
	"github.com/banshee-data/canopy.report/internal/lidar/surface"
	"github.com/banshee-data/canopy.report/internal/monitoring"
	"github.com/banshee-data/canopy.report/internal/raster"
)

// Result is the output of one analysis.
type Result struct {
	Params          Params
	Grid            grid.Definition
	Surface         *grid.Surface
	CRS             pointcloud.CRS
	GroundPoints    int
	NonGroundPoints int

	// Dropped counts returns outside the grid in the cover branch.
	Dropped int
}

// Raster pairs the output surface with the input CRS.
func (r *Result) Raster() *raster.Raster {
	return &raster.Raster{Surface: r.Surface, CRS: r.CRS}
}

// Compute derives the product selected by params from a classified cloud.
// It is deterministic: the same cloud and params give a bit-identical
// surface.
func Compute(cloud *pointcloud.Cloud, params Params) (*Result, error) {
	return compute(cloud, params, "", nil)
}

func compute(cloud *pointcloud.Cloud, params Params, path string, timer *monitoring.StageTimer) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	start := func(stage Stage) func() {
		if timer == nil {
			return func() {}
		}
		return timer.Start(string(stage))
	}

	stop := start(StageGrid)
	ext, err := cloud.Extent()
	if err != nil {
		stop()
		return nil, stageErr(StageGrid, path, err)
	}
	def, err := grid.Define(ext, params.Resolution)
	stop()
	if err != nil {
		return nil, stageErr(StageGrid, path, err)
	}
	diagf("grid %s", def)

	ground, nonGround := cloud.Split()
	res := &Result{
		Params:          params,
		Grid:            def,
		CRS:             cloud.CRS,
		GroundPoints:    len(ground),
		NonGroundPoints: len(nonGround),
	}

	switch params.Kind {
	case KindCHM:
		res.Surface, err = heightModel(ground, nonGround, def, path, start)
	case KindCover:
		res.Surface, res.Dropped, err = canopyCover(cloud.Points, ground, def, params.HeightThreshold, path, start)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func heightModel(ground, nonGround []pointcloud.Point, def grid.Definition, path string, start func(Stage) func()) (*grid.Surface, error) {
	stop := start(StageDTM)
	dtm, err := surface.BuildDTM(ground, def)
	stop()
	if err != nil {
		return nil, stageErr(StageDTM, path, err)
	}

	stop = start(StageDSM)
	dsm, err := surface.BuildDSM(nonGround, def, dtm)
	stop()
	if err != nil {
		return nil, stageErr(StageDSM, path, err)
	}

	stop = start(StageCHM)
	chm, err := surface.CombineCHM(dtm, dsm)
	stop()
	if err != nil {
		return nil, stageErr(StageCHM, path, err)
	}
	return chm, nil
}

func canopyCover(points, ground []pointcloud.Point, def grid.Definition, threshold float64, path string, start func(Stage) func()) (*grid.Surface, int, error) {
	stop := start(StageNormalize)
	heights, err := cover.NormalizeHeights(points, ground)
	stop()
	if err != nil {
		return nil, 0, stageErr(StageNormalize, path, err)
	}

	stop = start(StageTally)
	tally, err := cover.TallyReturns(points, heights, def, threshold)
	stop()
	if err != nil {
		return nil, 0, stageErr(StageTally, path, err)
	}
	if tally.Dropped > 0 {
		diagf("cover: %d returns fell outside the grid", tally.Dropped)
	}
	return tally.Cover(), tally.Dropped, nil
}
