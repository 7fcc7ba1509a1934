package classify

import (
	"context"
	"errors"
)

// ErrNoPoints is returned when classification completes without writing
// any point.
var ErrNoPoints = errors.New("ground classification produced no points; check the input file")

// Classifier assigns ground codes to an unclassified point cloud. It reads
// inputPath, writes a classified LAS file to outputPath and returns the
// number of points written.
type Classifier interface {
	Classify(ctx context.Context, inputPath, outputPath string) (int, error)
}

// Func adapts an ordinary function to Classifier.
type Func func(ctx context.Context, inputPath, outputPath string) (int, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, inputPath, outputPath string) (int, error) {
	return f(ctx, inputPath, outputPath)
}
