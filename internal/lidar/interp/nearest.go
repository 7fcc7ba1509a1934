package interp

import (
	"errors"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// ErrNoSamples is returned when an interpolator is built from no samples.
var ErrNoSamples = errors.New("no samples to interpolate")

// site is a Sample viewed as a 2-D kdtree.Comparable; Z rides along.
type site Sample

func (p site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("interp: illegal dimension")
	}
}

func (p site) Dims() int { return 2 }

// Distance returns the squared planimetric distance.
func (p site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

type sites []site

func (s sites) Index(i int) kdtree.Comparable         { return s[i] }
func (s sites) Len() int                              { return len(s) }
func (s sites) Pivot(d kdtree.Dim) int                { return plane{sites: s, Dim: d}.Pivot() }
func (s sites) Slice(start, end int) kdtree.Interface { return s[start:end] }

// plane sorts sites along one dimension for median pivoting.
type plane struct {
	kdtree.Dim
	sites
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.sites[i].X < p.sites[j].X
	case 1:
		return p.sites[i].Y < p.sites[j].Y
	default:
		panic("interp: illegal dimension")
	}
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}

// Nearest answers nearest-neighbour queries over planimetric samples using
// a k-d tree. It is safe for concurrent use once built.
type Nearest struct {
	tree *kdtree.Tree
	n    int
}

// NewNearest builds a nearest-neighbour index over samples. The input slice
// is not modified.
func NewNearest(samples []Sample) (*Nearest, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	pts := make(sites, len(samples))
	for i, s := range samples {
		pts[i] = site(s)
	}
	return &Nearest{tree: kdtree.New(pts, false), n: len(samples)}, nil
}

// Query returns the sample closest to (x, y) in the XY plane and the squared
// distance to it.
func (n *Nearest) Query(x, y float64) (Sample, float64) {
	c, d := n.tree.Nearest(site{X: x, Y: y})
	return Sample(c.(site)), d
}

// Interpolate returns the Z of the nearest sample. It always resolves.
func (n *Nearest) Interpolate(x, y float64) (float64, bool) {
	s, _ := n.Query(x, y)
	return s.Z, true
}

// Len returns the number of indexed samples.
func (n *Nearest) Len() int {
	return n.n
}
