package interp

// Linear interpolates linearly within the Delaunay triangles of the
// samples. Locations outside the convex hull are unresolved.
type Linear struct {
	tri *Triangulation
}

// NewLinear triangulates samples. It returns ErrDegenerate when fewer than
// three distinct, non-collinear locations exist.
func NewLinear(samples []Sample) (*Linear, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	tri, err := Triangulate(samples)
	if err != nil {
		return nil, err
	}
	return &Linear{tri: tri}, nil
}

// Interpolate evaluates the surface at (x, y).
func (l *Linear) Interpolate(x, y float64) (float64, bool) {
	return l.tri.Interpolate(x, y)
}

// Triangulation exposes the underlying mesh.
func (l *Linear) Triangulation() *Triangulation {
	return l.tri
}
