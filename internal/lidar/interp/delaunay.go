package interp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrDegenerate is returned when the sites cannot be triangulated: fewer
// than three distinct locations, or all of them on one line.
var ErrDegenerate = errors.New("degenerate point set: need at least three distinct, non-collinear locations")

// collinearTolerance is the relative off-line distance below which a site
// is considered to lie on the line through the first two.
const collinearTolerance = 1e-9

// Sample is a scattered observation of a surface.
type Sample struct {
	X, Y, Z float64
}

type triangle struct {
	v     [3]int // counter-clockwise vertex indices; the ghost vertex counts as outside
	nb    [3]int // nb[i] is across the edge opposite v[i]
	alive bool
}

// Triangulation is a Delaunay triangulation of distinct planar sites, built
// incrementally with the Bowyer-Watson algorithm.
//
// Every convex hull edge is closed off by a ghost triangle joining it to a
// vertex at infinity. A ghost triangle's circumcircle is the open half-plane
// beyond its hull edge, so no finite bounding vertex can reach into the
// circumcircle of a thin triangle along the hull.
//
// Coordinates are held relative to a local origin to keep the in-circle
// predicate well conditioned for projected (large-magnitude) coordinates.
// A Triangulation caches the last located triangle and is not safe for
// concurrent use.
type Triangulation struct {
	origin r2.Vec
	pts    []r2.Vec
	z      []float64
	n      int // number of sites; also the index of the ghost vertex
	tris   []triangle
	stamp  []int
	gen    int
	last   int
}

// Triangulate builds a Delaunay triangulation of samples. Samples sharing an
// XY location keep the first occurrence.
func Triangulate(samples []Sample) (*Triangulation, error) {
	seen := make(map[[2]float64]struct{}, len(samples))
	sites := make([]Sample, 0, len(samples))
	for _, s := range samples {
		key := [2]float64{s.X, s.Y}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sites = append(sites, s)
	}
	if dropped := len(samples) - len(sites); dropped > 0 {
		diagf("triangulation: dropped %d duplicate XY sites", dropped)
	}
	if len(sites) < 3 {
		return nil, fmt.Errorf("%w: %d distinct locations", ErrDegenerate, len(sites))
	}

	minX, minY := math.Inf(1), math.Inf(1)
	for _, s := range sites {
		minX, minY = math.Min(minX, s.X), math.Min(minY, s.Y)
	}

	t := &Triangulation{
		origin: r2.Vec{X: minX, Y: minY},
		pts:    make([]r2.Vec, len(sites)),
		z:      make([]float64, len(sites)),
		n:      len(sites),
	}
	for i, s := range sites {
		t.pts[i] = r2.Vec{X: s.X - minX, Y: s.Y - minY}
		t.z[i] = s.Z
	}

	a, b, c, ok := seedTriangle(t.pts)
	if !ok {
		return nil, fmt.Errorf("%w: all %d locations are collinear", ErrDegenerate, len(sites))
	}
	t.seed(a, b, c)

	for i := 0; i < t.n; i++ {
		if i == a || i == b || i == c {
			continue
		}
		if err := t.insert(i); err != nil {
			return nil, err
		}
	}

	tracef("triangulated %d sites into %d triangles", t.n, len(t.Triangles()))
	return t, nil
}

// seedTriangle picks three sites spanning a well-conditioned triangle:
// the first site, the site farthest from it, and the site farthest from the
// line through those two. ok is false when every site lies on that line.
func seedTriangle(pts []r2.Vec) (a, b, c int, ok bool) {
	p0 := pts[0]
	farDist := 0.0
	for i, p := range pts {
		if d := r2.Norm2(r2.Sub(p, p0)); d > farDist {
			b, farDist = i, d
		}
	}
	dir := r2.Sub(pts[b], p0)
	length := math.Sqrt(farDist)
	best := 0.0
	for i, p := range pts {
		// |cross| / length is the perpendicular distance from the line.
		if d := math.Abs(r2.Cross(dir, r2.Sub(p, p0))) / length; d > best {
			c, best = i, d
		}
	}
	if best <= collinearTolerance*length {
		return 0, 0, 0, false
	}
	if orient(p0, pts[b], pts[c]) < 0 {
		b, c = c, b
	}
	return 0, b, c, true
}

// seed installs the counter-clockwise triangle (a, b, c) and the three ghost
// triangles closing off its edges.
func (t *Triangulation) seed(a, b, c int) {
	g := t.n
	// 0 is the real triangle; 1, 2, 3 sit across its edges opposite a, b, c.
	t.tris = []triangle{
		{v: [3]int{a, b, c}, nb: [3]int{1, 2, 3}, alive: true},
		{v: [3]int{c, b, g}, nb: [3]int{3, 2, 0}, alive: true},
		{v: [3]int{a, c, g}, nb: [3]int{1, 3, 0}, alive: true},
		{v: [3]int{b, a, g}, nb: [3]int{2, 1, 0}, alive: true},
	}
	t.stamp = make([]int, len(t.tris))
}

// orient is twice the signed area of (a, b, c); positive when counter-clockwise.
func orient(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

// inCircle reports whether p lies strictly inside the circumcircle of the
// counter-clockwise triangle (a, b, c).
func inCircle(a, b, c, p r2.Vec) bool {
	ad, bd, cd := r2.Sub(a, p), r2.Sub(b, p), r2.Sub(c, p)
	det := r2.Norm2(ad)*r2.Cross(bd, cd) +
		r2.Norm2(bd)*r2.Cross(cd, ad) +
		r2.Norm2(cd)*r2.Cross(ad, bd)
	return det > 0
}

// ghostEdge returns the hull edge (u, v) of a ghost triangle, ordered so the
// hull interior lies to its right. ok is false for real triangles.
func (t *Triangulation) ghostEdge(ti int) (u, v int, ok bool) {
	tv := t.tris[ti].v
	for e := 0; e < 3; e++ {
		if tv[e] == t.n {
			return tv[(e+1)%3], tv[(e+2)%3], true
		}
	}
	return 0, 0, false
}

func (t *Triangulation) real(ti int) bool {
	_, _, ghost := t.ghostEdge(ti)
	return !ghost
}

// circumcircleContains is the Bowyer-Watson conflict test. For a ghost
// triangle the circumcircle is the open half-plane outside its hull edge
// together with the open edge itself.
func (t *Triangulation) circumcircleContains(ti int, p r2.Vec) bool {
	if u, v, ghost := t.ghostEdge(ti); ghost {
		a, b := t.pts[u], t.pts[v]
		o := orient(a, b, p)
		if o != 0 {
			return o > 0
		}
		ab := r2.Sub(b, a)
		d := r2.Dot(r2.Sub(p, a), ab)
		return d > 0 && d < r2.Norm2(ab)
	}
	v := t.tris[ti].v
	return inCircle(t.pts[v[0]], t.pts[v[1]], t.pts[v[2]], p)
}

type cavityEdge struct {
	a, b    int // boundary edge, counter-clockwise around the cavity
	outside int // triangle beyond the edge
}

func (t *Triangulation) insert(i int) error {
	p := t.pts[i]
	start := t.locate(p)
	if start < 0 {
		return fmt.Errorf("triangulation: site %d could not be located", i)
	}

	t.gen++
	gen := t.gen
	bad := []int{start}
	t.stamp[start] = gen
	for q := 0; q < len(bad); q++ {
		tr := t.tris[bad[q]]
		for e := 0; e < 3; e++ {
			nb := tr.nb[e]
			if t.stamp[nb] == gen {
				continue
			}
			if t.circumcircleContains(nb, p) {
				t.stamp[nb] = gen
				bad = append(bad, nb)
			}
		}
	}

	var boundary []cavityEdge
	for _, bi := range bad {
		tr := t.tris[bi]
		for e := 0; e < 3; e++ {
			nb := tr.nb[e]
			if t.stamp[nb] == gen {
				continue
			}
			boundary = append(boundary, cavityEdge{a: tr.v[(e+1)%3], b: tr.v[(e+2)%3], outside: nb})
		}
		t.tris[bi].alive = false
	}

	// Reuse the cavity's slots before growing the slice.
	free := bad
	startAt := make(map[int]int, len(boundary))
	endAt := make(map[int]int, len(boundary))
	t.last = -1
	for _, edge := range boundary {
		var idx int
		if len(free) > 0 {
			idx, free = free[0], free[1:]
		} else {
			idx = len(t.tris)
			t.tris = append(t.tris, triangle{})
			t.stamp = append(t.stamp, 0)
		}
		t.tris[idx] = triangle{v: [3]int{edge.a, edge.b, i}, nb: [3]int{-1, -1, edge.outside}, alive: true}
		t.relink(edge.outside, edge.b, edge.a, idx)
		startAt[edge.a] = idx
		endAt[edge.b] = idx
		if t.last < 0 && edge.a != t.n && edge.b != t.n {
			t.last = idx
		}
	}
	for _, idx := range startAt {
		tr := &t.tris[idx]
		next, ok1 := startAt[tr.v[1]]
		prev, ok2 := endAt[tr.v[0]]
		if !ok1 || !ok2 {
			return fmt.Errorf("triangulation: cavity for site %d is not a closed polygon", i)
		}
		tr.nb[0] = next
		tr.nb[1] = prev
	}
	return nil
}

// relink points the neighbour of triangle ti across edge (a, b) at nb.
func (t *Triangulation) relink(ti, a, b, nb int) {
	tr := &t.tris[ti]
	for e := 0; e < 3; e++ {
		if tr.v[(e+1)%3] == a && tr.v[(e+2)%3] == b {
			tr.nb[e] = nb
			return
		}
	}
}

func (t *Triangulation) contains(ti int, p r2.Vec) bool {
	v := t.tris[ti].v
	a, b, c := t.pts[v[0]], t.pts[v[1]], t.pts[v[2]]
	return orient(a, b, p) >= 0 && orient(b, c, p) >= 0 && orient(c, a, p) >= 0
}

// locate returns the live real triangle containing p (local coordinates),
// or, when p lies outside the convex hull, a ghost triangle whose hull edge
// faces p. It walks from the last located triangle.
func (t *Triangulation) locate(p r2.Vec) int {
	cur := t.last
	if cur < 0 || cur >= len(t.tris) || !t.tris[cur].alive || !t.real(cur) {
		cur = -1
		for i := range t.tris {
			if t.tris[i].alive && t.real(i) {
				cur = i
				break
			}
		}
		if cur < 0 {
			return -1
		}
	}

	for steps := 0; steps <= len(t.tris); steps++ {
		tr := t.tris[cur]
		next := cur
		for e := 0; e < 3; e++ {
			a, b := t.pts[tr.v[(e+1)%3]], t.pts[tr.v[(e+2)%3]]
			if orient(a, b, p) < 0 {
				next = tr.nb[e]
				break
			}
		}
		if next == cur {
			t.last = cur
			return cur
		}
		if !t.real(next) {
			// Crossing a hull edge outward: p is outside the hull.
			return next
		}
		cur = next
	}

	// The walk can cycle on near-degenerate input; scan instead.
	for i := range t.tris {
		if t.tris[i].alive && t.real(i) && t.contains(i, p) {
			t.last = i
			return i
		}
	}
	for i := range t.tris {
		if t.tris[i].alive && !t.real(i) && t.circumcircleContains(i, p) {
			return i
		}
	}
	return -1
}

// Len returns the number of distinct sites.
func (t *Triangulation) Len() int {
	return t.n
}

// Triangles returns the site indices of every real triangle,
// counter-clockwise.
func (t *Triangulation) Triangles() [][3]int {
	var out [][3]int
	for i, tr := range t.tris {
		if tr.alive && t.real(i) {
			out = append(out, tr.v)
		}
	}
	return out
}

// Site returns the i-th distinct site in world coordinates.
func (t *Triangulation) Site(i int) Sample {
	p := t.pts[i]
	return Sample{X: p.X + t.origin.X, Y: p.Y + t.origin.Y, Z: t.z[i]}
}

// Interpolate evaluates the piecewise-linear surface at (x, y). ok is false
// outside the convex hull of the sites.
func (t *Triangulation) Interpolate(x, y float64) (float64, bool) {
	p := r2.Vec{X: x - t.origin.X, Y: y - t.origin.Y}
	ti := t.locate(p)
	if ti < 0 || !t.real(ti) {
		return 0, false
	}
	v := t.tris[ti].v
	a, b, c := t.pts[v[0]], t.pts[v[1]], t.pts[v[2]]
	area := orient(a, b, c)
	if area == 0 {
		return 0, false
	}
	wa := orient(b, c, p) / area
	wb := orient(c, a, p) / area
	wc := 1 - wa - wb
	return wa*t.z[v[0]] + wb*t.z[v[1]] + wc*t.z[v[2]], true
}
