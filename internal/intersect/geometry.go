package intersect

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"
)

// Point is a planar coordinate with X = longitude and Y = latitude.
type Point struct {
	X, Y float64
}

type bbox struct {
	minX, minY, maxX, maxY float64
}

func newBBox(pts []Point) bbox {
	b := bbox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, p := range pts {
		b.extend(p)
	}
	return b
}

func (b *bbox) extend(p Point) {
	b.minX = math.Min(b.minX, p.X)
	b.minY = math.Min(b.minY, p.Y)
	b.maxX = math.Max(b.maxX, p.X)
	b.maxY = math.Max(b.maxY, p.Y)
}

func (b bbox) overlaps(o bbox) bool {
	return b.minX <= o.maxX && o.minX <= b.maxX && b.minY <= o.maxY && o.minY <= b.maxY
}

func (b bbox) containsPoint(p Point) bool {
	return p.X >= b.minX && p.X <= b.maxX && p.Y >= b.minY && p.Y <= b.maxY
}

// Segment is a road polyline. It is immutable once built.
type Segment struct {
	pts []Point
	box bbox
}

// NewSegment builds a Segment from a LineString, dropping repeated
// consecutive vertices. Returns false when fewer than two distinct vertices
// remain.
func NewSegment(ls *geom.LineString) (*Segment, bool, error) {
	if ls == nil {
		return nil, false, nil
	}
	n := ls.NumCoords()
	pts := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		c := ls.Coord(i)
		p := Point{X: c.X(), Y: c.Y()}
		if !finite(p) {
			return nil, false, eris.Errorf("intersect: non-finite coordinate (%g, %g)", p.X, p.Y)
		}
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) < 2 {
		return nil, false, nil
	}
	return &Segment{pts: pts, box: newBBox(pts)}, true, nil
}

// Points returns a copy of the polyline vertices.
func (s *Segment) Points() []Point {
	out := make([]Point, len(s.pts))
	copy(out, s.pts)
	return out
}

func finite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Region is the bounding area, held as one or more polygons each with an
// outer ring and optional holes. Rings are closed flat XY coordinates. It is
// immutable once built.
type Region struct {
	polys [][][]float64
	box   bbox
}

// NewRegion builds a Region from a Polygon or MultiPolygon.
func NewRegion(g geom.T) (*Region, error) {
	r := &Region{}
	switch t := g.(type) {
	case *geom.Polygon:
		r.addPolygon(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			r.addPolygon(t.Polygon(i))
		}
	default:
		return nil, eris.Errorf("intersect: region geometry is %T, want a polygon", g)
	}
	if len(r.polys) == 0 {
		return nil, eris.New("intersect: region polygon is empty")
	}

	r.box = bbox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, poly := range r.polys {
		for _, ring := range poly {
			for i := 0; i+1 < len(ring); i += 2 {
				if p := (Point{X: ring[i], Y: ring[i+1]}); !finite(p) {
					return nil, eris.Errorf("intersect: non-finite region coordinate (%g, %g)", p.X, p.Y)
				}
			}
		}
		shell := poly[0]
		for i := 0; i+1 < len(shell); i += 2 {
			r.box.extend(Point{X: shell[i], Y: shell[i+1]})
		}
	}
	return r, nil
}

func (r *Region) addPolygon(p *geom.Polygon) {
	var rings [][]float64
	for i := 0; i < p.NumLinearRings(); i++ {
		lr := p.LinearRing(i)
		n := lr.NumCoords()
		if n < 3 {
			if i == 0 {
				return
			}
			continue
		}
		ring := make([]float64, 0, 2*(n+1))
		for j := 0; j < n; j++ {
			c := lr.Coord(j)
			ring = append(ring, c.X(), c.Y())
		}
		if ring[0] != ring[len(ring)-2] || ring[1] != ring[len(ring)-1] {
			ring = append(ring, ring[0], ring[1])
		}
		rings = append(rings, ring)
	}
	if len(rings) > 0 {
		r.polys = append(r.polys, rings)
	}
}

type placement int

const (
	exterior placement = iota
	boundary
	interior
)

// locate classifies p against the region. A point on any ring is boundary.
func (r *Region) locate(p Point) placement {
	if !r.box.containsPoint(p) {
		return exterior
	}
	c := p.coord()
	out := exterior
	for _, poly := range r.polys {
		switch xy.LocatePointInRing(geom.XY, c, poly[0]) {
		case location.Boundary:
			return boundary
		case location.Exterior:
			continue
		}
		inHole := false
		for _, hole := range poly[1:] {
			switch xy.LocatePointInRing(geom.XY, c, hole) {
			case location.Boundary:
				return boundary
			case location.Interior:
				inHole = true
			}
		}
		if !inHole {
			out = interior
		}
	}
	return out
}

// Contains reports whether p lies in the region's interior. The boundary is
// included only when includeBoundary is set.
func (r *Region) Contains(p Point, includeBoundary bool) bool {
	loc := r.locate(p)
	return loc == interior || (includeBoundary && loc == boundary)
}

// Intersects reports whether the polyline touches the region's boundary or
// interior.
func (r *Region) Intersects(s *Segment) bool {
	if !r.box.overlaps(s.box) {
		return false
	}
	for _, p := range s.pts {
		if r.locate(p) != exterior {
			return true
		}
	}
	for i := 0; i+1 < len(s.pts); i++ {
		a, b := s.pts[i], s.pts[i+1]
		if !newBBox([]Point{a, b}).overlaps(r.box) {
			continue
		}
		for _, poly := range r.polys {
			for _, ring := range poly {
				for k := 0; k+3 < len(ring); k += 2 {
					q1 := Point{X: ring[k], Y: ring[k+1]}
					q2 := Point{X: ring[k+2], Y: ring[k+3]}
					if _, hit := segmentIntersection(a, b, q1, q2); hit != noHit {
						return true
					}
				}
			}
		}
	}
	return false
}

func (p Point) coord() geom.Coord {
	return geom.Coord{p.X, p.Y}
}

type hitKind int

const (
	noHit hitKind = iota
	pointHit
	overlapHit
)

// segmentIntersection intersects the straight segments p1-p2 and q1-q2.
// Endpoints lying on the other segment are returned exactly. Collinear
// segments sharing only an endpoint meet at a point.
func segmentIntersection(p1, p2, q1, q2 Point) (Point, hitKind) {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{},
		p1.coord(), p2.coord(), q1.coord(), q2.coord())
	switch res.Type() {
	case lineintersection.PointIntersection:
		c := res.Intersection()[0]
		return Point{X: c[0], Y: c[1]}, pointHit
	case lineintersection.CollinearIntersection:
		return Point{}, overlapHit
	}
	return Point{}, noHit
}

// intersectPolylines returns the point-shaped intersection of two polylines
// as a set sorted by (X, Y). ok is false when any part of the intersection
// is a line.
func intersectPolylines(a, b *Segment) (pts []Point, ok bool) {
	if !a.box.overlaps(b.box) {
		return nil, true
	}
	seen := make(map[Point]struct{})
	for i := 0; i+1 < len(a.pts); i++ {
		a1, a2 := a.pts[i], a.pts[i+1]
		ab := newBBox([]Point{a1, a2})
		if !ab.overlaps(b.box) {
			continue
		}
		for j := 0; j+1 < len(b.pts); j++ {
			b1, b2 := b.pts[j], b.pts[j+1]
			if !ab.overlaps(newBBox([]Point{b1, b2})) {
				continue
			}
			p, hit := segmentIntersection(a1, a2, b1, b2)
			switch hit {
			case overlapHit:
				return nil, false
			case pointHit:
				seen[p] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil, true
	}
	pts = make([]Point, 0, len(seen))
	for p := range seen {
		pts = append(pts, p)
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	return pts, true
}
