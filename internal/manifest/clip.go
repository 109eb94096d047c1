package manifest

import "github.com/paulmach/orb"

// intersectsNotTouches reports whether polygon p has non-zero-area overlap
// with the axis-aligned rectangle bound — "intersects and does not merely
// touch" per spec.md §4.2. Every tile geometry in this system is an
// axis-aligned bounding box, so clipping the (possibly non-convex) source
// ring against it via Sutherland-Hodgman and checking the resulting area is
// sufficient; a shared edge or vertex with no interior overlap clips to a
// degenerate (zero-area) polygon and is correctly classified as "touches".
func intersectsNotTouches(p orb.Polygon, bound orb.Bound) bool {
	if len(p) == 0 {
		return false
	}
	if !boundsOverlap(p.Bound(), bound) {
		return false
	}

	clipped := clipToBound(p[0], bound)
	return polygonArea(clipped) > areaEpsilon
}

const areaEpsilon = 1e-12

func boundsOverlap(a, b orb.Bound) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1]
}

// clipToBound clips ring against the rectangle bound using the
// Sutherland-Hodgman algorithm, clipping sequentially against each of the
// rectangle's four half-planes.
func clipToBound(ring orb.Ring, bound orb.Bound) []orb.Point {
	poly := []orb.Point(ring)
	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p[0] >= bound.Min[0] }, func(a, b orb.Point) orb.Point {
		return xIntersect(a, b, bound.Min[0])
	})
	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p[0] <= bound.Max[0] }, func(a, b orb.Point) orb.Point {
		return xIntersect(a, b, bound.Max[0])
	})
	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p[1] >= bound.Min[1] }, func(a, b orb.Point) orb.Point {
		return yIntersect(a, b, bound.Min[1])
	})
	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p[1] <= bound.Max[1] }, func(a, b orb.Point) orb.Point {
		return yIntersect(a, b, bound.Max[1])
	})
	return poly
}

func clipHalfPlane(poly []orb.Point, inside func(orb.Point) bool, intersect func(a, b orb.Point) orb.Point) []orb.Point {
	if len(poly) == 0 {
		return poly
	}
	var out []orb.Point
	prev := poly[len(poly)-1]
	prevIn := inside(prev)
	for _, cur := range poly {
		curIn := inside(cur)
		if curIn {
			if !prevIn {
				out = append(out, intersect(prev, cur))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, intersect(prev, cur))
		}
		prev, prevIn = cur, curIn
	}
	return out
}

func xIntersect(a, b orb.Point, x float64) orb.Point {
	t := (x - a[0]) / (b[0] - a[0])
	return orb.Point{x, a[1] + t*(b[1]-a[1])}
}

func yIntersect(a, b orb.Point, y float64) orb.Point {
	t := (y - a[1]) / (b[1] - a[1])
	return orb.Point{a[0] + t*(b[0]-a[0]), y}
}

// polygonArea computes the area via the shoelace formula (half the absolute
// signed sum); callers only compare it against an epsilon.
func polygonArea(poly []orb.Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	var sum float64
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i][0]*poly[j][1] - poly[j][0]*poly[i][1]
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}
