package shapefile

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	geom "github.com/twpayne/go-geom"
)

// AssembleMethod selects how candidate rings are organized into
// polygons.
type AssembleMethod int

const (
	// AssembleOnlyCCW trusts the shapefile winding convention:
	// clockwise rings open a new polygon and counter-clockwise rings
	// become holes of the most recently opened polygon containing
	// them. O(rings) on conforming input.
	AssembleOnlyCCW AssembleMethod = iota

	// AssembleGeneral resolves ring containment fully and ignores
	// winding.
	AssembleGeneral
)

// PolygonAssembler organizes candidate rings into a polygon or
// multipolygon. The boolean result reports whether the assembly is
// structurally valid; an invalid assembly still returns a best-effort
// geometry so that no ring is dropped.
type PolygonAssembler interface {
	Assemble(rings []*geom.LinearRing, method AssembleMethod) (geom.T, bool)
}

// assemblePolygons partitions decoded rings into polygons. Winding is
// normally trusted, but some writers have serialized multi-part
// polygons as one exterior ring plus disjoint counter-clockwise
// "holes"; when checkWinding is set that corruption is detected and
// assembly switches to full containment resolution.
func (c *Codec) assemblePolygons(rings []*geom.LinearRing, checkWinding bool) geom.T {
	method := AssembleOnlyCCW
	if checkWinding && detectBadWinding(rings) {
		method = AssembleGeneral
		if c.windingWarned.CompareAndSwap(false, true) {
			c.log().Warn("layer contains polygon(s) with rings with invalid winding order; autocorrecting them, but the shapefile should be rewritten")
		}
	}

	asm := c.Assembler
	if asm == nil {
		asm = defaultAssembler{}
	}
	g, valid := asm.Assemble(rings, method)
	if !valid {
		c.log().Warn("polygon geometry cannot be translated to a simple geometry; all polygons will be contained in a multipolygon")
	}
	return g
}

// detectBadWinding reports whether a ring list that claims to be one
// exterior ring plus holes is more likely a mis-saved multi-part
// polygon. It only fires when no ring beyond the first is clockwise:
//
//  1. Disjoint envelopes between the first ring and a later ring mean
//     the later ring is clearly a separate part.
//  2. Otherwise the four axis-extremity vertices of each later ring
//     are tested against the first ring; if none lies inside it the
//     ring is very likely an exterior ring of its own.
//
// The extremity test is a best-effort detector, not a proof: a
// pathological hole whose extremities all fall outside the first ring
// is misclassified. That ambiguity is inherent to the format.
func detectBadWinding(rings []*geom.LinearRing) bool {
	for _, r := range rings[1:] {
		if ringClockwise(r) {
			return false
		}
	}

	first := orbRing(rings[0])
	firstBound := first.Bound()
	for _, r := range rings[1:] {
		ring := orbRing(r)
		if !firstBound.Intersects(ring.Bound()) {
			return true
		}
		left, right, bottom, top := extremities(ring)
		if !planar.RingContains(first, left) &&
			!planar.RingContains(first, right) &&
			!planar.RingContains(first, bottom) &&
			!planar.RingContains(first, top) {
			return true
		}
	}
	return false
}

// extremities returns the min-x, max-x, min-y and max-y vertices of
// the ring, skipping the closing point. Ties break toward the vertex
// less likely to sit on a shared edge.
func extremities(r orb.Ring) (left, right, bottom, top orb.Point) {
	left = orb.Point{math.Inf(1), 0}
	right = orb.Point{math.Inf(-1), 0}
	bottom = orb.Point{0, math.Inf(1)}
	top = orb.Point{0, math.Inf(-1)}

	n := len(r)
	if n > 1 {
		n--
	}
	for i := 0; i < n; i++ {
		p := r[i]
		if p[0] < left[0] || (p[0] == left[0] && p[1] < left[1]) {
			left = p
		}
		if p[0] > right[0] || (p[0] == right[0] && p[1] > right[1]) {
			right = p
		}
		if p[1] < bottom[1] || (p[1] == bottom[1] && p[0] > bottom[0]) {
			bottom = p
		}
		if p[1] > top[1] || (p[1] == top[1] && p[0] < top[0]) {
			top = p
		}
	}
	return left, right, bottom, top
}

// orbRing projects a ring's x,y coordinates into an orb ring so the
// planar predicates can run on it.
func orbRing(r *geom.LinearRing) orb.Ring {
	flat := r.FlatCoords()
	stride := r.Stride()
	ring := make(orb.Ring, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		ring = append(ring, orb.Point{flat[i], flat[i+1]})
	}
	return ring
}

func ringClockwise(r *geom.LinearRing) bool {
	ring := orbRing(r)
	if len(ring) < 3 {
		return false
	}
	return ring.Orientation() == orb.CW
}

// ringInRing reports whether inner sits inside outer, using the
// envelope and one representative vertex.
func ringInRing(inner, outer orb.Ring) bool {
	if len(inner) == 0 || len(outer) == 0 {
		return false
	}
	if !outer.Bound().Intersects(inner.Bound()) {
		return false
	}
	return planar.RingContains(outer, inner[0])
}

// ringArea returns the absolute planar area of a ring.
func ringArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	area := 0.0
	prev := r[len(r)-1]
	for _, p := range r {
		area += prev[0]*p[1] - p[0]*prev[1]
		prev = p
	}
	return math.Abs(area / 2)
}

// defaultAssembler is the built-in ring organizer.
type defaultAssembler struct{}

func (defaultAssembler) Assemble(rings []*geom.LinearRing, method AssembleMethod) (geom.T, bool) {
	if len(rings) == 0 {
		return nil, true
	}
	if method == AssembleGeneral {
		return assembleGeneral(rings)
	}
	return assembleOnlyCCW(rings)
}

// assembleOnlyCCW walks the rings once. The first ring always opens a
// polygon whatever its winding; later clockwise rings open new
// polygons, counter-clockwise rings join the most recently opened
// polygon that contains them.
func assembleOnlyCCW(rings []*geom.LinearRing) (geom.T, bool) {
	groups := [][]*geom.LinearRing{{rings[0]}}
	outers := []orb.Ring{orbRing(rings[0])}
	valid := true

	for _, r := range rings[1:] {
		if ringClockwise(r) {
			groups = append(groups, []*geom.LinearRing{r})
			outers = append(outers, orbRing(r))
			continue
		}
		hole := orbRing(r)
		target := -1
		for i := len(groups) - 1; i >= 0; i-- {
			if ringInRing(hole, outers[i]) {
				target = i
				break
			}
		}
		if target < 0 {
			// No exterior ring contains this hole. Keep it with the
			// most recent polygon so nothing is dropped.
			target = len(groups) - 1
			valid = false
		}
		groups[target] = append(groups[target], r)
	}
	return buildPolygons(groups), valid
}

// assembleGeneral resolves containment between every ring pair. A ring
// contained by an even number of other rings is an exterior ring; a
// ring at odd depth becomes a hole of its smallest container.
func assembleGeneral(rings []*geom.LinearRing) (geom.T, bool) {
	n := len(rings)
	obRings := make([]orb.Ring, n)
	areas := make([]float64, n)
	for i, r := range rings {
		obRings[i] = orbRing(r)
		areas[i] = ringArea(obRings[i])
	}

	depth := make([]int, n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || areas[j] <= areas[i] {
				continue
			}
			if !ringInRing(obRings[i], obRings[j]) {
				continue
			}
			depth[i]++
			if parent[i] < 0 || areas[j] < areas[parent[i]] {
				parent[i] = j
			}
		}
	}

	valid := true
	var groups [][]*geom.LinearRing
	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}
	for i := 0; i < n; i++ {
		if depth[i]%2 == 0 {
			owner[i] = len(groups)
			groups = append(groups, []*geom.LinearRing{rings[i]})
		}
	}
	for i := 0; i < n; i++ {
		if depth[i]%2 == 0 {
			continue
		}
		g := owner[parent[i]]
		if g < 0 {
			// The immediate container is itself a hole: the input is
			// not a valid nesting. Promote the ring to its own
			// polygon rather than losing it.
			valid = false
			groups = append(groups, []*geom.LinearRing{rings[i]})
			continue
		}
		groups[g] = append(groups[g], rings[i])
	}
	return buildPolygons(groups), valid
}

// buildPolygons concatenates ring groups back into flat storage. A
// single group becomes a polygon, several become a multipolygon.
func buildPolygons(groups [][]*geom.LinearRing) geom.T {
	if len(groups) == 0 {
		return nil
	}
	layout := groups[0][0].Layout()

	if len(groups) == 1 {
		flat, ends := flattenRings(groups[0], nil)
		return geom.NewPolygonFlat(layout, flat, ends)
	}

	var flat []float64
	endss := make([][]int, 0, len(groups))
	for _, rings := range groups {
		var ends []int
		flat, ends = flattenRings(rings, flat)
		endss = append(endss, ends)
	}
	return geom.NewMultiPolygonFlat(layout, flat, endss)
}

func flattenRings(rings []*geom.LinearRing, flat []float64) ([]float64, []int) {
	ends := make([]int, 0, len(rings))
	for _, r := range rings {
		flat = append(flat, r.FlatCoords()...)
		ends = append(ends, len(flat))
	}
	return flat, ends
}
