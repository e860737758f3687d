package shapefile

import (
	geom "github.com/twpayne/go-geom"
)

// DecodeGeometry translates one shape record into a geometry. Empty,
// null and malformed records decode to nil rather than failing: the
// on-disk data already exists and a single bad record must not abort a
// whole-layer scan. The record is only read and may be reused.
func (c *Codec) DecodeGeometry(rec *ShapeRecord) geom.T {
	if rec == nil || rec.Kind == ShapeNull {
		return nil
	}

	switch rec.Kind {
	case ShapePoint, ShapePointM, ShapePointZ:
		return decodePoint(rec)

	case ShapeMultiPoint, ShapeMultiPointM, ShapeMultiPointZ:
		return decodeMultiPoint(rec)

	case ShapeArc, ShapeArcM, ShapeArcZ:
		return decodeArc(rec)

	case ShapePolygon, ShapePolygonM, ShapePolygonZ:
		return c.decodePolygon(rec)

	case ShapeMultiPatch:
		if c.Patches == nil {
			c.log().Debug("multipatch record skipped: no multipatch codec configured")
			return nil
		}
		g, err := c.Patches.Decode(rec)
		if err != nil {
			c.log().WithError(err).Warn("multipatch record could not be decoded")
			return nil
		}
		return g

	default:
		c.log().Debugf("unsupported shape type %d in DecodeGeometry", rec.Kind)
		return nil
	}
}

// recordLayout picks the coordinate layout supported by the record's
// kind and the channels it actually carries. A measured kind without a
// stored m array decodes without a measure channel.
func recordLayout(rec *ShapeRecord) geom.Layout {
	switch {
	case rec.Kind.HasZ():
		if rec.M != nil {
			return geom.XYZM
		}
		return geom.XYZ
	case rec.Kind.HasM():
		if rec.M != nil {
			return geom.XYM
		}
		return geom.XY
	default:
		return geom.XY
	}
}

// flatten copies points [start, end) of the record into a flat
// coordinate slice of the given layout. A missing z channel fills with
// zeros, a missing m channel with the no-data sentinel.
func flatten(rec *ShapeRecord, layout geom.Layout, start, end int) []float64 {
	zi, mi := layout.ZIndex(), layout.MIndex()
	flat := make([]float64, 0, (end-start)*layout.Stride())
	for i := start; i < end; i++ {
		flat = append(flat, rec.XY[2*i], rec.XY[2*i+1])
		if zi >= 0 {
			z := 0.0
			if i < len(rec.Z) {
				z = rec.Z[i]
			}
			flat = append(flat, z)
		}
		if mi >= 0 {
			m := float64(NoData)
			if i < len(rec.M) {
				m = rec.M[i]
			}
			flat = append(flat, m)
		}
	}
	return flat
}

func decodePoint(rec *ShapeRecord) geom.T {
	if rec.NumPoints() == 0 {
		return nil
	}
	x, y := rec.XY[0], rec.XY[1]

	switch rec.Kind {
	case ShapePointZ:
		z := 0.0
		if len(rec.Z) > 0 {
			z = rec.Z[0]
		}
		if rec.measured() {
			return geom.NewPointFlat(geom.XYZM, []float64{x, y, z, rec.M[0]})
		}
		return geom.NewPointFlat(geom.XYZ, []float64{x, y, z})

	case ShapePointM:
		// A zero z is materialized on disk but the logical point
		// stays 2D.
		m := float64(NoData)
		if len(rec.M) > 0 {
			m = rec.M[0]
		}
		return geom.NewPointFlat(geom.XYM, []float64{x, y, m})

	default:
		return geom.NewPointFlat(geom.XY, []float64{x, y})
	}
}

func decodeMultiPoint(rec *ShapeRecord) geom.T {
	n := rec.NumPoints()
	if n == 0 {
		// An empty record decodes to no geometry, not to an empty
		// multipoint.
		return nil
	}
	layout := recordLayout(rec)
	return geom.NewMultiPointFlat(layout, flatten(rec, layout, 0, n))
}

func decodeArc(rec *ShapeRecord) geom.T {
	nParts := rec.NumParts()
	if nParts == 0 {
		return nil
	}
	layout := recordLayout(rec)

	if nParts == 1 {
		return geom.NewLineStringFlat(layout, flatten(rec, layout, 0, rec.NumPoints()))
	}

	flat := make([]float64, 0, rec.NumPoints()*layout.Stride())
	ends := make([]int, 0, nParts)
	for i := 0; i < nParts; i++ {
		start, end := rec.partRange(i)
		flat = append(flat, flatten(rec, layout, start, end)...)
		ends = append(ends, len(flat))
	}
	return geom.NewMultiLineStringFlat(layout, flat, ends)
}

func (c *Codec) decodePolygon(rec *ShapeRecord) geom.T {
	nParts := rec.NumParts()
	if nParts == 0 {
		return nil
	}
	layout := recordLayout(rec)

	if nParts == 1 {
		// Surely the outer ring, whatever its winding.
		ring := flatten(rec, layout, 0, rec.NumPoints())
		return geom.NewPolygonFlat(layout, ring, []int{len(ring)})
	}

	rings := make([]*geom.LinearRing, 0, nParts)
	for i := 0; i < nParts; i++ {
		start, end := rec.partRange(i)
		rings = append(rings, geom.NewLinearRingFlat(layout, flatten(rec, layout, start, end)))
	}
	return c.assemblePolygons(rings, rec.Kind == ShapePolygon)
}
