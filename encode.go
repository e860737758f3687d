package shapefile

import (
	"fmt"
	"math"

	geom "github.com/twpayne/go-geom"
)

// EncodeGeometry translates a geometry into the flat record for the
// codec's shape kind. A nil or empty geometry encodes to the Null
// record and is never an error. When rewind is true the caller
// vouches for the ring winding and it is preserved as stored;
// otherwise exterior rings are emitted clockwise and holes
// counter-clockwise whatever their stored order.
//
// Every coordinate buffer passes the finite check before the record
// is returned; nothing is emitted for a rejected feature.
func (c *Codec) EncodeGeometry(g geom.T, rewind bool) (*ShapeRecord, error) {
	if g == nil || geomEmpty(g) {
		return &ShapeRecord{Kind: ShapeNull}, nil
	}

	switch c.Kind {
	case ShapePoint, ShapePointM, ShapePointZ:
		return c.encodePoint(g)

	case ShapeMultiPoint, ShapeMultiPointM, ShapeMultiPointZ:
		return c.encodeMultiPoint(g)

	case ShapeArc, ShapeArcM, ShapeArcZ:
		return c.encodeArc(g)

	case ShapePolygon, ShapePolygonM, ShapePolygonZ:
		return c.encodePolygon(g, rewind)

	case ShapeMultiPatch:
		return c.encodeMultiPatch(g)

	default:
		return nil, fmt.Errorf("%w: layer shape kind %s", ErrGeometryTypeMismatch, c.Kind)
	}
}

// checkFinite is the write-time coordinate gate. Read never validates:
// the on-disk data already exists.
func (c *Codec) checkFinite(buffers ...[]float64) error {
	if c.Config.AllowNonFiniteCoordinates {
		return nil
	}
	for _, buf := range buffers {
		for _, v := range buf {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return ErrNonFiniteCoordinate
			}
		}
	}
	return nil
}

func geomEmpty(g geom.T) bool {
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for i := 0; i < gc.NumGeoms(); i++ {
			if !geomEmpty(gc.Geom(i)) {
				return false
			}
		}
		return true
	}
	return len(g.FlatCoords()) == 0
}

func geomName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "point"
	case *geom.MultiPoint:
		return "multipoint"
	case *geom.LineString:
		return "linestring"
	case *geom.MultiLineString:
		return "multilinestring"
	case *geom.LinearRing:
		return "linearring"
	case *geom.Polygon:
		return "polygon"
	case *geom.MultiPolygon:
		return "multipolygon"
	case *geom.GeometryCollection:
		return "geometrycollection"
	default:
		return "unknown"
	}
}

func (c *Codec) mismatch(g geom.T) error {
	return fmt.Errorf("%w: attempt to write %s geometry to a %s layer",
		ErrGeometryTypeMismatch, geomName(g), c.Kind)
}

// appendPart copies one part's coordinates into the record, filling
// the z and m channels the destination kind asks for. A z channel
// missing from the source fills with zeros; a missing m channel fills
// with the no-data sentinel.
func appendPart(rec *ShapeRecord, flat []float64, layout geom.Layout, hasZ, hasM, reverse bool) {
	stride := layout.Stride()
	zi, mi := layout.ZIndex(), layout.MIndex()
	n := len(flat) / stride
	for k := 0; k < n; k++ {
		i := k
		if reverse {
			i = n - 1 - k
		}
		base := i * stride
		rec.XY = append(rec.XY, flat[base], flat[base+1])
		if hasZ {
			z := 0.0
			if zi >= 0 {
				z = flat[base+zi]
			}
			rec.Z = append(rec.Z, z)
		}
		if hasM {
			m := float64(NoData)
			if mi >= 0 {
				m = flat[base+mi]
			}
			rec.M = append(rec.M, m)
		}
	}
}

func (c *Codec) encodePoint(g geom.T) (*ShapeRecord, error) {
	p, ok := g.(*geom.Point)
	if !ok {
		return nil, c.mismatch(g)
	}
	flat := p.FlatCoords()
	layout := p.Layout()

	rec := &ShapeRecord{Kind: c.Kind, XY: []float64{flat[0], flat[1]}}
	if c.Kind.HasZ() {
		z := 0.0
		if zi := layout.ZIndex(); zi >= 0 {
			z = flat[zi]
		}
		rec.Z = []float64{z}
	}
	if c.Kind.HasM() && c.Measured {
		m := float64(NoData)
		if mi := layout.MIndex(); mi >= 0 {
			m = flat[mi]
		}
		rec.M = []float64{m}
	}
	if err := c.checkFinite(rec.XY, rec.Z, rec.M); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Codec) encodeMultiPoint(g geom.T) (*ShapeRecord, error) {
	mp, ok := g.(*geom.MultiPoint)
	if !ok {
		return nil, c.mismatch(g)
	}
	layout := mp.Layout()
	zi, mi := layout.ZIndex(), layout.MIndex()
	hasZ := c.Kind.HasZ()
	hasM := c.Kind.HasM() && c.Measured

	rec := &ShapeRecord{Kind: c.Kind}
	for i := 0; i < mp.NumPoints(); i++ {
		pf := mp.Point(i).FlatCoords()
		if len(pf) == 0 {
			c.log().Debug("skipping empty point inside multipoint in shapefile writer")
			continue
		}
		rec.XY = append(rec.XY, pf[0], pf[1])
		if hasZ {
			z := 0.0
			if zi >= 0 {
				z = pf[zi]
			}
			rec.Z = append(rec.Z, z)
		}
		if hasM {
			m := float64(NoData)
			if mi >= 0 {
				m = pf[mi]
			}
			rec.M = append(rec.M, m)
		}
	}
	if err := c.checkFinite(rec.XY, rec.Z, rec.M); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Codec) encodeArc(g geom.T) (*ShapeRecord, error) {
	var lines []*geom.LineString
	switch v := g.(type) {
	case *geom.LineString:
		// A bare line writes as a one-part multi-line.
		lines = []*geom.LineString{v}
	case *geom.MultiLineString:
		for i := 0; i < v.NumLineStrings(); i++ {
			lines = append(lines, v.LineString(i))
		}
	default:
		return nil, c.mismatch(g)
	}

	hasZ := c.Kind.HasZ()
	hasM := c.Kind.HasM() && c.Measured

	rec := &ShapeRecord{Kind: c.Kind}
	for _, ls := range lines {
		if ls.NumCoords() == 0 {
			c.log().Debug("skipping empty linestring inside multilinestring in shapefile writer")
			continue
		}
		rec.PartStarts = append(rec.PartStarts, rec.NumPoints())
		appendPart(rec, ls.FlatCoords(), ls.Layout(), hasZ, hasM, false)
	}
	if err := c.checkFinite(rec.XY, rec.Z, rec.M); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Codec) encodePolygon(g geom.T, rewind bool) (*ShapeRecord, error) {
	type ringRole struct {
		ring  *geom.LinearRing
		outer bool
	}
	var rings []ringRole

	collect := func(p *geom.Polygon) {
		if p.NumLinearRings() == 0 || p.LinearRing(0).NumCoords() == 0 {
			c.log().Debug("skipping empty polygon in shapefile writer")
			return
		}
		for i := 0; i < p.NumLinearRings(); i++ {
			r := p.LinearRing(i)
			if r.NumCoords() == 0 {
				c.log().Debug("skipping empty ring inside polygon in shapefile writer")
				continue
			}
			rings = append(rings, ringRole{ring: r, outer: i == 0})
		}
	}

	switch v := g.(type) {
	case *geom.Polygon:
		collect(v)
	case *geom.MultiPolygon:
		for i := 0; i < v.NumPolygons(); i++ {
			collect(v.Polygon(i))
		}
	case *geom.GeometryCollection:
		for i := 0; i < v.NumGeoms(); i++ {
			p, ok := v.Geom(i).(*geom.Polygon)
			if !ok {
				return nil, c.mismatch(v.Geom(i))
			}
			collect(p)
		}
	default:
		return nil, c.mismatch(g)
	}

	if len(rings) == 0 {
		// Only empty polygons or rings: still a valid write.
		return &ShapeRecord{Kind: ShapeNull}, nil
	}

	hasZ := c.Kind.HasZ()
	hasM := c.Kind.HasM() && c.Measured

	rec := &ShapeRecord{Kind: c.Kind}
	for _, rr := range rings {
		// Exterior rings must be clockwise on disk, holes
		// counter-clockwise.
		cw := ringClockwise(rr.ring)
		reverse := !rewind && rr.outer != cw
		rec.PartStarts = append(rec.PartStarts, rec.NumPoints())
		appendPart(rec, rr.ring.FlatCoords(), rr.ring.Layout(), hasZ, hasM, reverse)
	}
	if err := c.checkFinite(rec.XY, rec.Z, rec.M); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Codec) encodeMultiPatch(g geom.T) (*ShapeRecord, error) {
	if c.Patches == nil {
		return nil, ErrNoMultiPatchCodec
	}
	rec, err := c.Patches.Encode(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometryTypeMismatch, err)
	}
	rec.Kind = ShapeMultiPatch
	if err := c.checkFinite(rec.XY, rec.Z, rec.M); err != nil {
		return nil, err
	}
	return rec, nil
}
