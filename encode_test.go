package shapefile

import (
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geom "github.com/twpayne/go-geom"
)

func TestEncodeGeometry_NilAndEmpty(t *testing.T) {
	for _, kind := range []ShapeKind{ShapePoint, ShapeArc, ShapePolygon, ShapeMultiPoint} {
		c := quietCodec(kind)

		rec, err := c.EncodeGeometry(nil, false)
		require.NoError(t, err)
		assert.Equal(t, ShapeNull, rec.Kind)

		rec, err = c.EncodeGeometry(geom.NewMultiPointFlat(geom.XY, nil), false)
		require.NoError(t, err)
		assert.Equal(t, ShapeNull, rec.Kind)
	}
}

func TestEncodeGeometry_TypeMismatch(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{1, 2})
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})

	for _, tc := range []struct {
		kind ShapeKind
		g    geom.T
	}{
		{ShapePoint, ls},
		{ShapeArc, pt},
		{ShapePolygon, ls},
		{ShapeMultiPoint, ls},
	} {
		c := quietCodec(tc.kind)
		_, err := c.EncodeGeometry(tc.g, false)
		assert.ErrorIs(t, err, ErrGeometryTypeMismatch, "kind %s", tc.kind)
	}
}

func TestEncodePoint(t *testing.T) {
	c := quietCodec(ShapePoint)
	rec, err := c.EncodeGeometry(geom.NewPointFlat(geom.XY, []float64{3, 4}), false)
	require.NoError(t, err)
	assert.Equal(t, ShapePoint, rec.Kind)
	assert.Equal(t, []float64{3, 4}, rec.XY)
	assert.Nil(t, rec.Z)
	assert.Nil(t, rec.M)
}

func TestEncodePointZ(t *testing.T) {
	c := quietCodec(ShapePointZ)

	// An XYZ source has no measure; the slot fills with no-data.
	rec, err := c.EncodeGeometry(geom.NewPointFlat(geom.XYZ, []float64{1, 2, 3}), false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, rec.XY)
	assert.Equal(t, []float64{3}, rec.Z)
	assert.Equal(t, []float64{NoData}, rec.M)

	rec, err = c.EncodeGeometry(geom.NewPointFlat(geom.XYZM, []float64{1, 2, 3, 4}), false)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, rec.M)

	// A layer declared Z-only emits no measures at all.
	c.Measured = false
	rec, err = c.EncodeGeometry(geom.NewPointFlat(geom.XYZM, []float64{1, 2, 3, 4}), false)
	require.NoError(t, err)
	assert.Nil(t, rec.M)
}

func TestEncodePointM_From2D(t *testing.T) {
	c := quietCodec(ShapePointM)
	rec, err := c.EncodeGeometry(geom.NewPointFlat(geom.XY, []float64{1, 2}), false)
	require.NoError(t, err)
	assert.Equal(t, ShapePointM, rec.Kind)
	assert.Nil(t, rec.Z)
	assert.Equal(t, []float64{NoData}, rec.M)
}

func TestEncodeArc(t *testing.T) {
	c := quietCodec(ShapeArc)

	rec, err := c.EncodeGeometry(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1, 2, 0}), false)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, rec.PartStarts)
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 0}, rec.XY)

	rec, err = c.EncodeGeometry(geom.NewMultiLineStringFlat(geom.XY,
		[]float64{0, 0, 1, 1, 5, 5, 6, 6, 7, 7}, []int{4, 10}), false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, rec.PartStarts)
	assert.Equal(t, 5, rec.NumPoints())
}

func TestEncodeArc_SkipsEmptyParts(t *testing.T) {
	c := quietCodec(ShapeArc)
	// Middle part is empty: a repeated end offset.
	mls := geom.NewMultiLineStringFlat(geom.XY,
		[]float64{0, 0, 1, 1, 5, 5, 6, 6}, []int{4, 4, 8})
	rec, err := c.EncodeGeometry(mls, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, rec.PartStarts)
	assert.Equal(t, 4, rec.NumPoints())
}

func TestEncodePolygon_WindingEnforced(t *testing.T) {
	c := quietCodec(ShapePolygon)

	// Exterior stored counter-clockwise, hole clockwise: both must be
	// flipped on the way out.
	p := geom.NewPolygonFlat(geom.XY,
		append(ccwSquare(0, 0, 10).FlatCoords(), cwSquare(2, 2, 4).FlatCoords()...),
		[]int{10, 20})
	rec, err := c.EncodeGeometry(p, false)
	require.NoError(t, err)
	require.Equal(t, 2, rec.NumParts())
	assert.Equal(t, orb.CW, recordRing(rec, 0).Orientation())
	assert.Equal(t, orb.CCW, recordRing(rec, 1).Orientation())

	// Already conforming input passes through unchanged.
	conforming := geom.NewPolygonFlat(geom.XY,
		append(cwSquare(0, 0, 10).FlatCoords(), ccwSquare(2, 2, 4).FlatCoords()...),
		[]int{10, 20})
	rec, err = c.EncodeGeometry(conforming, false)
	require.NoError(t, err)
	assert.Equal(t, cwSquare(0, 0, 10).FlatCoords(), rec.XY[:10])
}

func TestEncodePolygon_RewindPreservesStoredOrder(t *testing.T) {
	c := quietCodec(ShapePolygon)
	p := geom.NewPolygonFlat(geom.XY, ccwSquare(0, 0, 10).FlatCoords(), []int{10})
	rec, err := c.EncodeGeometry(p, true)
	require.NoError(t, err)
	assert.Equal(t, ccwSquare(0, 0, 10).FlatCoords(), rec.XY)
}

func TestEncodePolygon_MultiPolygonAndCollection(t *testing.T) {
	c := quietCodec(ShapePolygon)

	a := cwSquare(0, 0, 2).FlatCoords()
	b := cwSquare(10, 10, 2).FlatCoords()
	mp := geom.NewMultiPolygonFlat(geom.XY, append(append([]float64{}, a...), b...),
		[][]int{{10}, {20}})
	rec, err := c.EncodeGeometry(mp, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, rec.PartStarts)

	gc := geom.NewGeometryCollection()
	gc.MustPush(geom.NewPolygonFlat(geom.XY, a, []int{10}))
	gc.MustPush(geom.NewPolygonFlat(geom.XY, b, []int{10}))
	rec, err = c.EncodeGeometry(gc, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, rec.PartStarts)

	gc.MustPush(geom.NewPointFlat(geom.XY, []float64{1, 1}))
	_, err = c.EncodeGeometry(gc, false)
	assert.ErrorIs(t, err, ErrGeometryTypeMismatch)
}

func TestEncodePolygon_AllEmptyWritesNull(t *testing.T) {
	c := quietCodec(ShapePolygon)

	rec, err := c.EncodeGeometry(geom.NewPolygon(geom.XY), false)
	require.NoError(t, err)
	assert.Equal(t, ShapeNull, rec.Kind)

	// An empty exterior ring disqualifies the whole polygon even when
	// later rings carry points.
	p := geom.NewPolygonFlat(geom.XY, cwSquare(0, 0, 2).FlatCoords(), []int{0, 10})
	rec, err = c.EncodeGeometry(p, false)
	require.NoError(t, err)
	assert.Equal(t, ShapeNull, rec.Kind)
}

func TestEncodeGeometry_NonFinite(t *testing.T) {
	c := quietCodec(ShapePoint)
	nan := geom.NewPointFlat(geom.XY, []float64{math.NaN(), 0})

	_, err := c.EncodeGeometry(nan, false)
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)

	c.Config.AllowNonFiniteCoordinates = true
	rec, err := c.EncodeGeometry(nan, false)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rec.XY[0]))
}

func TestEncodeMultiPatch(t *testing.T) {
	c := quietCodec(ShapeMultiPatch)

	_, err := c.EncodeGeometry(geom.NewPointFlat(geom.XYZ, []float64{1, 2, 3}), false)
	assert.ErrorIs(t, err, ErrNoMultiPatchCodec)

	c.Patches = stubPatches{}
	rec, err := c.EncodeGeometry(geom.NewPointFlat(geom.XYZ, []float64{1, 2, 3}), false)
	require.NoError(t, err)
	assert.Equal(t, ShapeMultiPatch, rec.Kind)
	assert.Equal(t, []int{PartTriangleStrip}, rec.PartTypes)
}

func TestEncodeGeometry_Idempotent(t *testing.T) {
	c := quietCodec(ShapePolygon)
	p := geom.NewPolygonFlat(geom.XY,
		append(ccwSquare(0, 0, 10).FlatCoords(), cwSquare(2, 2, 4).FlatCoords()...),
		[]int{10, 20})

	first, err := c.EncodeGeometry(p, false)
	require.NoError(t, err)
	second, err := c.EncodeGeometry(p, false)
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(first, second))
}

func TestGeometryRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		kind ShapeKind
		g    geom.T
	}{
		{"point", ShapePoint, geom.NewPointFlat(geom.XY, []float64{3, 4})},
		{"pointz", ShapePointZ, geom.NewPointFlat(geom.XYZM, []float64{1, 2, 3, 4})},
		{"multipoint", ShapeMultiPoint, geom.NewMultiPointFlat(geom.XY, []float64{0, 0, 1, 1})},
		{"linestring", ShapeArc, geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1, 2, 0})},
		{"multilinestring", ShapeArc, geom.NewMultiLineStringFlat(geom.XY,
			[]float64{0, 0, 1, 1, 5, 5, 6, 6}, []int{4, 8})},
		{"polygon", ShapePolygon, geom.NewPolygonFlat(geom.XY,
			append(cwSquare(0, 0, 10).FlatCoords(), ccwSquare(2, 2, 4).FlatCoords()...),
			[]int{10, 20})},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := quietCodec(tc.kind)
			rec, err := c.EncodeGeometry(tc.g, false)
			require.NoError(t, err)
			got := c.DecodeGeometry(rec)
			require.NotNil(t, got)
			assert.IsType(t, tc.g, got)
			assert.Equal(t, tc.g.FlatCoords(), got.FlatCoords())
		})
	}
}
