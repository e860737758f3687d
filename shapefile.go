// Package shapefile implements the feature codec of a Shapefile driver:
// it translates between the format's flat, shape-type-tagged coordinate
// records plus fixed-width attribute records and go-geom geometries plus
// typed field values.
//
// The codec operates on one fully materialized record or feature at a
// time. Opening, seeking and growing the underlying .shp/.shx/.dbf files
// is the caller's responsibility and is reached through the FieldReader
// and FieldWriter interfaces; shape records are exchanged as values.
//
// Geometry decode and encode hold no shared state and are safe to run
// per-feature in parallel. Attribute encoding may grow the layer schema
// in place, so writers to the same layer must serialize those calls.
package shapefile

import (
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	geom "github.com/twpayne/go-geom"
	"golang.org/x/text/encoding"
)

// Common errors returned by this package.
var (
	ErrGeometryTypeMismatch = errors.New("shapefile: geometry type not representable in layer shape kind")
	ErrNonFiniteCoordinate  = errors.New("shapefile: coordinates with non-finite values are not allowed")
	ErrSchemaGrowth         = errors.New("shapefile: growing attribute field failed")
	ErrNoMultiPatchCodec    = errors.New("shapefile: no multipatch codec configured")
)

// ShapeKind identifies the on-disk shape type of a record or layer,
// using the numeric tags of the shapefile specification.
type ShapeKind int

const (
	ShapeNull        ShapeKind = 0
	ShapePoint       ShapeKind = 1
	ShapeArc         ShapeKind = 3
	ShapePolygon     ShapeKind = 5
	ShapeMultiPoint  ShapeKind = 8
	ShapePointZ      ShapeKind = 11
	ShapeArcZ        ShapeKind = 13
	ShapePolygonZ    ShapeKind = 15
	ShapeMultiPointZ ShapeKind = 18
	ShapePointM      ShapeKind = 21
	ShapeArcM        ShapeKind = 23
	ShapePolygonM    ShapeKind = 25
	ShapeMultiPointM ShapeKind = 28
	ShapeMultiPatch  ShapeKind = 31
)

// HasZ reports whether the kind carries an elevation channel.
func (k ShapeKind) HasZ() bool {
	switch k {
	case ShapePointZ, ShapeArcZ, ShapePolygonZ, ShapeMultiPointZ, ShapeMultiPatch:
		return true
	}
	return false
}

// HasM reports whether the kind can carry a measure channel. The Z
// kinds store an optional M array next to the mandatory Z array.
func (k ShapeKind) HasM() bool {
	switch k {
	case ShapePointM, ShapeArcM, ShapePolygonM, ShapeMultiPointM:
		return true
	}
	return k.HasZ() && k != ShapeMultiPatch
}

func (k ShapeKind) String() string {
	switch k {
	case ShapeNull:
		return "Null"
	case ShapePoint:
		return "Point"
	case ShapeArc:
		return "Arc"
	case ShapePolygon:
		return "Polygon"
	case ShapeMultiPoint:
		return "MultiPoint"
	case ShapePointZ:
		return "PointZ"
	case ShapeArcZ:
		return "ArcZ"
	case ShapePolygonZ:
		return "PolygonZ"
	case ShapeMultiPointZ:
		return "MultiPointZ"
	case ShapePointM:
		return "PointM"
	case ShapeArcM:
		return "ArcM"
	case ShapePolygonM:
		return "PolygonM"
	case ShapeMultiPointM:
		return "MultiPointM"
	case ShapeMultiPatch:
		return "MultiPatch"
	}
	return "Unknown"
}

const (
	// NoData is the sentinel written for a measure value that is
	// present in the file but unset. Stored measures at or below this
	// value are treated as unset on read.
	NoData = -1e38

	// MaxFieldWidth is the widest a string attribute field can be in
	// the DBF format. Longer values are truncated.
	MaxFieldWidth = 255
)

// ShapeRecord is the flat encoding of one shape: interleaved x,y pairs,
// optional parallel z and m channels of the same point count, and
// part-start indices partitioning the point sequence into rings or
// lines. A nil PartStarts means a single part spanning the whole
// sequence. PartTypes is only present for multipatch records.
type ShapeRecord struct {
	Kind       ShapeKind
	XY         []float64
	Z          []float64
	M          []float64
	PartStarts []int
	PartTypes  []int
}

// NumPoints returns the number of coordinate pairs in the record.
func (r *ShapeRecord) NumPoints() int {
	return len(r.XY) / 2
}

// NumParts returns the number of parts, treating a record without
// part offsets as a single part when it has any points.
func (r *ShapeRecord) NumParts() int {
	if r.PartStarts == nil {
		if r.NumPoints() > 0 {
			return 1
		}
		return 0
	}
	return len(r.PartStarts)
}

// partRange returns the [start, end) point index range of part i.
// Offsets outside the record clamp to its bounds, so a corrupt record
// decodes to degenerate parts instead of panicking.
func (r *ShapeRecord) partRange(i int) (int, int) {
	n := r.NumPoints()
	if r.PartStarts == nil {
		return 0, n
	}
	start := r.PartStarts[i]
	end := n
	if i < len(r.PartStarts)-1 {
		end = r.PartStarts[i+1]
	}
	if start < 0 {
		start = 0
	} else if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	return start, end
}

// measured reports whether any measure in the record is actually set.
func (r *ShapeRecord) measured() bool {
	for _, m := range r.M {
		if m > NoData {
			return true
		}
	}
	return false
}

// Config carries process-wide codec settings. It is read once at codec
// construction and never mutated afterwards, so it is safe to share.
type Config struct {
	// AllowNonFiniteCoordinates disables the write-time finite
	// coordinate check. Only intended for edge case testing.
	AllowNonFiniteCoordinates bool

	// Logger receives recoverable diagnostics. Defaults to the logrus
	// standard logger.
	Logger *logrus.Logger
}

// Codec translates one layer's shape and attribute records.
type Codec struct {
	// Kind is the layer's destination shape kind for writes.
	Kind ShapeKind

	// Measured reports whether the layer geometry carries a measure
	// channel. Kinds with a mandatory or optional M array default to
	// measured; a caller whose layer type is Z-only can clear it.
	Measured bool

	// Schema is the layer's attribute schema, mutated in place by
	// field growth during writes. Nil for layers without attributes.
	Schema *FieldSchema

	// Encoding is the attribute text encoding of the file. Nil means
	// the file stores UTF-8.
	Encoding encoding.Encoding

	// Patches interprets multipatch surface parts. Nil makes
	// multipatch records decode to nothing and fail to encode.
	Patches MultiPatchCodec

	// Assembler organizes candidate polygon rings. Nil selects the
	// built-in assembler.
	Assembler PolygonAssembler

	// Config holds the process-wide settings.
	Config Config

	// Decode may run per-feature in parallel, so the once-per-layer
	// winding warning is atomic. The attribute-write flags below are
	// plain: writers to one layer serialize anyway.
	windingWarned    atomic.Bool
	truncationWarned bool
	precisionWarns   int
}

// NewCodec creates a codec for one layer.
func NewCodec(kind ShapeKind, schema *FieldSchema, cfg Config) *Codec {
	return &Codec{
		Kind:     kind,
		Measured: kind.HasM(),
		Schema:   schema,
		Config:   cfg,
	}
}

func (c *Codec) log() *logrus.Logger {
	if c.Config.Logger != nil {
		return c.Config.Logger
	}
	return logrus.StandardLogger()
}

// Date is a calendar date attribute value. The zero Date is the
// shapefile NULL date.
type Date struct {
	Year  int
	Month int
	Day   int
}

// IsZero reports whether the date is the NULL date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Feature pairs one geometry with its attribute record. Fields is
// aligned 1:1 with the layer schema; a nil entry is NULL.
type Feature struct {
	Geometry geom.T
	Fields   []any
}

// FieldReader is the read side of the layer's attribute store.
type FieldReader interface {
	// RecordCount returns the number of attribute records.
	RecordCount() int
	// Null reports whether the stored value carries the NULL marker.
	Null(record, field int) bool
	// Attribute returns the stored text of one field, in the file's
	// text encoding.
	Attribute(record, field int) string
}

// FieldWriter is the write side of the layer's attribute store.
type FieldWriter interface {
	// WriteAttribute stores preformatted field text as-is.
	WriteAttribute(record, field int, value string) error
	// WriteDouble stores a decimal numeral using the field's width
	// and precision.
	WriteDouble(record, field int, value float64) error
	// WriteInteger stores an integer numeral.
	WriteInteger(record, field int, value int) error
	// WriteNull stores the field's NULL marker.
	WriteNull(record, field int) error
	// GrowField widens a column of the on-disk layout. It is always
	// applied before the value write that requires it.
	GrowField(field, width int) error
}
