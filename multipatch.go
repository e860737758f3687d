package shapefile

import (
	geom "github.com/twpayne/go-geom"
)

// Multipatch part types. Each part of a multipatch record carries one
// of these tags describing how its points form a surface piece.
const (
	PartTriangleStrip = 0
	PartTriangleFan   = 1
	PartOuterRing     = 2
	PartInnerRing     = 3
	PartFirstRing     = 4
	PartRing          = 5
)

// MultiPatchCodec interprets the per-part surface-type tags of
// multipatch records. The shapefile codec does not model faceted
// surfaces itself; a driver that needs them plugs an implementation in
// through Codec.Patches. Decode receives the raw record and returns
// the surface geometry; Encode produces the record's parts, points
// and z values (the kind is filled in by the caller).
type MultiPatchCodec interface {
	Decode(rec *ShapeRecord) (geom.T, error)
	Encode(g geom.T) (*ShapeRecord, error)
}
