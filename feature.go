package shapefile

// DecodeFeature materializes one feature: the decoded geometry plus
// the typed attribute record. r may be nil for layers without an
// attribute store, shape may be nil for attribute-only layers. The
// returned feature is owned by the caller.
func (c *Codec) DecodeFeature(r FieldReader, record int, shape *ShapeRecord) *Feature {
	f := &Feature{}
	if shape != nil {
		f.Geometry = c.DecodeGeometry(shape)
	}
	if r != nil {
		f.Fields = c.DecodeAttributes(r, record)
	}
	return f
}

// EncodeFeature translates a feature for writing. The geometry record
// is produced first, before any attribute side effect, so a failed
// feature leaves the layer untouched; the caller emits the returned
// record only once this returns without error.
func (c *Codec) EncodeFeature(w FieldWriter, record int, f *Feature, rewind bool) (*ShapeRecord, error) {
	rec, err := c.EncodeGeometry(f.Geometry, rewind)
	if err != nil {
		return nil, err
	}
	if w != nil {
		if err := c.EncodeAttributes(w, record, f.Fields); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
