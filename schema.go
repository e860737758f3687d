package shapefile

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
)

// DBFType is the raw on-disk attribute type tag of a column.
type DBFType int

const (
	DBFString DBFType = iota
	DBFInteger
	DBFDouble
	DBFLogical
	DBFDate
	DBFInvalid
)

// FieldType is the logical attribute type exposed by the codec.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInteger
	TypeInteger64
	TypeReal
	TypeDate
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeInteger:
		return "Integer"
	case TypeInteger64:
		return "Integer64"
	case TypeReal:
		return "Real"
	case TypeDate:
		return "Date"
	}
	return "Unknown"
}

// FieldSubtype refines a logical type.
type FieldSubtype int

const (
	SubtypeNone FieldSubtype = iota
	// SubtypeBoolean marks an integer field backed by a DBF logical
	// column, read and written as single-character tokens.
	SubtypeBoolean
)

// FieldDescriptor is a raw on-disk column description as handed over
// by the file layer.
type FieldDescriptor struct {
	Name      string
	Type      DBFType
	Width     int
	Precision int
}

// FieldDef is one typed field of the layer schema.
type FieldDef struct {
	Name      string
	Type      FieldType
	Subtype   FieldSubtype
	Width     int
	Precision int
}

// FieldSchema is the ordered field list of one layer. It is created
// once at layer open; the only mutation afterwards is width growth
// during attribute writes, which never shrinks a field and never
// changes its logical type.
type FieldSchema struct {
	fields []FieldDef
}

// NewFieldSchema wraps a field list into a schema.
func NewFieldSchema(fields []FieldDef) *FieldSchema {
	return &FieldSchema{fields: fields}
}

// NumFields returns the number of fields.
func (s *FieldSchema) NumFields() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Field returns field i for inspection or width growth.
func (s *FieldSchema) Field(i int) *FieldDef {
	return &s.fields[i]
}

// SchemaOptions configures schema inference.
type SchemaOptions struct {
	// Encoding decodes field names stored in the file's text
	// encoding. Nil means the names are already UTF-8.
	Encoding encoding.Encoding

	// AdjustTypes narrows wide numeric fields to Integer when every
	// stored value fits in 32 bits, scanning all records once through
	// Reader at schema-open time.
	AdjustTypes bool
	Reader      FieldReader
}

// InferSchema derives the typed field schema from the raw column
// descriptors. It cannot fail: malformed width and precision
// combinations are accepted as given.
func InferSchema(descs []FieldDescriptor, opts SchemaOptions) *FieldSchema {
	fields := make([]FieldDef, 0, len(descs))
	adjustable := 0

	for _, d := range descs {
		f := FieldDef{
			Name:      decodeText(d.Name, opts.Encoding),
			Width:     d.Width,
			Precision: d.Precision,
		}
		switch d.Type {
		case DBFDate:
			// The on-disk date is 8 characters (20060101); splitting
			// it as YYYY/MM/DD needs 2 more.
			f.Type = TypeDate
			f.Width = d.Width + 2
		case DBFDouble:
			if d.Precision == 0 && d.Width < 19 {
				f.Type = TypeInteger64
			} else {
				f.Type = TypeReal
			}
			if d.Precision == 0 {
				adjustable++
			}
		case DBFInteger:
			f.Type = TypeInteger
		case DBFLogical:
			f.Type = TypeInteger
			f.Subtype = SubtypeBoolean
		default:
			f.Type = TypeString
		}
		fields = append(fields, f)
	}

	s := &FieldSchema{fields: fields}
	if adjustable > 0 && opts.AdjustTypes && opts.Reader != nil {
		s.adjustNarrowTypes(opts.Reader)
	}
	return s
}

// adjustNarrowTypes re-scans every stored value of the candidate
// fields and narrows each to Integer unless some value needs the
// wider type. One bulk pass over the layer at schema-open time, not
// per-feature.
func (s *FieldSchema) adjustNarrowTypes(r FieldReader) {
	candidate := make([]bool, len(s.fields))
	remaining := 0
	for i := range s.fields {
		f := &s.fields[i]
		if f.Precision == 0 && (f.Type == TypeInteger64 || f.Type == TypeReal) {
			candidate[i] = true
			f.Type = TypeInteger
			remaining++
		}
	}

	rows := r.RecordCount()
	for row := 0; row < rows && remaining > 0; row++ {
		for i := range s.fields {
			if !candidate[i] {
				continue
			}
			value := strings.TrimSpace(r.Attribute(row, i))
			if len(value) < 10 {
				// Short numerals always fit in 32 bits.
				continue
			}
			n, err := strconv.ParseInt(value, 10, 64)
			switch {
			case errors.Is(err, strconv.ErrRange):
				s.fields[i].Type = TypeReal
				candidate[i] = false
				remaining--
			case err != nil:
				// Non-numeric text reads as zero, which fits.
			case n < math.MinInt32 || n > math.MaxInt32:
				s.fields[i].Type = TypeInteger64
				if s.fields[i].Width <= 18 {
					candidate[i] = false
					remaining--
				}
			}
		}
	}
}
