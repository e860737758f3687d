package shapefile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
)

// DecodeAttributes reads one record's fields into typed values aligned
// with the schema. Absence of a usable value (the NULL marker, or an
// empty string field) decodes to nil, never to a default.
func (c *Codec) DecodeAttributes(r FieldReader, record int) []any {
	n := c.Schema.NumFields()
	if n == 0 {
		return nil
	}
	values := make([]any, n)

	for i := 0; i < n; i++ {
		f := c.Schema.Field(i)
		switch f.Type {
		case TypeString:
			raw := r.Attribute(record, i)
			if raw == "" {
				continue
			}
			values[i] = decodeText(raw, c.Encoding)

		case TypeInteger, TypeInteger64, TypeReal:
			if r.Null(record, i) {
				continue
			}
			raw := strings.TrimSpace(r.Attribute(record, i))
			if f.Subtype == SubtypeBoolean {
				values[i] = len(raw) > 0 &&
					(raw[0] == 'T' || raw[0] == 't' || raw[0] == 'Y' || raw[0] == 'y')
				continue
			}
			switch f.Type {
			case TypeInteger:
				n64, _ := strconv.ParseInt(raw, 10, 64)
				values[i] = int(n64)
			case TypeInteger64:
				n64, _ := strconv.ParseInt(raw, 10, 64)
				values[i] = n64
			default:
				v, _ := strconv.ParseFloat(raw, 64)
				values[i] = v
			}

		case TypeDate:
			if r.Null(record, i) {
				continue
			}
			values[i] = parseDate(strings.TrimSpace(r.Attribute(record, i)))
		}
	}
	return values
}

// parseDate accepts the fixed MM/DD/YYYY layout and the concatenated
// YYYYMMDD integer form; both normalize to the same date.
func parseDate(s string) Date {
	if len(s) >= 10 && s[2] == '/' && s[5] == '/' {
		return Date{
			Year:  atoi(s[6:10]),
			Month: atoi(s[0:2]),
			Day:   atoi(s[3:5]),
		}
	}
	n := atoi(s)
	return Date{Year: n / 10000, Month: (n / 100) % 100, Day: n % 100}
}

// EncodeAttributes writes one record's typed values through w, growing
// schema fields in place when a formatted value no longer fits. The
// growth is applied to the on-disk layout before the value write that
// required it. Writers to the same layer must serialize calls.
func (c *Codec) EncodeAttributes(w FieldWriter, record int, values []any) error {
	for i := 0; i < c.Schema.NumFields(); i++ {
		f := c.Schema.Field(i)
		var v any
		if i < len(values) {
			v = values[i]
		}
		if v == nil {
			if err := w.WriteNull(record, i); err != nil {
				return err
			}
			continue
		}

		switch f.Type {
		case TypeString:
			if err := c.writeString(w, record, i, f, toString(v)); err != nil {
				return err
			}

		case TypeInteger, TypeInteger64:
			if f.Subtype == SubtypeBoolean {
				token := "F"
				if truthy(v) {
					token = "T"
				}
				if err := w.WriteAttribute(record, i, token); err != nil {
					return err
				}
				continue
			}
			n, _ := toInt64(v)
			if err := c.writeInteger(w, record, i, f, n); err != nil {
				return err
			}

		case TypeReal:
			val, _ := toFloat64(v)
			// IEEE 754 doubles store exact integers below 2^53.
			if f.Precision == 0 && math.Abs(val) > 1<<53 {
				c.warnPrecisionLoss(f, val, record)
			}
			if err := w.WriteDouble(record, i, val); err != nil {
				c.log().Warnf("value %.17g of field %s of record %d not successfully written, possibly too large for the field width",
					val, f.Name, record)
			}

		case TypeDate:
			d, ok := v.(Date)
			if !ok {
				// Keep the record aligned with the schema.
				if err := w.WriteNull(record, i); err != nil {
					return err
				}
				continue
			}
			if d.Year < 0 || d.Year > 9999 {
				c.log().Warn("year < 0 or > 9999 is not a valid date for shapefile")
				continue
			}
			if d.IsZero() {
				if err := w.WriteNull(record, i); err != nil {
					return err
				}
				continue
			}
			if err := w.WriteInteger(record, i, d.Year*10000+d.Month*100+d.Day); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Codec) writeString(w FieldWriter, record, field int, f *FieldDef, s string) error {
	encoded := encodeText(s, c.Encoding)
	if len(encoded) > MaxFieldWidth {
		if !c.truncationWarned {
			c.truncationWarned = true
			c.log().Warnf("value of field %s has been truncated to %d characters; this warning will not be emitted any more for that layer",
				f.Name, MaxFieldWidth)
		}
		encoded = truncateSafe(encoded, MaxFieldWidth, c.Encoding == nil)
	}
	if len(encoded) > f.Width {
		if err := c.growField(w, field, f, len(encoded)); err != nil {
			return err
		}
	}
	return w.WriteAttribute(record, field, encoded)
}

// truncateSafe clips s to at most max bytes. When the stored text is
// UTF-8 the cut must not split a multi-byte code point: continuation
// bytes are of the form 10xxxxxx, so back up while the byte at the
// cut is one.
func truncateSafe(s string, max int, utf8Encoded bool) string {
	if len(s) <= max {
		return s
	}
	n := max
	if utf8Encoded {
		for n > 0 && s[n]&0xc0 == 0x80 {
			n--
		}
	}
	return s[:n]
}

func (c *Codec) writeInteger(w FieldWriter, record, field int, f *FieldDef, v int64) error {
	width := f.Width
	if width > 31 {
		width = 31
	}
	formatted := fmt.Sprintf("%*d", width, v)
	if len(formatted) > f.Width {
		if err := c.growField(w, field, f, len(formatted)); err != nil {
			return err
		}
	}
	return w.WriteAttribute(record, field, formatted)
}

// growField widens the on-disk column and then the in-memory schema.
// Width never shrinks and the logical type never changes.
func (c *Codec) growField(w FieldWriter, field int, f *FieldDef, width int) error {
	c.log().Debugf("extending field %d (%s) from %d to %d characters", field, f.Name, f.Width, width)
	if err := w.GrowField(field, width); err != nil {
		c.log().Errorf("extending field %d (%s) from %d to %d characters failed", field, f.Name, f.Width, width)
		return fmt.Errorf("%w: %v", ErrSchemaGrowth, err)
	}
	f.Width = width
	return nil
}

func (c *Codec) warnPrecisionLoss(f *FieldDef, v float64, record int) {
	if c.precisionWarns > 10 {
		return
	}
	suffix := ""
	if c.precisionWarns == 10 {
		suffix = " This warning will not be emitted anymore."
	}
	c.log().Warnf("value %.17g of field %s with 0 decimals of record %d is bigger than 2^53, precision loss likely occurred or going to happen.%s",
		v, f.Name, record, suffix)
	c.precisionWarns++
}

// decodeText recodes stored text into UTF-8.
func decodeText(s string, enc encoding.Encoding) string {
	if enc == nil || s == "" {
		return s
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// encodeText recodes UTF-8 text into the file's encoding.
func encodeText(s string, enc encoding.Encoding) string {
	if enc == nil || s == "" {
		return s
	}
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// Value conversion helpers for the loosely typed attribute records.

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	n, ok := toInt64(v)
	return ok && n != 0
}
