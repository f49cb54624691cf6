// Package schema defines the typed field model shared by the record codec
// and the connectors: logical type tags, field descriptors, and the
// per-qualifier decode hint table supplied by callers at read time.
package schema

import (
	"strings"
	"time"
)

// TypeTag is the logical type of a field value. Tags drive the cell codec's
// encode/decode dispatch; cells themselves are untyped bytes, so the tag is
// the only typing information that survives a write.
type TypeTag string

const (
	TypeString    TypeTag = "string"
	TypeInt64     TypeTag = "long"
	TypeInt32     TypeTag = "integer"
	TypeInt16     TypeTag = "short"
	TypeByte      TypeTag = "byte"
	TypeFloat64   TypeTag = "double"
	TypeFloat32   TypeTag = "float"
	TypeBool      TypeTag = "boolean"
	TypeBinary    TypeTag = "binary"
	TypeDate      TypeTag = "date"
	TypeTimestamp TypeTag = "timestamp"
)

// hintPrefix is the property key prefix carrying per-qualifier decode hints,
// e.g. "field.type.col1" -> "LongType".
const hintPrefix = "field.type."

// tagNames maps every accepted spelling to its tag. Host frameworks spell
// tags as "LongType", "DoubleType", etc.; config files may also use the
// short lowercase forms.
var tagNames = map[string]TypeTag{
	"stringtype":    TypeString,
	"string":        TypeString,
	"longtype":      TypeInt64,
	"long":          TypeInt64,
	"int64":         TypeInt64,
	"integertype":   TypeInt32,
	"integer":       TypeInt32,
	"int":           TypeInt32,
	"int32":         TypeInt32,
	"shorttype":     TypeInt16,
	"short":         TypeInt16,
	"int16":         TypeInt16,
	"bytetype":      TypeByte,
	"byte":          TypeByte,
	"doubletype":    TypeFloat64,
	"double":        TypeFloat64,
	"float64":       TypeFloat64,
	"floattype":     TypeFloat32,
	"float":         TypeFloat32,
	"float32":       TypeFloat32,
	"booleantype":   TypeBool,
	"boolean":       TypeBool,
	"bool":          TypeBool,
	"binarytype":    TypeBinary,
	"binary":        TypeBinary,
	"datetype":      TypeDate,
	"date":          TypeDate,
	"timestamptype": TypeTimestamp,
	"timestamp":     TypeTimestamp,
}

// ParseTypeTag resolves a type name to its tag. The second result is false
// when the name is not recognized; callers fall back to TypeString, which is
// the codec-wide degradation rule.
func ParseTypeTag(name string) (TypeTag, bool) {
	tag, ok := tagNames[strings.ToLower(strings.TrimSpace(name))]
	return tag, ok
}

// TagOf infers the tag for an in-memory value. Used on the write path when
// no declared schema covers a field; unknown types report TypeString so the
// codec's string fallback applies.
func TagOf(value interface{}) TypeTag {
	switch value.(type) {
	case string:
		return TypeString
	case int, int64, uint, uint32, uint64:
		return TypeInt64
	case int32:
		return TypeInt32
	case int16:
		return TypeInt16
	case byte:
		return TypeByte
	case float64:
		return TypeFloat64
	case float32:
		return TypeFloat32
	case bool:
		return TypeBool
	case []byte:
		return TypeBinary
	case time.Time:
		return TypeTimestamp
	default:
		return TypeString
	}
}

// Field describes one typed field of a record. Name may be qualified as
// "family:qualifier"; the (family, qualifier) pair is derived at use sites,
// never stored.
type Field struct {
	Name     string  `json:"name" yaml:"name"`
	Type     TypeTag `json:"type" yaml:"type"`
	Nullable bool    `json:"nullable" yaml:"nullable"`
}

// Schema is an ordered set of field descriptors. Recomputed per batch on the
// write path; on the read path it is synthesized from the hint table.
type Schema struct {
	Name    string  `json:"name" yaml:"name"`
	Fields  []Field `json:"fields" yaml:"fields"`
	Version int     `json:"version" yaml:"version"`
}

// Hints maps a bare qualifier name (not the family-qualified form) to the
// tag used when decoding that qualifier's cells. A qualifier absent from the
// table decodes as a string.
type Hints map[string]TypeTag

// HintsFromProperties extracts decode hints from a flat property map using
// the "field.type.<qualifier>" key convention. Unknown type names are
// ignored rather than rejected: decode degrades to string by contract.
func HintsFromProperties(props map[string]string) Hints {
	hints := make(Hints)
	for key, value := range props {
		if !strings.HasPrefix(key, hintPrefix) {
			continue
		}
		qualifier := key[len(hintPrefix):]
		if qualifier == "" {
			continue
		}
		if tag, ok := ParseTypeTag(value); ok {
			hints[qualifier] = tag
		}
	}
	return hints
}

// MergeHints overlays b on a, returning a new table. Used to combine the
// structured config hint map with flat property overrides.
func MergeHints(a, b Hints) Hints {
	merged := make(Hints, len(a)+len(b))
	for q, t := range a {
		merged[q] = t
	}
	for q, t := range b {
		merged[q] = t
	}
	return merged
}
