package widecolumn

import (
	"sort"

	"github.com/tablecast/tablecast/pkg/pool"
	"github.com/tablecast/tablecast/pkg/schema"
	stringpool "github.com/tablecast/tablecast/pkg/strings"
	"github.com/tablecast/tablecast/pkg/widecolumn"
	"github.com/tablecast/tablecast/pkg/widecolumn/codec"
)

// Encoder turns records into row mutations. Field names resolve to
// family:qualifier columns, values encode per the field's type, and a
// sibling field named qualifier + suffix overlays the cell timestamp.
type Encoder struct {
	// RowKeyField is the record field carrying the row identifier. It is
	// consumed, never written as a cell.
	RowKeyField string
	// DefaultFamily receives fields without an explicit family prefix.
	DefaultFamily string
	// TimestampSuffix enables the overlay convention when non-empty.
	TimestampSuffix string

	// types maps full field names to their declared types. Fields absent
	// from the map encode from their runtime Go type.
	types map[string]schema.TypeTag
}

// NewEncoder builds an encoder with no declared field types.
func NewEncoder(rowKeyField, defaultFamily, timestampSuffix string) *Encoder {
	return &Encoder{
		RowKeyField:     rowKeyField,
		DefaultFamily:   defaultFamily,
		TimestampSuffix: timestampSuffix,
		types:           make(map[string]schema.TypeTag),
	}
}

// DeclareSchema records the field types of s. Subsequent encodes use the
// declared type for matching field names.
func (e *Encoder) DeclareSchema(s *schema.Schema) {
	for _, f := range s.Fields {
		e.types[f.Name] = f.Type
	}
}

// EncodeRecord maps one record to a mutation. Fields are processed in name
// order so output is deterministic. The row key field must be present and
// non-nil; suffix fields are consumed as timestamp overlays, not written.
func (e *Encoder) EncodeRecord(record *pool.Record) (*widecolumn.Mutation, error) {
	data := record.Data

	rowKey, ok := data[e.RowKeyField]
	if !ok || rowKey == nil {
		return nil, widecolumn.NewMissingRowKeyError(e.RowKeyField)
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	mutation := &widecolumn.Mutation{
		RowKey: stringpool.ValueToString(rowKey),
		Cells:  make([]widecolumn.Cell, 0, len(names)-1),
	}

	for _, name := range names {
		if name == e.RowKeyField {
			continue
		}
		if e.isSuffixField(name) {
			continue
		}
		value := data[name]
		if value == nil {
			continue
		}

		family, qualifier, err := widecolumn.SplitQualified(name, e.DefaultFamily)
		if err != nil {
			return nil, err
		}

		tag, ok := e.types[name]
		if !ok {
			tag = schema.TagOf(value)
		}
		encoded, err := codec.Encode(value, tag)
		if err != nil {
			return nil, err
		}

		mutation.Cells = append(mutation.Cells, widecolumn.Cell{
			Column:    widecolumn.Column{Family: family, Qualifier: qualifier},
			Timestamp: e.overlayTimestamp(data, qualifier),
			Value:     encoded,
		})
	}

	return mutation, nil
}

// isSuffixField reports whether name is a timestamp overlay for some other
// field in the record. Overlays are matched on the bare qualifier.
func (e *Encoder) isSuffixField(name string) bool {
	if e.TimestampSuffix == "" {
		return false
	}
	n := len(name) - len(e.TimestampSuffix)
	return n > 0 && name[n:] == e.TimestampSuffix
}

// overlayTimestamp finds the qualifier's overlay value, zero when absent.
// Zero lets the store assign its own write timestamp.
func (e *Encoder) overlayTimestamp(data map[string]interface{}, qualifier string) int64 {
	if e.TimestampSuffix == "" {
		return 0
	}
	raw, ok := data[qualifier+e.TimestampSuffix]
	if !ok || raw == nil {
		return 0
	}
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// FamilySet collects the distinct families a batch of mutations touches,
// so provisioning runs once per batch rather than once per cell.
func FamilySet(mutations []*widecolumn.Mutation) map[string]struct{} {
	families := make(map[string]struct{})
	for _, m := range mutations {
		for _, c := range m.Cells {
			families[c.Family] = struct{}{}
		}
	}
	return families
}
