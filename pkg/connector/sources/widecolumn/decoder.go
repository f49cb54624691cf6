package widecolumn

import (
	"github.com/tablecast/tablecast/pkg/pool"
	"github.com/tablecast/tablecast/pkg/schema"
	"github.com/tablecast/tablecast/pkg/widecolumn"
	"github.com/tablecast/tablecast/pkg/widecolumn/codec"
)

// Decoder turns scanned rows back into records. Each cell yields two
// fields: the decoded value under the full "family:qualifier" name and the
// cell's write timestamp under that name plus the suffix. Decode hints are
// looked up by bare qualifier; unhinted qualifiers decode as strings.
type Decoder struct {
	// RowKeyField names the record field receiving the row key.
	RowKeyField string
	// FamilyFilter restricts decoding to one family when non-empty.
	FamilyFilter string
	// TimestampSuffix names the timestamp companion fields, "_ts" by
	// convention.
	TimestampSuffix string
	// Hints maps bare qualifiers to decode types.
	Hints schema.Hints
}

// DecodeRow maps one scanned row to a record. Returns nil when the family
// filter leaves no cells; such rows are dropped rather than emitted empty.
func (d *Decoder) DecodeRow(row *widecolumn.RowResult) *pool.Record {
	cells := row.Cells
	if d.FamilyFilter != "" {
		cells = cells[:0:0]
		for _, c := range row.Cells {
			if c.Family == d.FamilyFilter {
				cells = append(cells, c)
			}
		}
	}
	if len(cells) == 0 {
		return nil
	}

	record := pool.NewRecordFromPool("widecolumn")
	record.SetData(d.RowKeyField, row.RowKey)

	for _, c := range cells {
		fullName := widecolumn.QualifiedName(c.Family, c.Qualifier)
		record.SetData(fullName, codec.Decode(c.Value, d.Hints[c.Qualifier]))
		record.SetData(fullName+d.TimestampSuffix, c.Timestamp)
	}
	return record
}

// FieldsForHints synthesizes the discoverable schema from the hint table.
// Scan output is self-describing only through the hints, so discovery
// reports the hinted qualifiers plus the row key field.
func (d *Decoder) FieldsForHints() []schema.Field {
	fields := make([]schema.Field, 0, 2*len(d.Hints)+1)
	fields = append(fields, schema.Field{Name: d.RowKeyField, Type: schema.TypeString})
	for qualifier, tag := range d.Hints {
		fields = append(fields, schema.Field{Name: qualifier, Type: tag, Nullable: true})
		fields = append(fields, schema.Field{Name: qualifier + d.TimestampSuffix, Type: schema.TypeInt64, Nullable: true})
	}
	return fields
}
