package widecolumn

import (
	"strings"

	"github.com/tablecast/tablecast/pkg/errors"
	stringpool "github.com/tablecast/tablecast/pkg/strings"
)

// Separator splits a qualified field name into family and qualifier.
const Separator = ":"

// SplitQualified resolves a field name to its (family, qualifier) pair.
// "family:qualifier" is explicit; a bare name lands in defaultFamily. Names
// with more than two separator-delimited parts are schema errors and are
// never tolerated silently.
func SplitQualified(name, defaultFamily string) (family, qualifier string, err error) {
	parts := strings.Split(name, Separator)
	switch len(parts) {
	case 1:
		return defaultFamily, name, nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", NewInvalidFieldNameError(name)
	}
}

// QualifiedName joins a family and qualifier back into the full column name
// emitted on the read path.
func QualifiedName(family, qualifier string) string {
	return family + Separator + qualifier
}

// NewInvalidFieldNameError reports a field name that does not parse as
// "qualifier" or "family:qualifier".
func NewInvalidFieldNameError(name string) error {
	return errors.New(errors.ErrorTypeValidation,
		stringpool.Sprintf("invalid field name %q: want qualifier or family%squalifier", name, Separator)).
		WithDetail("field", name)
}

// NewMissingRowKeyError reports a record whose row-identifier field is
// absent or null. Fatal per record: the batch aborts rather than writing a
// partial row.
func NewMissingRowKeyError(rowKeyField string) error {
	return errors.New(errors.ErrorTypeData,
		stringpool.Sprintf("record has no value for row key field %q", rowKeyField)).
		WithDetail("rowkey_field", rowKeyField)
}

// IsInvalidFieldName reports whether err is an invalid field name error.
// The "field" detail discriminates it from other validation errors.
func IsInvalidFieldName(err error) bool {
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		return false
	}
	_, ok := errors.Detail(err, "field")
	return ok
}

// IsMissingRowKey reports whether err is a missing row key error. The
// "rowkey_field" detail discriminates it from other data errors, such as a
// codec coercion failure.
func IsMissingRowKey(err error) bool {
	if !errors.IsType(err, errors.ErrorTypeData) {
		return false
	}
	_, ok := errors.Detail(err, "rowkey_field")
	return ok
}
