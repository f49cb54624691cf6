package widecolumn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/errors"
)

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantFamily    string
		wantQualifier string
	}{
		{"bare qualifier", "col0", "f", "col0"},
		{"explicit family", "g:col0", "g", "col0"},
		{"empty qualifier after colon", "g:", "g", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, qualifier, err := SplitQualified(tt.input, "f")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFamily, family)
			assert.Equal(t, tt.wantQualifier, qualifier)
		})
	}
}

func TestSplitQualifiedTooManyParts(t *testing.T) {
	_, _, err := SplitQualified("a:b:c", "f")
	require.Error(t, err)
	assert.True(t, IsInvalidFieldName(err))

	_, _, err = SplitQualified("a:b:c:d", "f")
	require.Error(t, err)
	assert.True(t, IsInvalidFieldName(err))
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "f:col0", QualifiedName("f", "col0"))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsInvalidFieldName(NewInvalidFieldNameError("a:b:c")))
	assert.False(t, IsInvalidFieldName(NewMissingRowKeyError("rowkey")))

	assert.True(t, IsMissingRowKey(NewMissingRowKeyError("rowkey")))
	assert.False(t, IsMissingRowKey(NewInvalidFieldNameError("a:b:c")))

	assert.False(t, IsInvalidFieldName(nil))
	assert.False(t, IsMissingRowKey(nil))
}

func TestErrorPredicatesDiscriminateWithinType(t *testing.T) {
	// Errors sharing the broad category must not satisfy the predicates;
	// a codec coercion failure is data-typed but is not a missing row key.
	coercion := errors.New(errors.ErrorTypeData, "cannot encode value as long")
	assert.False(t, IsMissingRowKey(coercion))

	validation := errors.New(errors.ErrorTypeValidation, "config rejected")
	assert.False(t, IsInvalidFieldName(validation))
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open("bogus://somewhere")
	assert.Error(t, err)
}

func TestOpenBadDSN(t *testing.T) {
	_, err := Open("://")
	assert.Error(t, err)
}
