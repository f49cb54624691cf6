package codec

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/errors"
	"github.com/tablecast/tablecast/pkg/schema"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		tag   schema.TypeTag
		value interface{}
		want  interface{}
	}{
		{"string", schema.TypeString, "hello", "hello"},
		{"long", schema.TypeInt64, int64(-42), int64(-42)},
		{"integer", schema.TypeInt32, int32(7), int32(7)},
		{"short", schema.TypeInt16, int16(-3), int16(-3)},
		{"byte", schema.TypeByte, byte(0xff), byte(0xff)},
		{"double", schema.TypeFloat64, 3.14159, 3.14159},
		{"float", schema.TypeFloat32, float32(2.5), float32(2.5)},
		{"bool true", schema.TypeBool, true, true},
		{"bool false", schema.TypeBool, false, false},
		{"binary", schema.TypeBinary, []byte{1, 2, 3}, []byte{1, 2, 3}},
		{"timestamp", schema.TypeTimestamp, ts, ts},
		{"date", schema.TypeDate, ts, ts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.value, tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Decode(encoded, tt.tag))
		})
	}
}

func TestEncodeWidths(t *testing.T) {
	widths := []struct {
		tag   schema.TypeTag
		value interface{}
		want  int
	}{
		{schema.TypeInt64, int64(1), 8},
		{schema.TypeInt32, int32(1), 4},
		{schema.TypeInt16, int16(1), 2},
		{schema.TypeByte, byte(1), 1},
		{schema.TypeFloat64, 1.0, 8},
		{schema.TypeFloat32, float32(1), 4},
		{schema.TypeBool, true, 1},
		{schema.TypeTimestamp, time.Now(), 8},
	}
	for _, w := range widths {
		encoded, err := Encode(w.value, w.tag)
		require.NoError(t, err)
		assert.Len(t, encoded, w.want, "tag %s", w.tag)
	}
}

func TestEncodeBigEndian(t *testing.T) {
	encoded, err := Encode(int64(1), schema.TypeInt64)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, encoded)

	encoded, err = Encode(int32(258), schema.TypeInt32)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 2}, encoded)
}

func TestEncodeCoercion(t *testing.T) {
	encoded, err := Encode(42, schema.TypeInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(42), Decode(encoded, schema.TypeInt64))

	encoded, err = Encode("123", schema.TypeInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(123), Decode(encoded, schema.TypeInt64))

	encoded, err = Encode(int64(5), schema.TypeFloat64)
	require.NoError(t, err)
	assert.Equal(t, 5.0, Decode(encoded, schema.TypeFloat64))

	encoded, err = Encode("true", schema.TypeBool)
	require.NoError(t, err)
	assert.Equal(t, true, Decode(encoded, schema.TypeBool))
}

func TestEncodeMismatchFails(t *testing.T) {
	_, err := Encode("not a number", schema.TypeInt64)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	_, err = Encode(struct{}{}, schema.TypeFloat64)
	require.Error(t, err)

	_, err = Encode(3.14, schema.TypeBinary)
	require.Error(t, err)
}

func TestEncodeUnknownTagFallsBackToString(t *testing.T) {
	encoded, err := Encode(int64(99), schema.TypeTag("exotic"))
	require.NoError(t, err)
	assert.Equal(t, "99", string(encoded))
}

func TestDecodeNeverFails(t *testing.T) {
	// Wrong width for the hinted tag degrades to string.
	assert.Equal(t, "abc", Decode([]byte("abc"), schema.TypeInt64))
	assert.Equal(t, "xy", Decode([]byte("xy"), schema.TypeFloat64))
	assert.Equal(t, "", Decode(nil, schema.TypeBool))

	// Unknown tag decodes as string.
	assert.Equal(t, "raw", Decode([]byte("raw"), schema.TypeTag("exotic")))
}

func TestDecodeTimestampMillis(t *testing.T) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(1700000000000))
	got := Decode(buf, schema.TypeTimestamp)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got)
}

func TestEncodeTimestampFromString(t *testing.T) {
	encoded, err := Encode("2024-03-15T10:30:00Z", schema.TypeTimestamp)
	require.NoError(t, err)
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, want, Decode(encoded, schema.TypeTimestamp))
}

func TestFloatSpecialValues(t *testing.T) {
	encoded, err := Encode(math.Inf(1), schema.TypeFloat64)
	require.NoError(t, err)
	assert.Equal(t, math.Inf(1), Decode(encoded, schema.TypeFloat64))

	encoded, err = Encode(math.NaN(), schema.TypeFloat64)
	require.NoError(t, err)
	got, ok := Decode(encoded, schema.TypeFloat64).(float64)
	require.True(t, ok)
	assert.True(t, math.IsNaN(got))
}
