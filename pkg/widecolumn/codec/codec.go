// Package codec maps typed field values to and from the store's untyped
// byte cells. Numeric encodings are fixed-width big-endian so encoded values
// sort lexicographically the way the store's own byte utilities expect;
// strings are UTF-8; dates and timestamps are millisecond-epoch int64.
//
// Decode never fails: a cell whose bytes do not fit the hinted tag degrades
// to its string representation instead of failing the scan.
package codec

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/tablecast/tablecast/pkg/errors"
	"github.com/tablecast/tablecast/pkg/schema"
	stringpool "github.com/tablecast/tablecast/pkg/strings"
)

// Encode renders value as cell bytes according to tag. An unrecognized tag
// falls back to the value's string representation. A value that cannot be
// coerced to the tagged type is a data error.
func Encode(value interface{}, tag schema.TypeTag) ([]byte, error) {
	switch tag {
	case schema.TypeString:
		return []byte(stringpool.ValueToString(value)), nil

	case schema.TypeInt64:
		n, err := toInt64(value, tag)
		if err != nil {
			return nil, err
		}
		return putUint64(uint64(n)), nil

	case schema.TypeInt32:
		n, err := toInt64(value, tag)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(n)))
		return buf, nil

	case schema.TypeInt16:
		n, err := toInt64(value, tag)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(n)))
		return buf, nil

	case schema.TypeByte:
		n, err := toInt64(value, tag)
		if err != nil {
			return nil, err
		}
		return []byte{byte(n)}, nil

	case schema.TypeFloat64:
		f, err := toFloat64(value, tag)
		if err != nil {
			return nil, err
		}
		return putUint64(math.Float64bits(f)), nil

	case schema.TypeFloat32:
		f, err := toFloat64(value, tag)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, nil

	case schema.TypeBool:
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case schema.TypeBinary:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		default:
			return nil, errors.New(errors.ErrorTypeData,
				stringpool.Sprintf("cannot encode %T as binary", value))
		}

	case schema.TypeDate, schema.TypeTimestamp:
		ms, err := toEpochMillis(value, tag)
		if err != nil {
			return nil, err
		}
		return putUint64(uint64(ms)), nil

	default:
		// Unrecognized or unspecified tag: string representation.
		return []byte(stringpool.ValueToString(value)), nil
	}
}

// Decode recovers a typed value from cell bytes according to tag. Cells of
// the wrong width for the hinted tag, and unrecognized tags, decode as
// strings.
func Decode(data []byte, tag schema.TypeTag) interface{} {
	switch tag {
	case schema.TypeInt64:
		if len(data) == 8 {
			return int64(binary.BigEndian.Uint64(data))
		}

	case schema.TypeInt32:
		if len(data) == 4 {
			return int32(binary.BigEndian.Uint32(data))
		}

	case schema.TypeInt16:
		if len(data) == 2 {
			return int16(binary.BigEndian.Uint16(data))
		}

	case schema.TypeByte:
		if len(data) == 1 {
			return data[0]
		}

	case schema.TypeFloat64:
		if len(data) == 8 {
			return math.Float64frombits(binary.BigEndian.Uint64(data))
		}

	case schema.TypeFloat32:
		if len(data) == 4 {
			return math.Float32frombits(binary.BigEndian.Uint32(data))
		}

	case schema.TypeBool:
		if len(data) == 1 {
			return data[0] != 0
		}

	case schema.TypeBinary:
		return data

	case schema.TypeDate, schema.TypeTimestamp:
		if len(data) == 8 {
			ms := int64(binary.BigEndian.Uint64(data))
			return time.UnixMilli(ms).UTC()
		}
	}

	// String tag, unknown tag, or width mismatch: string fallback.
	return string(data)
}

func putUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func toInt64(value interface{}, tag schema.TypeTag) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeData,
				stringpool.Sprintf("cannot encode %q as %s", v, tag))
		}
		return n, nil
	case time.Time:
		return v.UnixMilli(), nil
	default:
		return 0, errors.New(errors.ErrorTypeData,
			stringpool.Sprintf("cannot encode %T as %s", value, tag))
	}
}

func toFloat64(value interface{}, tag schema.TypeTag) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeData,
				stringpool.Sprintf("cannot encode %q as %s", v, tag))
		}
		return f, nil
	default:
		return 0, errors.New(errors.ErrorTypeData,
			stringpool.Sprintf("cannot encode %T as %s", value, tag))
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeData,
				stringpool.Sprintf("cannot encode %q as boolean", v))
		}
		return b, nil
	default:
		return false, errors.New(errors.ErrorTypeData,
			stringpool.Sprintf("cannot encode %T as boolean", value))
	}
}

// toEpochMillis coerces dates and timestamps to millisecond epoch. Date
// values are day-granularity by contract but stored at millisecond
// precision like timestamps.
func toEpochMillis(value interface{}, tag schema.TypeTag) (int64, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UnixMilli(), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UnixMilli(), nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, errors.New(errors.ErrorTypeData,
				stringpool.Sprintf("cannot encode %q as %s", v, tag))
		}
		return n, nil
	default:
		return 0, errors.New(errors.ErrorTypeData,
			stringpool.Sprintf("cannot encode %T as %s", value, tag))
	}
}
