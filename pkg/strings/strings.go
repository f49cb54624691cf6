// Package strings provides zero-copy string utilities shared across tablecast.
package strings

import (
	"fmt"
	"strconv"
	"sync"
	"unsafe"
)

// BytesToString converts a byte slice to a string without allocation.
// WARNING: The returned string shares memory with the byte slice.
// Do not modify the byte slice after calling this function.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBytes converts a string to a byte slice without allocation.
// WARNING: The returned byte slice shares memory with the string.
// Do not modify the returned slice.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

var builderPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 256)
		return &b
	},
}

// Sprintf is a pooled-buffer replacement for fmt.Sprintf used on hot paths.
func Sprintf(format string, args ...interface{}) string {
	bufp := builderPool.Get().(*[]byte)
	buf := (*bufp)[:0]
	buf = fmt.Appendf(buf, format, args...)
	out := string(buf)
	*bufp = buf
	builderPool.Put(bufp)
	return out
}

// ValueToString renders an arbitrary record value as a string. It is the
// canonical string fallback used by the cell codec: common scalar types take
// a fast path, everything else goes through fmt.
func ValueToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	default:
		return Sprintf("%v", value)
	}
}
