// Package pool provides object pooling for the record types that flow
// between sources and destinations. Records are recycled through sync.Pool
// backed pools to keep allocation pressure flat while encoding or decoding
// large scans.
package pool

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a generic object pool with type safety. It wraps sync.Pool with
// statistics tracking and an optional reset hook invoked before an object is
// returned to the pool. Safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
	}
}

// New creates a typed pool with custom allocation and reset functions.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   newFn,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, allocating when empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse, invoking the reset hook first.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the total allocations and the number of objects currently
// checked out.
func (p *Pool[T]) Stats() (allocated, inUse int64) {
	return atomic.LoadInt64(&p.stats.allocated), atomic.LoadInt64(&p.stats.inUse)
}

// RecordMetadata carries the provenance of a record: which connector produced
// it, which store table it came from or is headed to, and when it was built.
type RecordMetadata struct {
	// Source identifies the origin connector
	Source string `json:"source,omitempty"`
	// Table is the store table the record maps to
	Table string `json:"table,omitempty"`
	// Timestamp is when the record was created or captured
	Timestamp time.Time `json:"timestamp"`
	// Custom holds connector-specific metadata
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is the unified record type moved between connectors. One field of
// Data is designated the row identifier; the rest become store cells on the
// write path. Records should be obtained from the pool via GetRecord or the
// constructors, and Release()d when done.
type Record struct {
	// ID is a unique identifier for the record
	ID string `json:"id"`
	// Data contains the record payload keyed by (possibly qualified) field name
	Data map[string]interface{} `json:"data"`
	// Metadata contains source and timing information
	Metadata RecordMetadata `json:"metadata"`
}

var (
	// RecordPool recycles Record objects. Data maps are pre-sized for
	// typical row widths and fully cleared before reuse.
	RecordPool = New(
		func() *Record {
			return &Record{
				Data: make(map[string]interface{}, 16),
			}
		},
		func(r *Record) {
			r.ID = ""
			for k := range r.Data {
				delete(r.Data, k)
			}
			if r.Metadata.Custom != nil {
				for k := range r.Metadata.Custom {
					delete(r.Metadata.Custom, k)
				}
			}
			r.Metadata = RecordMetadata{}
		},
	)

	// MapPool recycles map[string]interface{} payloads.
	MapPool = New(
		func() map[string]interface{} {
			return make(map[string]interface{}, 16)
		},
		func(m map[string]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)

	// BatchSlicePool recycles record batches used by the batch write path.
	BatchSlicePool = New(
		func() []*Record {
			return make([]*Record, 0, 1000)
		},
		func(s []*Record) {
			for i := range s {
				s[i] = nil
			}
		},
	)
)

// idCounter provides atomic unique ID generation
var idCounter uint64

// GetRecord retrieves a Record from the global pool with a fresh timestamp.
// Callers must return it with Release() when done.
func GetRecord() *Record {
	r := RecordPool.Get()
	r.Metadata.Timestamp = time.Now()
	return r
}

// PutRecord returns a Record to the global pool, recycling its nested maps.
// Safe to call with nil.
func PutRecord(record *Record) {
	if record == nil {
		return
	}
	if record.Metadata.Custom != nil {
		PutMap(record.Metadata.Custom)
		record.Metadata.Custom = nil
	}
	RecordPool.Put(record)
}

// GetMap retrieves an empty map[string]interface{} from the global pool.
func GetMap() map[string]interface{} {
	return MapPool.Get()
}

// PutMap returns a map to the global pool. Safe to call with nil.
func PutMap(m map[string]interface{}) {
	if m != nil {
		MapPool.Put(m)
	}
}

// GetBatchSlice retrieves a record batch slice with at least the requested
// capacity and zero length.
func GetBatchSlice(capacity int) []*Record {
	batch := BatchSlicePool.Get()
	if cap(batch) < capacity {
		batch = make([]*Record, 0, capacity)
	}
	return batch[:0]
}

// PutBatchSlice returns a batch slice to the global pool. Record references
// are cleared so the records themselves can be collected or reused.
func PutBatchSlice(batch []*Record) {
	if batch != nil {
		BatchSlicePool.Put(batch)
	}
}

// GenerateID generates a unique "prefix-n" identifier using an atomic counter.
func GenerateID(prefix string) string {
	id := atomic.AddUint64(&idCounter, 1)

	buf := make([]byte, 0, len(prefix)+21)
	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = appendUint64(buf, id)
	return string(buf)
}

// appendUint64 efficiently appends a uint64 to a byte slice
func appendUint64(buf []byte, n uint64) []byte {
	if n == 0 {
		return append(buf, '0')
	}

	temp := n
	digits := 0
	for temp > 0 {
		temp /= 10
		digits++
	}

	start := len(buf)
	buf = buf[:start+digits]
	for i := digits - 1; i >= 0; i-- {
		buf[start+i] = byte('0' + n%10)
		n /= 10
	}
	return buf
}

// SetData sets a data field, initializing the map from the pool if needed.
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = GetMap()
	}
	r.Data[key] = value
}

// GetData retrieves a data field.
func (r *Record) GetData(key string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	val, ok := r.Data[key]
	return val, ok
}

// SetMetadata sets a custom metadata field.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	r.Metadata.Custom[key] = value
}

// GetMetadata retrieves a custom metadata field.
func (r *Record) GetMetadata(key string) (interface{}, bool) {
	if r.Metadata.Custom == nil {
		return nil, false
	}
	val, ok := r.Metadata.Custom[key]
	return val, ok
}

// Release returns the record and all its resources to the pools.
func (r *Record) Release() {
	PutRecord(r)
}

// NewRecord creates a pooled record owning the provided data map.
func NewRecord(source string, data map[string]interface{}) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Data = data
	r.Metadata.Source = source
	return r
}

// NewRecordFromPool creates a pooled record with a pooled, empty data map.
// This is the preferred constructor when building a record field by field.
func NewRecordFromPool(source string) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Data = GetMap()
	r.Metadata.Source = source
	return r
}
