// internal/pulse/buffer.go
package pulse

// Buffer is a time-windowed store of intensity samples. Values and
// timestamps are kept in two parallel slices that always have equal length;
// insertion order is chronological order. Samples older than the retention
// window, measured against the most recently appended timestamp, are
// evicted from the front on every append.
//
// Buffer is not safe for concurrent use. The detection core runs on one
// logical thread.
type Buffer struct {
	values      []float64
	timestamps  []int64
	retentionMs int64
}

// NewBuffer creates a buffer that retains samples no older than retentionMs
// behind the newest appended timestamp.
func NewBuffer(retentionMs int64) *Buffer {
	return &Buffer{retentionMs: retentionMs}
}

// Append records one sample and evicts entries that have fallen out of the
// retention window, anchored at the just-appended timestamp.
func (b *Buffer) Append(value float64, timestampMs int64) {
	b.values = append(b.values, value)
	b.timestamps = append(b.timestamps, timestampMs)
	b.evictStale(timestampMs)
}

// evictStale pops pairs from the front while the oldest timestamp is more
// than the retention window behind referenceMs.
func (b *Buffer) evictStale(referenceMs int64) {
	i := 0
	for i < len(b.timestamps) && referenceMs-b.timestamps[i] > b.retentionMs {
		i++
	}
	if i > 0 {
		b.values = b.values[:copy(b.values, b.values[i:])]
		b.timestamps = b.timestamps[:copy(b.timestamps, b.timestamps[i:])]
	}
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	return len(b.values)
}

// Values returns the stored value sequence, oldest first. The slice aliases
// the buffer's storage and is only valid until the next Append or Reset.
func (b *Buffer) Values() []float64 {
	return b.values
}

// TimestampAt returns the acquisition timestamp in milliseconds of the
// sample at position i.
func (b *Buffer) TimestampAt(i int) int64 {
	return b.timestamps[i]
}

// Reset clears both sequences. Capacity is kept for reuse.
func (b *Buffer) Reset() {
	b.values = b.values[:0]
	b.timestamps = b.timestamps[:0]
}
