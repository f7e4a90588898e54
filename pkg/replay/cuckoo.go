package replay

import (
	"encoding/binary"
	"math/bits"

	"github.com/spaolacci/murmur3"
)

const (
	bucketSize = 4
	maxKicks   = 500
)

type bucket [bucketSize]uint16

// Filter is a cuckoo filter with 16-bit fingerprints and 4-way buckets.
// It is not safe for concurrent use; Checker serialises access.
type Filter struct {
	buckets  []bucket
	mask     uint64
	count    int
	capacity int
}

// NewFilter creates a filter that accepts at most capacity items.
func NewFilter(capacity int) *Filter {
	if capacity < 1 {
		capacity = 1
	}
	n := (capacity + bucketSize - 1) / bucketSize
	// Keep the load factor below ~0.5 so inserts rarely need long kick chains.
	n = 1 << bits.Len(uint(n*2-1))
	return &Filter{
		buckets:  make([]bucket, n),
		mask:     uint64(n - 1),
		capacity: capacity,
	}
}

// Count returns the number of stored items.
func (f *Filter) Count() int { return f.count }

// Capacity returns the maximum number of items.
func (f *Filter) Capacity() int { return f.capacity }

// Full reports whether the filter has reached its capacity.
func (f *Filter) Full() bool { return f.count >= f.capacity }

func (f *Filter) locate(item string) (fp uint16, i1, i2 uint64) {
	h := murmur3.Sum64([]byte(item))
	fp = uint16(h >> 48)
	if fp == 0 {
		fp = 1
	}
	i1 = h & f.mask
	i2 = f.altIndex(i1, fp)
	return fp, i1, i2
}

func (f *Filter) altIndex(i uint64, fp uint16) uint64 {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], fp)
	return (i ^ uint64(murmur3.Sum32(b[:]))) & f.mask
}

// Contains reports whether item may have been inserted.
func (f *Filter) Contains(item string) bool {
	fp, i1, i2 := f.locate(item)
	return f.buckets[i1].has(fp) || f.buckets[i2].has(fp)
}

// Insert adds item. It returns false when the filter is full or no slot
// could be freed; in that case the filter is left unchanged.
func (f *Filter) Insert(item string) bool {
	if f.Full() {
		return false
	}
	fp, i1, i2 := f.locate(item)
	if f.buckets[i1].put(fp) || f.buckets[i2].put(fp) {
		f.count++
		return true
	}

	type move struct {
		idx  uint64
		slot int
		prev uint16
	}
	var trail []move

	idx := i1
	if fp&1 == 1 {
		idx = i2
	}
	cur := fp
	for k := 0; k < maxKicks; k++ {
		slot := k % bucketSize
		prev := f.buckets[idx][slot]
		f.buckets[idx][slot] = cur
		trail = append(trail, move{idx: idx, slot: slot, prev: prev})
		cur = prev
		idx = f.altIndex(idx, cur)
		if f.buckets[idx].put(cur) {
			f.count++
			return true
		}
	}

	// Undo the kick chain so no previously stored fingerprint is lost.
	for j := len(trail) - 1; j >= 0; j-- {
		m := trail[j]
		f.buckets[m.idx][m.slot] = m.prev
	}
	return false
}

func (b *bucket) has(fp uint16) bool {
	for _, v := range b {
		if v == fp {
			return true
		}
	}
	return false
}

func (b *bucket) put(fp uint16) bool {
	for i, v := range b {
		if v == 0 {
			b[i] = fp
			return true
		}
	}
	return false
}
