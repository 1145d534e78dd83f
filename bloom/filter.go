// Package bloom implements the fixed-size probabilistic membership filter used
// to prune the stock dataset before the join. The filter gives one-sided
// error: MayContain can answer "possibly present" for an absent key (false
// positive) but never "absent" for an inserted key.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	serialVersion = 1

	// blob layout: version(1) + k(4) + m(8) + words
	headerBytes = 13
)

// Filter is a Bloom filter with an m-bit vector and k hash probes per key.
// Build it in stage 1, then treat it as read-only: Add and Merge must not be
// called concurrently with MayContain.
type Filter struct {
	bits []uint64
	m    uint64
	k    uint32
}

// New creates a filter with an explicit bit vector size and hash count.
// The bit count is rounded up to a multiple of 64.
func New(mBits uint64, k uint32) *Filter {
	if mBits < 64 {
		mBits = 64
	}
	if k < 1 {
		k = 1
	}
	words := (mBits + 63) / 64
	return &Filter{
		bits: make([]uint64, words),
		m:    words * 64,
		k:    k,
	}
}

// NewWithEstimates sizes a filter for the expected number of keys and the
// bits spent per key. The probe count k = bitsPerKey * ln2 minimizes the
// false-positive rate for that budget.
func NewWithEstimates(capacity uint64, bitsPerKey uint32) *Filter {
	if capacity < 1 {
		capacity = 1
	}
	if bitsPerKey < 1 {
		bitsPerKey = 1
	}
	k := uint32(math.Round(float64(bitsPerKey) * math.Ln2))
	if k < 1 {
		k = 1
	}
	return New(capacity*uint64(bitsPerKey), k)
}

// Bits returns the size of the bit vector.
func (f *Filter) Bits() uint64 {
	return f.m
}

// Hashes returns the number of hash probes per key.
func (f *Filter) Hashes() uint32 {
	return f.k
}

// probes derives the k bit positions for a key from a single xxhash64 pass,
// using the rotated hash as the probe stride.
func (f *Filter) probes(h uint64, visit func(pos uint64)) {
	delta := h>>17 | h<<47
	for i := uint32(0); i < f.k; i++ {
		visit(h % f.m)
		h += delta
	}
}

// Add inserts a key into the filter.
func (f *Filter) Add(key []byte) {
	f.probes(xxhash.Sum64(key), func(pos uint64) {
		f.bits[pos/64] |= 1 << (pos % 64)
	})
}

// AddString inserts a string key into the filter.
func (f *Filter) AddString(key string) {
	f.probes(xxhash.Sum64String(key), func(pos uint64) {
		f.bits[pos/64] |= 1 << (pos % 64)
	})
}

// MayContain reports whether the key is possibly in the set. A false return
// is exact: the key was never inserted.
func (f *Filter) MayContain(key []byte) bool {
	return f.mayContainHash(xxhash.Sum64(key))
}

// MayContainString reports whether the string key is possibly in the set.
func (f *Filter) MayContainString(key string) bool {
	return f.mayContainHash(xxhash.Sum64String(key))
}

func (f *Filter) mayContainHash(h uint64) bool {
	contained := true
	f.probes(h, func(pos uint64) {
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			contained = false
		}
	})
	return contained
}

// Merge ORs another filter into this one. Merging is associative and
// commutative, so per-partition filters can be reduced in any order or shape;
// it is only valid between filters of identical geometry.
func (f *Filter) Merge(other *Filter) error {
	if other.m != f.m || other.k != f.k {
		return fmt.Errorf("incompatible filters: %d/%d bits, %d/%d hashes",
			f.m, other.m, f.k, other.k)
	}
	for i := range f.bits {
		f.bits[i] |= other.bits[i]
	}
	return nil
}

// MarshalBinary serializes the filter as a flat blob.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerBytes+len(f.bits)*8)
	buf[0] = serialVersion
	binary.LittleEndian.PutUint32(buf[1:5], f.k)
	binary.LittleEndian.PutUint64(buf[5:13], f.m)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(buf[headerBytes+i*8:], word)
	}
	return buf, nil
}

// UnmarshalBinary restores a filter from its flat blob form.
func (f *Filter) UnmarshalBinary(data []byte) error {
	if len(data) < headerBytes {
		return fmt.Errorf("filter blob too short: %d bytes", len(data))
	}
	if data[0] != serialVersion {
		return fmt.Errorf("unsupported filter version: %d", data[0])
	}

	k := binary.LittleEndian.Uint32(data[1:5])
	m := binary.LittleEndian.Uint64(data[5:13])
	if m == 0 || m%64 != 0 || k == 0 {
		return fmt.Errorf("corrupt filter header: m=%d k=%d", m, k)
	}

	words := int(m / 64)
	if len(data) != headerBytes+words*8 {
		return fmt.Errorf("filter blob size mismatch: expected %d bytes, got %d",
			headerBytes+words*8, len(data))
	}

	bits := make([]uint64, words)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(data[headerBytes+i*8:])
	}

	f.bits = bits
	f.m = m
	f.k = k
	return nil
}
