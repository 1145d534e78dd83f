package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsBitsUpToWordSize(t *testing.T) {
	filter := New(1000, 20)

	assert.Equal(t, uint64(1024), filter.Bits())
	assert.Equal(t, uint32(20), filter.Hashes())
}

func TestNewEnforcesMinimums(t *testing.T) {
	filter := New(0, 0)

	assert.Equal(t, uint64(64), filter.Bits())
	assert.Equal(t, uint32(1), filter.Hashes())
}

func TestNewWithEstimatesDerivesHashCount(t *testing.T) {
	filter := NewWithEstimates(1000, 10)

	// k = round(10 * ln2) = 7
	assert.Equal(t, uint32(7), filter.Hashes())
	assert.Equal(t, uint64(10048), filter.Bits())
}

func TestNoFalseNegatives(t *testing.T) {
	filter := NewWithEstimates(1000, 10)

	for i := 0; i < 1000; i++ {
		filter.AddString(fmt.Sprintf("AAPL|2020-%04d", i))
	}

	for i := 0; i < 1000; i++ {
		assert.True(t, filter.MayContainString(fmt.Sprintf("AAPL|2020-%04d", i)),
			"inserted key %d must be reported present", i)
	}
}

func TestEmptyFilterContainsNothing(t *testing.T) {
	filter := NewWithEstimates(1000, 10)

	for i := 0; i < 1000; i++ {
		assert.False(t, filter.MayContainString(fmt.Sprintf("key-%d", i)))
	}
}

func TestFalsePositiveRateStaysNearBudget(t *testing.T) {
	filter := NewWithEstimates(10000, 10)

	for i := 0; i < 10000; i++ {
		filter.AddString(fmt.Sprintf("inserted-%d", i))
	}

	falsePositives := 0
	probes := 100000
	for i := 0; i < probes; i++ {
		if filter.MayContainString(fmt.Sprintf("absent-%d", i)) {
			falsePositives++
		}
	}

	// 10 bits per key gives a theoretical rate just under 1%; allow slack
	rate := float64(falsePositives) / float64(probes)
	assert.Less(t, rate, 0.03, "false positive rate %.4f far above budget", rate)
}

func TestAddIsIdempotent(t *testing.T) {
	a := New(1024, 7)
	b := New(1024, 7)

	a.AddString("AAPL|2020-01-02")
	b.AddString("AAPL|2020-01-02")
	b.AddString("AAPL|2020-01-02")

	blobA, err := a.MarshalBinary()
	require.NoError(t, err)
	blobB, err := b.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, blobA, blobB)
}

func TestMergeIsCommutativeAndAssociative(t *testing.T) {
	build := func(keys ...string) *Filter {
		f := New(1024, 7)
		for _, key := range keys {
			f.AddString(key)
		}
		return f
	}

	ab := build("a")
	require.NoError(t, ab.Merge(build("b")))

	ba := build("b")
	require.NoError(t, ba.Merge(build("a")))

	blobAB, _ := ab.MarshalBinary()
	blobBA, _ := ba.MarshalBinary()
	assert.Equal(t, blobAB, blobBA, "merge must be commutative")

	// (a+b)+c vs a+(b+c)
	left := build("a")
	require.NoError(t, left.Merge(build("b")))
	require.NoError(t, left.Merge(build("c")))

	bc := build("b")
	require.NoError(t, bc.Merge(build("c")))
	right := build("a")
	require.NoError(t, right.Merge(bc))

	blobLeft, _ := left.MarshalBinary()
	blobRight, _ := right.MarshalBinary()
	assert.Equal(t, blobLeft, blobRight, "merge must be associative")
}

func TestMergePreservesAllKeys(t *testing.T) {
	a := New(4096, 7)
	b := New(4096, 7)

	for i := 0; i < 100; i++ {
		a.AddString(fmt.Sprintf("left-%d", i))
		b.AddString(fmt.Sprintf("right-%d", i))
	}

	require.NoError(t, a.Merge(b))

	for i := 0; i < 100; i++ {
		assert.True(t, a.MayContainString(fmt.Sprintf("left-%d", i)))
		assert.True(t, a.MayContainString(fmt.Sprintf("right-%d", i)))
	}
}

func TestMergeRejectsMismatchedGeometry(t *testing.T) {
	a := New(1024, 7)

	assert.Error(t, a.Merge(New(2048, 7)))
	assert.Error(t, a.Merge(New(1024, 5)))
}

func TestMarshalRoundTrip(t *testing.T) {
	original := New(1024, 20)
	for i := 0; i < 50; i++ {
		original.AddString(fmt.Sprintf("AAPL|2020-01-%02d", i))
	}

	blob, err := original.MarshalBinary()
	require.NoError(t, err)

	var restored Filter
	require.NoError(t, restored.UnmarshalBinary(blob))

	assert.Equal(t, original.Bits(), restored.Bits())
	assert.Equal(t, original.Hashes(), restored.Hashes())
	for i := 0; i < 50; i++ {
		assert.True(t, restored.MayContainString(fmt.Sprintf("AAPL|2020-01-%02d", i)))
	}

	reblob, err := restored.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, blob, reblob)
}

func TestUnmarshalRejectsCorruptBlobs(t *testing.T) {
	valid, err := New(1024, 7).MarshalBinary()
	require.NoError(t, err)

	var filter Filter
	assert.Error(t, filter.UnmarshalBinary(nil), "empty blob")
	assert.Error(t, filter.UnmarshalBinary(valid[:5]), "truncated header")
	assert.Error(t, filter.UnmarshalBinary(valid[:len(valid)-8]), "truncated bit vector")

	badVersion := append([]byte(nil), valid...)
	badVersion[0] = 99
	assert.Error(t, filter.UnmarshalBinary(badVersion), "unknown version")
}
