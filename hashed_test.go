package countbloom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashedTestParams() Params {
	return Params{Size: 1024, OffsetBits: 6, NumBits: 8, Threshold: 1}
}

func newTestHashed(t *testing.T, p Params, numProbes int) *Hashed {
	t.Helper()
	h, err := NewHashed(p, numProbes)
	require.NoError(t, err)
	return h
}

func TestHashedConstruct(t *testing.T) {
	h := newTestHashed(t, hashedTestParams(), 4)
	assert.Equal(t, 0, h.TotalCount())
	assert.Equal(t, 4, h.NumProbes())

	_, err := NewHashed(hashedTestParams(), 0)
	assert.ErrorIs(t, err, ErrProbeCount)
	_, err = NewHashed(hashedTestParams(), maxProbes+1)
	assert.ErrorIs(t, err, ErrProbeCount)
	_, err = NewHashed(Params{Size: 0, NumBits: 8, Threshold: 1}, 4)
	assert.ErrorIs(t, err, ErrZeroSize)
}

// Every Set touches exactly numProbes counters (a self-colliding probe
// touches the same counter twice), so the total grows by numProbes per Set
// while counters stay unsaturated.
func TestHashedTotalPerSet(t *testing.T) {
	h := newTestHashed(t, hashedTestParams(), 4)

	keys := []uint64{0, 1 << 6, 2 << 6, 42 << 6, ^uint64(0)}
	for i, key := range keys {
		h.Set(key)
		assert.Equal(t, 4*(i+1), h.TotalCount())
	}
}

func TestHashedSetContainsUnset(t *testing.T) {
	h := newTestHashed(t, hashedTestParams(), 4)

	key := uint64(7 << 6)
	assert.False(t, h.Contains(key))

	h.Set(key)
	assert.True(t, h.Contains(key))
	assert.GreaterOrEqual(t, h.Count(key), 1)

	// A single key set once and unset once leaves no residue.
	h.Unset(key)
	assert.False(t, h.Contains(key))
	assert.Equal(t, 0, h.Count(key))
	assert.Equal(t, 0, h.TotalCount())
}

func TestHashedUnsetClampsAtZero(t *testing.T) {
	h := newTestHashed(t, hashedTestParams(), 4)

	h.Unset(3 << 6)
	assert.Equal(t, 0, h.TotalCount())

	h.Set(3 << 6)
	h.Unset(3 << 6)
	h.Unset(3 << 6)
	assert.Equal(t, 0, h.TotalCount())
}

func TestHashedOffsetGranularity(t *testing.T) {
	p := hashedTestParams()
	h := newTestHashed(t, p, 4)

	// Keys within one block alias to the same probes.
	h.Set(0)
	assert.True(t, h.Contains(1))
	assert.Equal(t, h.Count(0), h.Count((1<<p.OffsetBits)-1))
}

// With a single probe the count estimate is exact per counter, which makes
// threshold behavior deterministic regardless of the hash values.
func TestHashedThreshold(t *testing.T) {
	p := hashedTestParams()
	p.NumBits = 2
	p.Threshold = 2
	h := newTestHashed(t, p, 1)

	key := uint64(9 << 6)
	h.Set(key)
	assert.False(t, h.Contains(key))
	h.Set(key)
	assert.True(t, h.Contains(key))
	assert.Equal(t, 2, h.Count(key))
}

func TestHashedCountIsMinOverProbes(t *testing.T) {
	h := newTestHashed(t, hashedTestParams(), 4)

	key := uint64(11 << 6)
	h.Set(key)

	idx := h.indices(key, nil)
	assert.Len(t, idx, 4)
	min := -1
	for _, i := range idx {
		if c := int(h.store.load(i)); min < 0 || c < min {
			min = c
		}
	}
	assert.Equal(t, min, h.Count(key))
}

func TestHashedSaturation(t *testing.T) {
	p := hashedTestParams()
	p.NumBits = 2
	h := newTestHashed(t, p, 3)

	key := uint64(5 << 6)
	for i := 0; i < 10; i++ {
		h.Set(key)
	}
	assert.Equal(t, 3, h.Count(key))
}

func TestHashedMerge(t *testing.T) {
	p := hashedTestParams()
	p.NumBits = 2
	a := newTestHashed(t, p, 1)
	b := newTestHashed(t, p, 1)

	key := uint64(5 << 6)
	a.Set(key)
	a.Set(key)
	b.Set(key)
	b.Set(key)
	b.Set(key)

	assert.NoError(t, a.Merge(b))
	assert.Equal(t, 3, a.Count(key), "2+3 clamps at the counter maximum")
	assert.Equal(t, 3, b.Count(key), "merge source is unmodified")
}

func TestHashedMergeMultiProbe(t *testing.T) {
	a := newTestHashed(t, hashedTestParams(), 4)
	b := newTestHashed(t, hashedTestParams(), 4)

	a.Set(1 << 6)
	b.Set(2 << 6)
	beforeB := b.TotalCount()

	assert.NoError(t, a.Merge(b))
	assert.True(t, a.Contains(1<<6))
	assert.True(t, a.Contains(2<<6))
	assert.Equal(t, beforeB, b.TotalCount())
}

func TestHashedMergeErrors(t *testing.T) {
	a := newTestHashed(t, hashedTestParams(), 4)
	assert.ErrorIs(t, a.Merge(a), ErrAliasedMerge)

	p := hashedTestParams()
	p.Size = 512
	b := newTestHashed(t, p, 4)
	assert.ErrorIs(t, a.Merge(b), ErrSizeMismatch)
}

func TestOptimalProbes(t *testing.T) {
	tests := []struct {
		size, keys, want int
	}{
		{1024, 100, 7},   // round(10.24 * ln2)
		{1024, 1024, 1},  // round(ln2)
		{1024, 10000, 1}, // clamped up
		{1 << 20, 100, maxProbes},
		{0, 100, 1},
		{1024, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OptimalProbes(tt.size, tt.keys), "size %d keys %d", tt.size, tt.keys)
	}
}

func BenchmarkHashedSet(b *testing.B) {
	h, err := NewHashed(Params{Size: 1 << 16, OffsetBits: 6, NumBits: 4, Threshold: 1}, 4)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		h.Set(splitmix64(&rng))
	}
}

func BenchmarkHashedContains(b *testing.B) {
	h, err := NewHashed(Params{Size: 1 << 16, OffsetBits: 6, NumBits: 4, Threshold: 1}, 4)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 100000; i++ {
		h.Set(splitmix64(&rng))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		h.Contains(splitmix64(&rng))
	}
}
