package countbloom

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// maxProbes bounds the probe count accepted by NewHashed and returned by
// OptimalProbes. Past this point extra probes only burn counters.
const maxProbes = 16

// Hashed spreads every key over numProbes counters chosen by double hashing,
// the classic counting-filter layout: Set increments all probed counters,
// Unset decrements them, and the count estimate for a key is the minimum
// across its probes, since collisions can only inflate counters.
type Hashed struct {
	filter
	numProbes int
}

// NewHashed builds a counting filter that probes numProbes counters per key.
func NewHashed(p Params, numProbes int) (*Hashed, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if numProbes < 1 || numProbes > maxProbes {
		return nil, ErrProbeCount
	}

	h := &Hashed{numProbes: numProbes}
	h.filter = newFilter(p, newDenseCounters(p.Size), h)
	return h, nil
}

// indices implements indexer with (h1 + i*h2) mod size double hashing over
// the little-endian bytes of the shifted key. xxhash supplies the primary
// stream and murmur3 the decorrelated step; a zero step would land every
// probe on the same counter, so it is bumped to one.
func (h *Hashed) indices(key uint64, dst []uint64) []uint64 {
	var kb [8]byte
	binary.LittleEndian.PutUint64(kb[:], key>>h.params.OffsetBits)

	h1 := xxhash.Sum64(kb[:])
	h2 := murmur3.Sum64(kb[:])
	if h2 == 0 {
		h2 = 1
	}

	size := uint64(h.params.Size)
	for i := uint64(0); i < uint64(h.numProbes); i++ {
		dst = append(dst, (h1+i*h2)%size)
	}
	return dst
}

// NumProbes returns the number of counters probed per key.
func (h *Hashed) NumProbes() int {
	return h.numProbes
}

// Merge folds other's counters into h, clamping each sum at h's counter
// maximum. The filters must have the same size; other is left unmodified and
// must not alias h.
func (h *Hashed) Merge(other *Hashed) error {
	return h.filter.merge(&other.filter)
}

// OptimalProbes returns the probe count that minimizes the false positive
// rate for a filter of size counters expected to hold expectedKeys distinct
// keys: round((m/n) * ln 2), clamped to [1, maxProbes].
func OptimalProbes(size, expectedKeys int) int {
	if size < 1 || expectedKeys < 1 {
		return 1
	}
	k := int(math.Round(float64(size) / float64(expectedKeys) * math.Ln2))
	if k < 1 {
		return 1
	}
	if k > maxProbes {
		return maxProbes
	}
	return k
}
