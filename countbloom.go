// Package countbloom implements counting set-membership filters over uint64
// keys. A filter answers "was this key probably set" using a fixed budget of
// saturating counters instead of exact storage, so callers trade false
// positives (and, because Unset is supported, false negatives) for bounded
// memory. Keys are address-like: the low OffsetBits of every key are
// discarded before indexing, modeling block or line granularity.
//
// Three strategies are provided: Block resolves a key through a configurable
// XOR-combination of bit fields, Hashed spreads a key over several counters
// by double hashing, and Perfect keys every counter by the shifted key
// itself, serving as a collision-free accuracy oracle.
//
// Filters are not safe for concurrent use; an instance is owned by a single
// caller at a time.
package countbloom

import "errors"

// Configuration errors. Constructors return the sentinel naming the violated
// invariant; mask errors are wrapped with the offending mask position.
var (
	ErrZeroSize     = errors.New("countbloom: size must be positive")
	ErrCounterWidth = errors.New("countbloom: counter width must be between 1 and 30 bits")
	ErrThreshold    = errors.New("countbloom: threshold must be between 1 and the counter maximum")
	ErrOffsetBits   = errors.New("countbloom: offset bits must leave at least one usable key bit")

	ErrNoMasks        = errors.New("countbloom: at least one mask is required")
	ErrMaskLengths    = errors.New("countbloom: mask lsb and width lists differ in length")
	ErrMaskWidths     = errors.New("countbloom: mask widths must all be equal")
	ErrMaskRange      = errors.New("countbloom: mask bit field is empty or outside the usable key range")
	ErrMaskIndexSpace = errors.New("countbloom: mask index space exceeds the filter size")

	ErrPerfectParams = errors.New("countbloom: perfect filter requires size 1, 1-bit counters and threshold 1")
	ErrProbeCount    = errors.New("countbloom: probe count must be between 1 and 16")

	ErrSizeMismatch = errors.New("countbloom: cannot merge filters of different sizes")
	ErrAliasedMerge = errors.New("countbloom: cannot merge a filter into itself")
)

// maxCounterBits caps NumBits so a counter maximum fits its uint32 cell and
// TotalCount sums cannot overflow int on 64-bit platforms.
const maxCounterBits = 30

// Params configures a filter. The values are validated at construction and
// immutable afterwards.
type Params struct {
	// Size is the number of independently addressable counters.
	Size int
	// OffsetBits is the number of low-order key bits discarded before
	// indexing.
	OffsetBits uint
	// NumBits is the width of each saturating counter; the counter maximum
	// is 2^NumBits - 1.
	NumBits uint
	// Threshold is the counter value at or above which a key reports
	// present. Must lie in [1, counter maximum].
	Threshold int
}

func (p Params) validate() error {
	if p.Size <= 0 {
		return ErrZeroSize
	}
	if p.NumBits < 1 || p.NumBits > maxCounterBits {
		return ErrCounterWidth
	}
	if p.OffsetBits > 63 {
		return ErrOffsetBits
	}
	if p.Threshold < 1 || uint32(p.Threshold) > p.counterMax() {
		return ErrThreshold
	}
	return nil
}

func (p Params) counterMax() uint32 {
	return uint32(1)<<p.NumBits - 1
}

// satIncr adds one to c without exceeding max.
func satIncr(c, max uint32) uint32 {
	if c >= max {
		return max
	}
	return c + 1
}

// satDecr subtracts one from c without passing zero.
func satDecr(c uint32) uint32 {
	if c == 0 {
		return 0
	}
	return c - 1
}

// satAdd returns a+b clamped at max.
func satAdd(a, b, max uint32) uint32 {
	if s := uint64(a) + uint64(b); s <= uint64(max) {
		return uint32(s)
	}
	return max
}

// indexer resolves a key to the counter indices it touches, appending them
// to dst. Implementations must only return indices addressable by the
// paired counterStore.
type indexer interface {
	indices(key uint64, dst []uint64) []uint64
}

// counterStore abstracts the counter layout: a dense fixed-size array for
// the hashed strategies, a sparse keyed map for the perfect oracle.
type counterStore interface {
	load(i uint64) uint32
	put(i uint64, v uint32)
	reset()
	total() int
	atLeast(v uint32) int
	// addAll folds other's counters into the receiver with satAdd; other is
	// read-only. Both stores must be of the same kind.
	addAll(other counterStore, max uint32) error
}

type denseCounters struct {
	cells []uint32
}

func newDenseCounters(size int) *denseCounters {
	return &denseCounters{cells: make([]uint32, size)}
}

func (d *denseCounters) load(i uint64) uint32 {
	return d.cells[i]
}

func (d *denseCounters) put(i uint64, v uint32) {
	d.cells[i] = v
}

func (d *denseCounters) reset() {
	for i := range d.cells {
		d.cells[i] = 0
	}
}

func (d *denseCounters) total() int {
	t := 0
	for _, c := range d.cells {
		t += int(c)
	}
	return t
}

func (d *denseCounters) atLeast(v uint32) int {
	n := 0
	for _, c := range d.cells {
		if c >= v {
			n++
		}
	}
	return n
}

func (d *denseCounters) addAll(other counterStore, max uint32) error {
	o, ok := other.(*denseCounters)
	if !ok || len(o.cells) != len(d.cells) {
		return ErrSizeMismatch
	}
	for i, c := range o.cells {
		d.cells[i] = satAdd(d.cells[i], c, max)
	}
	return nil
}

// sparseCounters keeps only touched entries; a counter returning to zero is
// dropped again.
type sparseCounters struct {
	cells map[uint64]uint32
}

func newSparseCounters() *sparseCounters {
	return &sparseCounters{cells: make(map[uint64]uint32)}
}

func (s *sparseCounters) load(i uint64) uint32 {
	return s.cells[i]
}

func (s *sparseCounters) put(i uint64, v uint32) {
	if v == 0 {
		delete(s.cells, i)
		return
	}
	s.cells[i] = v
}

func (s *sparseCounters) reset() {
	for k := range s.cells {
		delete(s.cells, k)
	}
}

func (s *sparseCounters) total() int {
	t := 0
	for _, c := range s.cells {
		t += int(c)
	}
	return t
}

func (s *sparseCounters) atLeast(v uint32) int {
	n := 0
	for _, c := range s.cells {
		if c >= v {
			n++
		}
	}
	return n
}

func (s *sparseCounters) addAll(other counterStore, max uint32) error {
	o, ok := other.(*sparseCounters)
	if !ok {
		return ErrSizeMismatch
	}
	for k, c := range o.cells {
		s.cells[k] = satAdd(s.cells[k], c, max)
	}
	return nil
}

// filter owns the parameter set and the counter bookkeeping shared by every
// strategy. Set, Unset, Count and Contains cost one store access per probed
// index; TotalCount, Clear and merges walk the whole store.
type filter struct {
	params Params
	max    uint32
	store  counterStore
	probe  indexer
	buf    []uint64 // probe scratch, reused across calls; filters are single-owner
}

func newFilter(p Params, store counterStore, probe indexer) filter {
	return filter{
		params: p,
		max:    p.counterMax(),
		store:  store,
		probe:  probe,
		buf:    make([]uint64, 0, 4),
	}
}

// Set records one occurrence of key, saturating each touched counter at the
// counter maximum.
func (f *filter) Set(key uint64) {
	f.buf = f.probe.indices(key, f.buf[:0])
	for _, i := range f.buf {
		f.store.put(i, satIncr(f.store.load(i), f.max))
	}
}

// Unset removes one occurrence of key, clamping each touched counter at
// zero. Unsetting a key that collides with a still-present key drains the
// shared counter; that false negative is inherent to the structure.
func (f *filter) Unset(key uint64) {
	f.buf = f.probe.indices(key, f.buf[:0])
	for _, i := range f.buf {
		f.store.put(i, satDecr(f.store.load(i)))
	}
}

// Count returns the occurrence estimate for key: the minimum counter value
// across the indices the key resolves to.
func (f *filter) Count(key uint64) int {
	f.buf = f.probe.indices(key, f.buf[:0])
	min := -1
	for _, i := range f.buf {
		if c := int(f.store.load(i)); min < 0 || c < min {
			min = c
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// Contains reports whether key is probably present, i.e. whether its count
// estimate has reached the threshold.
func (f *filter) Contains(key uint64) bool {
	return f.Count(key) >= f.params.Threshold
}

// TotalCount returns the sum of every counter.
func (f *filter) TotalCount() int {
	return f.store.total()
}

// Clear resets every counter to zero. Parameters are unchanged.
func (f *filter) Clear() {
	f.store.reset()
}

// Size returns the number of addressable counters.
func (f *filter) Size() int {
	return f.params.Size
}

// CounterMax returns the saturation value of each counter.
func (f *filter) CounterMax() int {
	return int(f.max)
}

// Threshold returns the count at which a key reports present.
func (f *filter) Threshold() int {
	return f.params.Threshold
}

// ratioAtLeast returns the fraction of the filter's counters at or above v.
func (f *filter) ratioAtLeast(v uint32) float64 {
	return float64(f.store.atLeast(v)) / float64(f.params.Size)
}

// merge folds other's counters into f index by index, saturating at f's
// counter maximum. other is left unmodified. The operands must have equal
// size and must not alias.
func (f *filter) merge(other *filter) error {
	if f == other || f.store == other.store {
		return ErrAliasedMerge
	}
	if f.params.Size != other.params.Size {
		return ErrSizeMismatch
	}
	return f.store.addAll(other.store, f.max)
}
