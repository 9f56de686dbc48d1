package countbloom

import "fmt"

// mask names a contiguous bit field of the shifted key used as one hash
// input.
type mask struct {
	lsb   uint
	width uint
}

// Block maps every key to a single counter through a configurable
// XOR-combination of bit fields extracted from the shifted key.
//
// The hash is deliberately lossy: keys that agree on every masked field
// share a counter. A colliding Set makes an unrelated key look present
// (false positive) and an Unset on a colliding key drains a counter another
// key still relies on (false negative). Both are intended properties of the
// structure, not defects.
type Block struct {
	filter
	masks []mask
}

// NewBlock builds a Block filter from the parameter set and the parallel
// mask descriptor lists maskLSBs and maskWidths. The lists must be non-empty
// and of equal length, all widths must be equal, every mask must lie within
// the key bits that survive the offset shift, and a mask's index space
// (2^width) may not exceed the number of counters.
func NewBlock(p Params, maskLSBs, maskWidths []uint) (*Block, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(maskLSBs) == 0 {
		return nil, ErrNoMasks
	}
	if len(maskLSBs) != len(maskWidths) {
		return nil, ErrMaskLengths
	}

	usable := 64 - p.OffsetBits
	masks := make([]mask, len(maskLSBs))
	for i := range maskLSBs {
		m := mask{lsb: maskLSBs[i], width: maskWidths[i]}
		if m.width != maskWidths[0] {
			return nil, fmt.Errorf("mask %d: %w", i, ErrMaskWidths)
		}
		if m.width == 0 || m.lsb >= usable || m.lsb+m.width > usable {
			return nil, fmt.Errorf("mask %d: %w", i, ErrMaskRange)
		}
		if m.width >= 63 || uint64(1)<<m.width > uint64(p.Size) {
			return nil, fmt.Errorf("mask %d: %w", i, ErrMaskIndexSpace)
		}
		masks[i] = m
	}

	b := &Block{masks: masks}
	b.filter = newFilter(p, newDenseCounters(p.Size), b)
	return b, nil
}

// indices implements indexer. With a' = key >> OffsetBits the index is
// field_0 ^ field_1 ^ ... ^ field_{n-1}, where
// field_i = (a' >> lsb_i) & (2^width_i - 1) in configured mask order.
// Every field is below 2^width <= Size, so the XOR is too.
func (b *Block) indices(key uint64, dst []uint64) []uint64 {
	shifted := key >> b.params.OffsetBits
	var idx uint64
	for _, m := range b.masks {
		idx ^= (shifted >> m.lsb) & (uint64(1)<<m.width - 1)
	}
	return append(dst, idx)
}

// Merge folds other's counters into b, clamping each sum at b's counter
// maximum. The filters must have the same size; other is left unmodified and
// must not alias b.
func (b *Block) Merge(other *Block) error {
	return b.filter.merge(&other.filter)
}
