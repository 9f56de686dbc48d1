package countbloom

// Perfect is the collision-free reference filter: every shifted key owns its
// own one-bit counter in a sparse map, so membership answers are exact at
// block granularity. It exists to bound the accuracy of the lossy strategies
// and must stay a single degenerate bank, never partitioned.
type Perfect struct {
	filter
}

// NewPerfect builds the degenerate oracle. The parameters must describe a
// single one-bit counter with threshold one; anything else is a
// configuration error. Size is nominal only, since storage grows with the
// distinct shifted keys actually touched.
func NewPerfect(p Params) (*Perfect, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.Size != 1 || p.NumBits != 1 || p.Threshold != 1 {
		return nil, ErrPerfectParams
	}

	pf := &Perfect{}
	pf.filter = newFilter(p, newSparseCounters(), pf)
	return pf, nil
}

// indices implements indexer: the shifted key indexes itself, no projection.
func (pf *Perfect) indices(key uint64, dst []uint64) []uint64 {
	return append(dst, key>>pf.params.OffsetBits)
}

// Merge folds other's entries into pf. Keys present on only one side merge
// against an implicit zero, so other's exclusive keys are carried into pf
// unchanged and pf's exclusive keys are untouched. other is left unmodified
// and must not alias pf.
func (pf *Perfect) Merge(other *Perfect) error {
	return pf.filter.merge(&other.filter)
}
