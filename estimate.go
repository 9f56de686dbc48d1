package countbloom

import "math"

// FillRatio returns the fraction of counters that are nonzero.
func (b *Block) FillRatio() float64 {
	return b.ratioAtLeast(1)
}

// EstimatedFalsePositiveRate estimates the probability that a key that was
// never Set reports present. Block probes a single counter, so the estimate
// is the fraction of counters already at or above the threshold.
func (b *Block) EstimatedFalsePositiveRate() float64 {
	return b.ratioAtLeast(uint32(b.params.Threshold))
}

// FillRatio returns the fraction of counters that are nonzero.
func (h *Hashed) FillRatio() float64 {
	return h.ratioAtLeast(1)
}

// EstimatedFalsePositiveRate estimates the probability that a key that was
// never Set reports present: all of its probes must land on counters at or
// above the threshold, approximated as the at-threshold fraction raised to
// the probe count.
func (h *Hashed) EstimatedFalsePositiveRate() float64 {
	return math.Pow(h.ratioAtLeast(uint32(h.params.Threshold)), float64(h.numProbes))
}
