package domain

// Height is the hosting ledger's logical clock: a monotonically increasing
// block number. It is only used for blocklock timing.
type Height uint64

// Since returns the number of blocks between earlier and h, or zero when
// earlier is ahead of h.
func (h Height) Since(earlier Height) uint64 {
	if h < earlier {
		return 0
	}
	return uint64(h - earlier)
}
