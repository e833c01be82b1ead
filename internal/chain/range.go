package chain

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned for empty or inverted block ranges.
var ErrInvalidRange = errors.New("invalid block range")

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Blocks returns the number of blocks in the range.
func (r BlockRange) Blocks() uint64 {
	return r.To - r.From + 1
}

// SplitRange splits [from, to] into consecutive batches of at most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("%w: batch size must be greater than zero", ErrInvalidRange)
	}
	if to < from {
		return nil, fmt.Errorf("%w: to block %d before from block %d", ErrInvalidRange, to, from)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; {
		end := to
		if to-start+1 > batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return ranges, nil
}
