package upload

import (
	"github.com/nspcc-dev/blockpush/block"
)

// Limits of the single batch transaction.
const (
	// MaxBatchActions is a maximum number of blocks stored by one batch.
	MaxBatchActions = 7
	// MaxBatchBytes is a maximum cumulative size of block data in one batch.
	MaxBatchBytes = 256 << 10
)

// Batch is an ordered group of blocks submitted within a single transaction.
type Batch []block.Block

// Size returns cumulative size of the batch blocks' data.
func (x Batch) Size() int {
	var res int
	for i := range x {
		res += x[i].Size()
	}
	return res
}

// Split partitions blocks into batches keeping the original order. Every
// batch holds at most [MaxBatchActions] blocks with at most [MaxBatchBytes]
// cumulative size except a single oversized block, which is placed alone.
// Empty input produces no batches.
//
// Split does not modify the blocks and always produces the same result for the
// same input.
func Split(blocks []block.Block) []Batch {
	var (
		res  []Batch
		cur  Batch
		size int
	)

	for i := range blocks {
		if len(cur) > 0 && (len(cur) >= MaxBatchActions || size+blocks[i].Size() > MaxBatchBytes) {
			res = append(res, cur)
			cur, size = nil, 0
		}

		cur = append(cur, blocks[i])
		size += blocks[i].Size()
	}

	if len(cur) > 0 {
		res = append(res, cur)
	}

	return res
}

func countBlocks(batches []Batch) int {
	var res int
	for i := range batches {
		res += len(batches[i])
	}
	return res
}
