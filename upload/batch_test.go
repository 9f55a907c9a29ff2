package upload

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/nspcc-dev/blockpush/block"
	"github.com/stretchr/testify/require"
)

// newBlock returns raw block of given size with data filled by seed.
func newBlock(t testing.TB, size int, seed byte) block.Block {
	data := bytes.Repeat([]byte{seed}, size)

	id, err := cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}.Sum(data)
	require.NoError(t, err)

	return block.Block{ID: id, Data: data}
}

func newBlocks(t testing.TB, sizes ...int) []block.Block {
	res := make([]block.Block, len(sizes))
	for i := range sizes {
		res[i] = newBlock(t, sizes[i], byte(i))
	}
	return res
}

func requireValidSplit(t testing.TB, in []block.Block, batches []Batch) {
	var joined []block.Block

	for i := range batches {
		require.NotEmpty(t, batches[i], i)

		joined = append(joined, batches[i]...)

		if len(batches[i]) == 1 {
			continue
		}

		require.LessOrEqual(t, len(batches[i]), MaxBatchActions, i)
		require.LessOrEqual(t, batches[i].Size(), MaxBatchBytes, i)
	}

	require.Equal(t, len(in), len(joined))
	for i := range in {
		require.True(t, in[i].ID.Equals(joined[i].ID), i)
	}
}

func TestBatch_Size(t *testing.T) {
	require.Zero(t, Batch(nil).Size())
	require.EqualValues(t, 1+20+300, Batch(newBlocks(t, 1, 20, 300)).Size())
}

func TestSplit(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.Empty(t, Split(nil))
		require.Empty(t, Split([]block.Block{}))
	})

	t.Run("small blocks", func(t *testing.T) {
		blocks := newBlocks(t, 100, 100, 50000)

		batches := Split(blocks)
		require.Len(t, batches, 1)
		require.Len(t, batches[0], 3)
		requireValidSplit(t, blocks, batches)
	})

	t.Run("action cap", func(t *testing.T) {
		for _, tc := range []struct {
			n       int
			batches []int
		}{
			{n: 1, batches: []int{1}},
			{n: MaxBatchActions, batches: []int{7}},
			{n: MaxBatchActions + 1, batches: []int{7, 1}},
			{n: 3*MaxBatchActions + 2, batches: []int{7, 7, 7, 2}},
		} {
			sizes := make([]int, tc.n)
			for i := range sizes {
				sizes[i] = 10
			}

			blocks := newBlocks(t, sizes...)
			batches := Split(blocks)
			requireValidSplit(t, blocks, batches)

			lens := make([]int, len(batches))
			for i := range batches {
				lens[i] = len(batches[i])
			}
			require.Equal(t, tc.batches, lens, tc.n)
		}
	})

	t.Run("byte cap", func(t *testing.T) {
		blocks := newBlocks(t, 100<<10, 100<<10, 100<<10, 10)

		batches := Split(blocks)
		require.Len(t, batches, 2)
		require.Len(t, batches[0], 2)
		require.Len(t, batches[1], 2)
		requireValidSplit(t, blocks, batches)
	})

	t.Run("exact byte cap", func(t *testing.T) {
		blocks := newBlocks(t, 128<<10, 128<<10, 1)

		batches := Split(blocks)
		require.Len(t, batches, 2)
		require.Equal(t, MaxBatchBytes, batches[0].Size())
		requireValidSplit(t, blocks, batches)
	})

	t.Run("oversized block", func(t *testing.T) {
		blocks := newBlocks(t, 10, MaxBatchBytes+1, 10, 10)

		batches := Split(blocks)
		require.Len(t, batches, 3)
		require.Len(t, batches[1], 1)
		require.Equal(t, MaxBatchBytes+1, batches[1].Size())
		requireValidSplit(t, blocks, batches)
	})

	t.Run("deterministic", func(t *testing.T) {
		blocks := newBlocks(t, 5, 200<<10, 7, 60<<10, 1, 1, 1, 1, 1, 1, 1, 1, 300<<10, 2)

		first := Split(blocks)
		requireValidSplit(t, blocks, first)
		require.Equal(t, first, Split(blocks))
	})

	t.Run("mixed sizes", func(t *testing.T) {
		var sizes []int
		for i := range 50 {
			sizes = append(sizes, (i*7919)%(90<<10)+1)
		}

		blocks := newBlocks(t, sizes...)
		requireValidSplit(t, blocks, Split(blocks))
	})
}

func ExampleSplit() {
	var blocks []block.Block
	for i := range 9 {
		blocks = append(blocks, block.Block{Data: make([]byte, i+1)})
	}

	for i, b := range Split(blocks) {
		fmt.Println(i, len(b), b.Size())
	}
	// Output:
	// 0 7 28
	// 1 2 17
}
