package upload

import (
	"math/big"
	"testing"

	"github.com/nspcc-dev/blockpush/block"
	"github.com/stretchr/testify/require"
)

func symmetricFee(v uint64) Fee {
	return Fee{Send: v, Execution: v}
}

// testFees is a fee schedule with the values of one real fee-metered network.
var testFees = FeeSchedule{
	FunctionCall:          symmetricFee(2_319_900_000_000),
	FunctionCallPerByte:   symmetricFee(2_235_934),
	ActionReceiptCreation: symmetricFee(108_059_500_000),
	Transfer:              symmetricFee(115_123_062_500),
}

func TestEstimate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.Zero(t, Estimate(nil, testFees))
		require.Zero(t, Estimate([]Batch{}, testFees))
		require.Zero(t, Estimate([]Batch{{}}, testFees))
	})

	t.Run("single block", func(t *testing.T) {
		b := block.Block{Data: []byte("Hello World")}
		require.EqualValues(t, uint64(5_086_250_090_492), Estimate([]Batch{{b}}, testFees))
	})

	t.Run("multiple batches", func(t *testing.T) {
		batches := []Batch{
			{{Data: []byte("Block 1")}},
			{{Data: []byte("Block 2")}},
			{{Data: []byte("Block 3")}},
		}
		require.EqualValues(t, uint64(15_258_696_609_060), Estimate(batches, testFees))
	})

	t.Run("multiple blocks in batch", func(t *testing.T) {
		batches := []Batch{{
			{Data: []byte("Block 1")},
			{Data: []byte("Block 2")},
			{Data: []byte("Block 3")},
		}}
		require.EqualValues(t, uint64(9_726_099_281_040), Estimate(batches, testFees))
	})

	t.Run("content independent", func(t *testing.T) {
		a := []Batch{Batch(newBlocks(t, 10, 20)), Batch(newBlocks(t, 30))}
		b := []Batch{
			{newBlock(t, 10, 0xaa), newBlock(t, 20, 0xbb)},
			{newBlock(t, 30, 0xcc)},
		}
		require.Equal(t, Estimate(a, testFees), Estimate(b, testFees))
	})

	t.Run("first block sizes execution", func(t *testing.T) {
		fees := FeeSchedule{FunctionCallPerByte: Fee{Execution: 1}}

		require.EqualValues(t, 10+len(StoreMethod), Estimate([]Batch{Batch(newBlocks(t, 10, 1000))}, fees))
		require.EqualValues(t, 1000+len(StoreMethod), Estimate([]Batch{Batch(newBlocks(t, 1000, 10))}, fees))
	})

	t.Run("monotonic", func(t *testing.T) {
		blocks := newBlocks(t, 100, 100, 50000)

		full := Estimate(Split(blocks), testFees)
		require.Positive(t, full)

		for _, subset := range [][]block.Block{
			{blocks[0], blocks[1]},
			{blocks[0], blocks[2]},
			{blocks[1], blocks[2]},
		} {
			require.GreaterOrEqual(t, full, Estimate(Split(subset), testFees))
		}

		var prev uint64
		for i := range 20 {
			cur := Estimate(Split(newBlocks(t, make([]int, i+1)...)), testFees)
			require.GreaterOrEqual(t, cur, prev, i)
			prev = cur
		}

		batches := []Batch{Batch(newBlocks(t, 5))}
		prev = Estimate(batches, testFees)
		for range 5 {
			batches = append(batches, Batch(newBlocks(t, 1)))
			cur := Estimate(batches, testFees)
			require.Greater(t, cur, prev)
			prev = cur
		}
	})
}

func TestPrice(t *testing.T) {
	require.Zero(t, Price(0, big.NewInt(100)).Sign())
	require.EqualValues(t, 42, Price(42, nil).Int64())
	require.EqualValues(t, 4200, Price(42, big.NewInt(100)).Int64())

	const units = 15_258_696_609_060
	unitPrice, _ := new(big.Int).SetString("100000000", 10)
	exp, _ := new(big.Int).SetString("1525869660906000000000", 10)
	require.Zero(t, exp.Cmp(Price(units, unitPrice)))
}
