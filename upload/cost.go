package upload

import (
	"context"
	"math/big"

	"github.com/nspcc-dev/blockpush/block"
)

// StoreMethod is a name of the destination method storing single block.
const StoreMethod = "putBlock"

// Fee is a pair of fee components charged for particular action.
type Fee struct {
	// Paid for sending the action to the network.
	Send uint64
	// Paid for executing the action.
	Execution uint64
}

// FeeSchedule groups fee constants of the destination network used to estimate
// upload cost. All values are expressed in fee units.
type FeeSchedule struct {
	// Base fee of the single method call.
	FunctionCall Fee
	// Fee per byte of the method call arguments.
	FunctionCallPerByte Fee
	// Fee of the transaction receipt creation.
	ActionReceiptCreation Fee
	// Fee of the transfer refunding unused deposit after the failed call.
	Transfer Fee
}

// FeeSource provides fee parameters of the destination network.
type FeeSource interface {
	// FeeSchedule returns current fee constants.
	FeeSchedule(context.Context) (FeeSchedule, error)
	// UnitPrice returns price of the single fee unit in token base units.
	UnitPrice(context.Context) (*big.Int, error)
}

// Estimate returns number of fee units required to submit given batches. The
// result depends only on the block sizes and their partitioning: it never
// decreases when blocks or batches are added. Estimate returns 0 for empty
// input.
//
// Execution fee of each batch is sized by its first block only: when the
// store method is missing at the destination, execution stops on the first
// call.
func Estimate(batches []Batch, fees FeeSchedule) uint64 {
	var res uint64

	for i := range batches {
		if len(batches[i]) == 0 {
			continue
		}

		for j := range batches[i] {
			res += callArgsLen(batches[i][j])*fees.FunctionCallPerByte.Send + fees.FunctionCall.Send
		}

		res += fees.ActionReceiptCreation.Send + fees.ActionReceiptCreation.Execution
		res += fees.FunctionCall.Execution + callArgsLen(batches[i][0])*fees.FunctionCallPerByte.Execution
		res += fees.Transfer.Send + fees.Transfer.Execution
	}

	return res
}

// Price converts fee units into token base units using unit price. Nil
// unitPrice is treated as 1.
func Price(units uint64, unitPrice *big.Int) *big.Int {
	res := new(big.Int).SetUint64(units)
	if unitPrice == nil {
		return res
	}
	return res.Mul(res, unitPrice)
}

func callArgsLen(b block.Block) uint64 {
	return uint64(b.Size() + len(StoreMethod))
}
