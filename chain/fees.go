package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/blockpush/upload"
	"github.com/nspcc-dev/neo-go/pkg/core/fee"
)

// GASDecimals is a number of decimals of the GAS token used to pay fees.
const GASDecimals = 8

const (
	// Script bytes of the single contract call besides the method name and
	// argument data: argument packing, call flags, contract hash and syscall.
	callScriptOverhead = 35
	// Price of System.Contract.Call in execution fee factor units.
	contractCallPrice = 1 << 15
	// Transaction bytes besides the script and witnesses: header, single
	// signer and length prefixes.
	txOverhead = 52
)

// PolicyReader reads network fee parameters. [policy.ContractReader] is a
// production implementation.
type PolicyReader interface {
	// GetExecFeeFactor returns multiplier of the VM instruction prices.
	GetExecFeeFactor() (int64, error)
	// GetFeePerByte returns network fee per transaction byte.
	GetFeePerByte() (int64, error)
}

// FeeSource implements [upload.FeeSource] deriving fee schedule from the Neo
// Policy contract parameters.
type FeeSource struct {
	policy       PolicyReader
	verification []byte
}

var _ upload.FeeSource = (*FeeSource)(nil)

// NewFeeSource constructs FeeSource for transactions signed by account with
// the given verification script.
func NewFeeSource(policy PolicyReader, verificationScript []byte) *FeeSource {
	return &FeeSource{
		policy:       policy,
		verification: verificationScript,
	}
}

// FeeSchedule implements [upload.FeeSource] interface. Fee units are
// fractions of GAS. Neo burns unused system fee instead of refunding it, so
// transfer fee is always zero.
func (x *FeeSource) FeeSchedule(context.Context) (upload.FeeSchedule, error) {
	execFeeFactor, err := x.policy.GetExecFeeFactor()
	if err != nil {
		return upload.FeeSchedule{}, fmt.Errorf("get execution fee factor: %w", err)
	}

	feePerByte, err := x.policy.GetFeePerByte()
	if err != nil {
		return upload.FeeSchedule{}, fmt.Errorf("get fee per byte: %w", err)
	}

	if execFeeFactor < 0 || feePerByte < 0 {
		return upload.FeeSchedule{}, fmt.Errorf("negative network fee parameters: execution factor %d, per byte %d",
			execFeeFactor, feePerByte)
	}

	verificationFee, witnessSize := fee.Calculate(execFeeFactor, x.verification)

	return upload.FeeSchedule{
		FunctionCall: upload.Fee{
			Send:      uint64(feePerByte) * callScriptOverhead,
			Execution: uint64(execFeeFactor) * contractCallPrice,
		},
		FunctionCallPerByte: upload.Fee{
			Send: uint64(feePerByte),
		},
		ActionReceiptCreation: upload.Fee{
			Send:      uint64(feePerByte) * uint64(txOverhead+witnessSize),
			Execution: uint64(verificationFee),
		},
	}, nil
}

// UnitPrice implements [upload.FeeSource] interface. Fee units are already
// expressed in GAS fractions, so the price is always 1.
func (x *FeeSource) UnitPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}
