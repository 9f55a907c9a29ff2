package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/nspcc-dev/blockpush/upload"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"go.uber.org/zap"
)

// Actor composes and sends transactions signed by the uploader's account.
// [actor.Actor] is a production implementation.
type Actor interface {
	// Run test-invokes the script.
	Run(script []byte) (*result.Invoke, error)

	// SendRun sends transaction with the script after successful test
	// invocation.
	SendRun(script []byte) (util.Uint256, uint32, error)

	// SendUncheckedRun sends transaction with the script without checking its
	// execution state.
	SendUncheckedRun(script []byte, sysfee int64, attrs []transaction.Attribute, txHook actor.TransactionModifier) (util.Uint256, uint32, error)
}

// TransactionWaiter awaits persistence of the sent transactions.
// [actor.Actor] is a production implementation.
type TransactionWaiter interface {
	// WaitAny returns execution result of the first persisted transaction.
	// Returns waiter.ErrTxNotAccepted if none of them is persisted until
	// ValidUntilBlock and waiter.ErrContextDone on context cancellation.
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
}

// SubmitterPrm groups parameters of the Submitter.
type SubmitterPrm struct {
	// Writes transaction details into the log.
	Logger *zap.Logger

	// Sends transactions. Required.
	Actor Actor

	// Tracks transaction persistence. Required.
	Waiter TransactionWaiter

	// Address of the contract to store blocks in. May have no contract at
	// all: in this case blocks are kept in the transaction scripts only.
	Target util.Uint160
}

// Submitter implements [upload.Submitter] sending batches to the Neo
// blockchain.
type Submitter struct {
	log    *zap.Logger
	actor  Actor
	waiter TransactionWaiter
	target util.Uint160
}

var _ upload.Submitter = (*Submitter)(nil)

// NewSubmitter constructs Submitter from the parameters.
func NewSubmitter(prm SubmitterPrm) *Submitter {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	return &Submitter{
		log:    prm.Logger,
		actor:  prm.Actor,
		waiter: prm.Waiter,
		target: prm.Target,
	}
}

// IsBenignFault checks whether VM fault exception means that transaction
// target has no contract or storage method. Such transactions are still
// persisted with the block data.
func IsBenignFault(exception string) bool {
	return strings.Contains(exception, "method not found") ||
		strings.Contains(exception, "called contract") && strings.Contains(exception, "not found")
}

// BatchScript returns script calling [upload.StoreMethod] of the target
// contract for each batch block.
func BatchScript(target util.Uint160, b upload.Batch) ([]byte, error) {
	w := io.NewBufBinWriter()

	for i := range b {
		emit.AppCall(w.BinWriter, target, upload.StoreMethod, callflag.All, b[i].Data)
	}

	if w.Err != nil {
		return nil, fmt.Errorf("emit script: %w", w.Err)
	}

	return w.Bytes(), nil
}

// Submit implements [upload.Submitter] interface. The batch transaction is
// test-invoked first: successful one is sent and awaited as usual, while the
// one faulted because of missing contract or method is sent unchecked with
// system fee equal to the GAS consumed up to the fault. Submit returns error
// on any other fault.
func (x *Submitter) Submit(ctx context.Context, b upload.Batch) (upload.Result, error) {
	script, err := BatchScript(x.target, b)
	if err != nil {
		return upload.Result{}, err
	}

	res, err := x.actor.Run(script)
	if err != nil {
		return upload.Result{}, fmt.Errorf("test invoke batch script: %w", err)
	}

	var (
		txHash util.Uint256
		vub    uint32
		benign bool
	)

	switch {
	case res.State == vmstate.Halt.String():
		txHash, vub, err = x.actor.SendRun(script)
		if err != nil {
			return upload.Result{}, fmt.Errorf("send batch transaction: %w", err)
		}
	case IsBenignFault(res.FaultException):
		benign = true

		x.log.Debug("batch calls fail, sending transaction unchecked",
			zap.Int("blocks", len(b)), zap.String("exception", res.FaultException))

		txHash, vub, err = x.actor.SendUncheckedRun(script, res.GasConsumed, nil, nil)
		if err != nil {
			return upload.Result{}, fmt.Errorf("send unchecked batch transaction: %w", err)
		}
	default:
		return upload.Result{}, fmt.Errorf("batch script execution failed: %s: %s", res.State, res.FaultException)
	}

	x.log.Debug("batch transaction sent",
		zap.Stringer("tx", txHash), zap.Uint32("vub", vub), zap.Bool("benign", benign))

	exec, err := awaitTx(ctx, x.waiter, txHash, vub)
	if err != nil {
		return upload.Result{}, fmt.Errorf("wait for batch transaction %s: %w", txHash.StringLE(), err)
	}

	r := upload.Result{Tx: txHash.StringLE()}

	switch {
	case exec.VMState == vmstate.Halt:
		r.Outcome = upload.Submitted
	case IsBenignFault(exec.FaultException):
		r.Outcome = upload.BenignlyRejected
		r.Reason = exec.FaultException
	default:
		return r, fmt.Errorf("batch transaction %s failed: %s: %s", r.Tx, exec.VMState, exec.FaultException)
	}

	return r, nil
}

// awaitTx waits until the transaction is persisted or its ValidUntilBlock is
// passed.
func awaitTx(ctx context.Context, w TransactionWaiter, h util.Uint256, vub uint32) (state.Execution, error) {
	res, err := w.WaitAny(ctx, vub, h)
	if err != nil {
		return state.Execution{}, err
	}

	return res.Execution, nil
}
