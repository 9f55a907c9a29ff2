package upload

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Outcome is a tag of the batch submission result.
type Outcome uint8

const (
	// Submitted means the batch has been accepted by the destination.
	Submitted Outcome = iota
	// BenignlyRejected means the batch transaction has been persisted but its
	// calls were rejected because target address has no storage contract or
	// method. Block data is still kept in the transaction.
	BenignlyRejected
)

// String returns lowercase name of the outcome.
func (x Outcome) String() string {
	switch x {
	case Submitted:
		return "submitted"
	case BenignlyRejected:
		return "benignly rejected"
	default:
		return fmt.Sprintf("unknown outcome #%d", uint8(x))
	}
}

// Result describes successfully finished batch submission.
type Result struct {
	Outcome Outcome
	// Transaction identifier in destination's textual format.
	Tx string
	// Reason of benign rejection, empty for Submitted.
	Reason string
}

// Submitter submits batches to the destination.
type Submitter interface {
	// Submit composes single transaction with one [StoreMethod] call per batch
	// block and sends it. Benign rejections are returned as result with
	// [BenignlyRejected] outcome, all other failures are returned as errors.
	Submit(context.Context, Batch) (Result, error)
}

// Metrics collects upload statistics.
type Metrics interface {
	// ProbedBlock is called after existence check of each block.
	ProbedBlock(present bool)
	// SubmittedBatch is called after each finished batch submission.
	SubmittedBatch(o Outcome, blocks, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) ProbedBlock(bool)                 {}
func (noopMetrics) SubmittedBatch(Outcome, int, int) {}

// ExecutePrm groups parameters of Execute.
type ExecutePrm struct {
	// Writes submission progress into the log.
	Logger *zap.Logger

	// Sends batches to the destination. Required.
	Submitter Submitter

	// Optional progress callback. Called after each finished batch with the
	// number of already processed blocks and the total number of blocks.
	Progress func(done, total int)

	// Optional metrics collector.
	Metrics Metrics
}

// Stats is a summary of batches' submission.
type Stats struct {
	// Number of blocks in Submitted batches.
	Submitted int
	// Number of blocks in BenignlyRejected batches.
	Benign int
	// Identifiers of sent transactions in batch order.
	Transactions []string
}

// Execute submits batches strictly one by one in the given order. Benign
// rejections do not interrupt the process. Any submission error stops the
// process and is returned as is along with statistics of already processed
// batches.
func Execute(ctx context.Context, prm ExecutePrm, batches []Batch) (Stats, error) {
	var (
		res   Stats
		done  int
		total = countBlocks(batches)
	)

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.Metrics == nil {
		prm.Metrics = noopMetrics{}
	}

	for i := range batches {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r, err := prm.Submitter.Submit(ctx, batches[i])
		if err != nil {
			return res, err
		}

		prm.Metrics.SubmittedBatch(r.Outcome, len(batches[i]), batches[i].Size())

		res.Transactions = append(res.Transactions, r.Tx)
		done += len(batches[i])

		switch r.Outcome {
		case BenignlyRejected:
			res.Benign += len(batches[i])
			prm.Logger.Info("batch transaction persisted but calls were rejected",
				zap.Int("batch", i), zap.String("tx", r.Tx), zap.String("reason", r.Reason),
				zap.Int("done", done), zap.Int("total", total))
		default:
			res.Submitted += len(batches[i])
			prm.Logger.Info("batch submitted",
				zap.Int("batch", i), zap.String("tx", r.Tx),
				zap.Int("done", done), zap.Int("total", total))
		}

		if prm.Progress != nil {
			prm.Progress(done, total)
		}
	}

	return res, nil
}
