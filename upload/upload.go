package upload

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/nspcc-dev/blockpush/block"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultStagger is a recommended delay between starts of the concurrent block
// existence checks.
const DefaultStagger = 25 * time.Millisecond

// ErrAborted is returned by Upload when submission is declined.
var ErrAborted = errors.New("upload aborted")

// ExistenceChecker checks whether blocks are already present at the
// destination. [Prober] is a production implementation.
type ExistenceChecker interface {
	// Present returns true if the referenced block is available at the
	// destination. Present returns only context errors.
	Present(context.Context, cid.Cid) (bool, error)
}

// Prm groups parameters of Upload.
type Prm struct {
	// Writes upload progress into the log.
	Logger *zap.Logger

	// Blocks to upload in the original order.
	Blocks []block.Block

	// Checks existence of the blocks at the destination. Required.
	Prober ExistenceChecker

	// Delay between starts of the sequential existence checks, see
	// DefaultStagger. Zero or negative value disables the delay.
	Stagger time.Duration

	// Fee parameters of the destination. Required.
	Fees FeeSource

	// Sends batches to the destination. Required unless DryRun is set.
	Submitter Submitter

	// Confirms batches' submission after cost estimation. Nil Confirm is
	// treated as an automatic consent.
	Confirm func(prompt string) (bool, error)

	// Optional progress callback, see [ExecutePrm.Progress].
	Progress func(done, total int)

	// Optional metrics collector.
	Metrics Metrics

	// Stop after cost estimation.
	DryRun bool
}

// Summary describes finished upload run.
type Summary struct {
	// Unique identifier of the run.
	Run uuid.UUID
	// Total number of blocks.
	Total int
	// Number of blocks already present at the destination.
	AlreadyPresent int
	// Number of blocks persisted by this run including benignly rejected.
	Uploaded int
	// Number of blocks in benignly rejected batches.
	Benign int
	// Number of batches to submit.
	Batches int
	// Estimated cost in fee units.
	Estimate uint64
	// Estimated cost in token base units.
	Price *big.Int
	// Transactions sent by this run in batch order.
	Transactions []string
	// Set when the run stopped after cost estimation.
	DryRun bool
}

// Upload uploads blocks which are not yet present at the destination. Upload
// checks all blocks concurrently, splits missing ones into batches, estimates
// their cost and, if submission is confirmed, submits batches one by one.
//
// Repeated call with the same blocks submits nothing once all of them are
// available. Upload returns ErrAborted if submission is declined. Errors of
// the fee source and the submitter are fatal and returned along with the
// summary of the processed part. Submitter errors are returned as is.
func Upload(ctx context.Context, prm Prm) (Summary, error) {
	res := Summary{
		Run:   uuid.New(),
		Total: len(prm.Blocks),
	}

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.Metrics == nil {
		prm.Metrics = noopMetrics{}
	}

	log := prm.Logger.With(zap.Stringer("run", res.Run))

	log.Info("checking blocks at the destination...", zap.Int("blocks", res.Total))

	missing, err := probe(ctx, prm)
	if err != nil {
		return res, fmt.Errorf("check blocks at the destination: %w", err)
	}

	res.AlreadyPresent = res.Total - len(missing)

	batches := Split(missing)
	res.Batches = len(batches)

	if len(batches) == 0 {
		log.Info("all blocks are already present at the destination, nothing to upload",
			zap.Int("blocks", res.Total))
		return res, nil
	}

	fees, err := prm.Fees.FeeSchedule(ctx)
	if err != nil {
		return res, fmt.Errorf("get fee schedule: %w", err)
	}

	unitPrice, err := prm.Fees.UnitPrice(ctx)
	if err != nil {
		return res, fmt.Errorf("get fee unit price: %w", err)
	}

	res.Estimate = Estimate(batches, fees)
	res.Price = Price(res.Estimate, unitPrice)

	log.Info("upload cost estimated",
		zap.Int("missing", len(missing)), zap.Int("present", res.AlreadyPresent),
		zap.Int("batches", res.Batches), zap.Uint64("units", res.Estimate),
		zap.Stringer("price", res.Price))

	if prm.DryRun {
		res.DryRun = true
		return res, nil
	}

	if prm.Confirm != nil {
		ok, err := prm.Confirm(fmt.Sprintf("Upload %d blocks in %d batches for %d fee units (%s in base token units)?",
			len(missing), res.Batches, res.Estimate, res.Price))
		if err != nil {
			return res, fmt.Errorf("confirm upload: %w", err)
		}
		if !ok {
			return res, ErrAborted
		}
	}

	stats, err := Execute(ctx, ExecutePrm{
		Logger:    log,
		Submitter: prm.Submitter,
		Progress:  prm.Progress,
		Metrics:   prm.Metrics,
	}, batches)

	res.Uploaded = stats.Submitted + stats.Benign
	res.Benign = stats.Benign
	res.Transactions = stats.Transactions

	if err != nil {
		log.Error("upload interrupted", zap.Int("batch", len(stats.Transactions)),
			zap.Int("uploaded", res.Uploaded), zap.Error(err))
		return res, err
	}

	log.Info("upload finished",
		zap.Int("uploaded", res.Uploaded), zap.Int("present", res.AlreadyPresent))

	return res, nil
}

// probe checks existence of all blocks concurrently and returns missing ones
// in the original order.
func probe(ctx context.Context, prm Prm) ([]block.Block, error) {
	present := make([]bool, len(prm.Blocks))

	g, gCtx := errgroup.WithContext(ctx)

	for i := range prm.Blocks {
		delay := time.Duration(i) * prm.Stagger

		g.Go(func() error {
			if delay > 0 {
				t := time.NewTimer(delay)
				select {
				case <-gCtx.Done():
					t.Stop()
					return gCtx.Err()
				case <-t.C:
				}
			}

			ok, err := prm.Prober.Present(gCtx, prm.Blocks[i].ID)
			if err != nil {
				return err
			}

			present[i] = ok
			prm.Metrics.ProbedBlock(ok)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var res []block.Block
	for i := range prm.Blocks {
		if !present[i] {
			res = append(res, prm.Blocks[i])
		}
	}

	return res, nil
}
