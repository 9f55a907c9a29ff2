package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nspcc-dev/blockpush/block"
	"github.com/nspcc-dev/blockpush/chain"
	"github.com/nspcc-dev/blockpush/gateway"
	"github.com/nspcc-dev/blockpush/internal/prompt"
	"github.com/nspcc-dev/blockpush/metrics"
	"github.com/nspcc-dev/blockpush/upload"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/policy"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type uploadFlags struct {
	yes    bool
	dryRun bool
	verify bool
}

func newUploadCommand(a *app) *cobra.Command {
	var f uploadFlags

	cmd := &cobra.Command{
		Use:   "upload <file.car>",
		Short: "Upload blocks of the CAR archive",
		Long: `Upload reads all blocks of the CARv1 archive, checks which of them are
already available at the probe endpoint and sends the remaining ones to the
Neo blockchain in batches. Estimated cost is shown before sending and has to
be confirmed unless --yes is given.

Blocks are stored via 'putBlock' calls of the target contract. By default the
target is the uploading account itself, such transactions fail but still keep
the blocks in the chain.`,
		Example: `  blockpush upload site.car --wallet wallet.json
  blockpush upload site.car --dry-run -o json
  BLOCKPUSH_CHAIN_RPC=https://rpc.t5.n3.nspcc.ru:20331 blockpush upload site.car --yes --verify`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.upload(cmd, args[0], f)
		},
	}

	fs := cmd.Flags()
	fs.BoolVarP(&f.yes, "yes", "y", false, "Send batches without confirmation")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Estimate cost and exit")
	fs.BoolVar(&f.verify, "verify", false, "Check availability of all blocks via gateways after upload")
	fs.String("rpc", "", "Neo RPC endpoint")
	fs.StringP("wallet", "w", "", "Path to NEP-6 wallet")
	fs.StringP("address", "a", "", "Wallet account address (default account if omitted)")
	fs.String("contract", "", "Address of the contract storing blocks (uploading account if omitted)")
	fs.String("probe", "", "Base URL of the destination read endpoint")
	fs.String("metrics", "", "Address to expose Prometheus metrics on")
	bindConfig(fs, "rpc", "chain.rpc")
	bindConfig(fs, "wallet", "chain.wallet")
	bindConfig(fs, "address", "chain.account")
	bindConfig(fs, "contract", "chain.contract")
	bindConfig(fs, "probe", "probe.url")
	bindConfig(fs, "metrics", "metrics.listen")

	return cmd
}

func (a *app) upload(cmd *cobra.Command, carPath string, f uploadFlags) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	blocks, roots, err := block.ReadCARFile(carPath)
	if err != nil {
		return err
	}

	a.log.Info("archive read", zap.String("file", carPath),
		zap.Int("blocks", len(blocks)), zap.Int("roots", len(roots)))

	m := metrics.New()
	if a.cfg.Metrics.Listen != "" {
		go func() {
			err := m.Serve(ctx, a.cfg.Metrics.Listen, a.log)
			if err != nil {
				a.log.Warn("metrics server failed", zap.Error(err))
			}
		}()
	}

	acc, err := a.account()
	if err != nil {
		return err
	}

	c, err := chain.Dial(ctx, a.cfg.Chain.RPC, a.cfg.Chain.Timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	act, err := actor.NewSimple(c, acc)
	if err != nil {
		return fmt.Errorf("init transaction actor: %w", err)
	}

	target := acc.ScriptHash()
	if a.cfg.Chain.Contract != "" {
		target, err = chain.ParseContract(a.cfg.Chain.Contract)
		if err != nil {
			return err
		}
	}

	confirm := prompt.Confirm
	if f.yes {
		confirm = prompt.Always
	}

	sum, err := upload.Upload(ctx, upload.Prm{
		Logger: a.log,
		Blocks: blocks,
		Prober: upload.NewProber(upload.ProbeConfig{
			URL:     a.cfg.Probe.URL,
			Timeout: a.cfg.Probe.Timeout,
			Retries: a.cfg.Probe.Retries,
		}, http.DefaultClient, a.log),
		Stagger: a.cfg.Probe.Stagger,
		Fees:    chain.NewFeeSource(policy.NewReader(invoker.New(c, nil)), acc.Contract.Script),
		Submitter: chain.NewSubmitter(chain.SubmitterPrm{
			Logger: a.log,
			Actor:  act,
			Waiter: act,
			Target: target,
		}),
		Confirm: confirm,
		Progress: func(done, total int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "uploaded %d/%d blocks\n", done, total)
		},
		Metrics: m,
		DryRun:  f.dryRun,
	})
	if errors.Is(err, upload.ErrAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Upload aborted.")
		return nil
	}

	view := newUploadView(sum)

	if err == nil && f.verify && !sum.DryRun {
		rep, cErr := gateway.CheckAll(ctx, block.IDs(blocks), a.cfg.Gateway.List, a.gatewayPrm(m))
		view.addReport(rep)
		err = cErr
		if err == nil && !rep.OK() {
			err = errors.New("some blocks are not available via gateways")
		}
	}

	if pErr := a.print(cmd, view); pErr != nil {
		return errors.Join(err, pErr)
	}

	return err
}

func (a *app) account() (*wallet.Account, error) {
	if a.cfg.Chain.Wallet == "" {
		return nil, errors.New("wallet is not specified, use --wallet or chain.wallet configuration key")
	}

	pass := a.cfg.Chain.Password
	if pass == "" {
		var err error
		pass, err = prompt.Password("Wallet password")
		if err != nil {
			return nil, err
		}
	}

	return chain.OpenAccount(a.cfg.Chain.Wallet, a.cfg.Chain.Account, pass)
}

func (a *app) gatewayPrm(m gateway.Metrics) gateway.Prm {
	return gateway.Prm{
		Logger:      a.log,
		Client:      http.DefaultClient,
		Timeout:     a.cfg.Gateway.Timeout,
		Backoff:     a.cfg.Gateway.Backoff,
		MaxAttempts: a.cfg.Gateway.MaxAttempts,
		Metrics:     m,
	}
}
