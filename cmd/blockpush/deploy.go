package main

import (
	"fmt"
	"path/filepath"

	"github.com/nspcc-dev/blockpush/chain"
	"github.com/nspcc-dev/blockpush/contracts"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/spf13/cobra"
)

type deployView struct {
	Contract string `json:"contract" yaml:"contract"`
	Address  string `json:"address" yaml:"address"`
	Hash     string `json:"hash" yaml:"hash"`
	Owner    string `json:"owner" yaml:"owner"`
}

func (v deployView) Header() []string {
	return []string{"Contract", "Address", "Hash", "Owner"}
}

func (v deployView) Rows() [][]string {
	return [][]string{{v.Contract, v.Address, v.Hash, v.Owner}}
}

func newDeployCommand(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the Blockstore contract",
		Long: `Deploy sends compiled Blockstore contract to the Neo blockchain on behalf of
the wallet account which becomes the contract owner. Only the owner may store
blocks in the deployed contract, so pass its address to 'upload --contract'.

Contract that is already deployed by the account is not deployed again.`,
		Example: `  blockpush deploy --wallet wallet.json --dir contracts/blockstore`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.deploy(cmd, dir)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&dir, "dir", filepath.Join("contracts", contracts.BlockstoreDir), "Directory with contract.nef and manifest.json")
	fs.String("rpc", "", "Neo RPC endpoint")
	fs.StringP("wallet", "w", "", "Path to NEP-6 wallet")
	fs.StringP("address", "a", "", "Wallet account address (default account if omitted)")
	bindConfig(fs, "rpc", "chain.rpc")
	bindConfig(fs, "wallet", "chain.wallet")
	bindConfig(fs, "address", "chain.account")

	return cmd
}

func (a *app) deploy(cmd *cobra.Command, dir string) error {
	ctx := cmd.Context()

	ctr, err := contracts.ReadDir(dir)
	if err != nil {
		return err
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

	h, err := chain.DeployContract(ctx, chain.DeployPrm{
		Logger:   a.log,
		Deployer: management.New(act),
		Waiter:   act,
		States:   c,
		Sender:   acc.ScriptHash(),
		Contract: chain.CommonDeployPrm{
			NEF:      ctr.NEF,
			Manifest: ctr.Manifest,
		},
	})
	if err != nil {
		return err
	}

	return a.print(cmd, deployView{
		Contract: ctr.Manifest.Name,
		Address:  address.Uint160ToString(h),
		Hash:     h.StringLE(),
		Owner:    acc.Address,
	})
}
