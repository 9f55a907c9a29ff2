package chain

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"go.uber.org/zap"
)

// ContractDeployer sends contract deployment transactions.
// [management.Contract] is a production implementation.
type ContractDeployer interface {
	// Deploy sends transaction deploying the contract with optional data
	// passed to its _deploy method.
	Deploy(exe *nef.File, manif *manifest.Manifest, data any) (util.Uint256, uint32, error)
}

// ContractStateReader reads state of the deployed contracts.
// [rpcclient.Client] is a production implementation.
type ContractStateReader interface {
	// GetContractStateByHash returns network state of the smart contract by its
	// address. Returns error if the contract is missing.
	GetContractStateByHash(util.Uint160) (*state.Contract, error)
}

// CommonDeployPrm groups common deployment parameters of the smart contract.
type CommonDeployPrm struct {
	NEF      nef.File
	Manifest manifest.Manifest
}

// DeployPrm groups parameters of DeployContract.
type DeployPrm struct {
	// Writes progress into the log.
	Logger *zap.Logger

	// Sends deployment transaction. Required.
	Deployer ContractDeployer

	// Tracks transaction persistence. Required.
	Waiter TransactionWaiter

	// Optional reader of the deployed contracts. If set, already deployed
	// contract is not deployed again.
	States ContractStateReader

	// Account sending deployment transaction.
	Sender util.Uint160

	// Contract to deploy.
	Contract CommonDeployPrm

	// Optional data passed to the _deploy method.
	Data any
}

// ContractAddress returns address of the contract deployed by the sender.
func ContractAddress(sender util.Uint160, c CommonDeployPrm) util.Uint160 {
	return state.CreateContractHash(sender, c.NEF.Checksum, c.Manifest.Name)
}

// DeployContract deploys the contract and waits until deployment transaction is
// successfully executed. Returns address of the deployed contract.
func DeployContract(ctx context.Context, prm DeployPrm) (util.Uint160, error) {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	addr := ContractAddress(prm.Sender, prm.Contract)
	log := prm.Logger.With(zap.String("contract", prm.Contract.Manifest.Name), zap.Stringer("address", addr))

	if prm.States != nil {
		st, err := prm.States.GetContractStateByHash(addr)
		if err == nil && st != nil {
			if st.NEF.Checksum != prm.Contract.NEF.Checksum {
				return addr, fmt.Errorf("contract is already deployed with different executable, checksum %d instead of %d",
					st.NEF.Checksum, prm.Contract.NEF.Checksum)
			}

			log.Info("contract is already deployed, skip")

			return addr, nil
		}
	}

	log.Info("sending contract deployment transaction...")

	txHash, vub, err := prm.Deployer.Deploy(&prm.Contract.NEF, &prm.Contract.Manifest, prm.Data)
	if err != nil {
		return addr, fmt.Errorf("send deployment transaction: %w", err)
	}

	log.Info("deployment transaction sent, waiting for it to be accepted...",
		zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

	exec, err := awaitTx(ctx, prm.Waiter, txHash, vub)
	if err != nil {
		return addr, fmt.Errorf("wait for deployment transaction %s: %w", txHash.StringLE(), err)
	}

	if exec.VMState != vmstate.Halt {
		return addr, fmt.Errorf("deployment transaction %s failed: %s: %s", txHash.StringLE(), exec.VMState, exec.FaultException)
	}

	log.Info("contract successfully deployed")

	return addr, nil
}
