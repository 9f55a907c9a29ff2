/*
Package chain provides Neo N3 blockchain services used to upload blocks: batch
transaction submission, fee parameters and contract deployment.

Each batch is sent as a single transaction calling putBlock method of the
target contract once per block. Target may have no contract at all: such
transactions fault on the first call but are still persisted with the block
data, so they are reported as benignly rejected.
*/
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

// Dial connects to the Neo RPC server. Connection and all requests are done
// within the given timeout.
func Dial(ctx context.Context, endpoint string, timeout time.Duration) (*rpcclient.Client, error) {
	c, err := rpcclient.New(ctx, endpoint, rpcclient.Options{
		DialTimeout:    timeout,
		RequestTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("RPC client dial: %w", err)
	}

	err = c.Init()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init RPC client: %w", err)
	}

	return c, nil
}

// OpenAccount reads wallet from the file and returns its unlocked account. If
// addr is empty, default wallet account is used.
func OpenAccount(walletPath, addr, password string) (*wallet.Account, error) {
	w, err := wallet.NewWalletFromFile(walletPath)
	if err != nil {
		return nil, fmt.Errorf("read wallet file: %w", err)
	}

	var h util.Uint160

	if addr != "" {
		h, err = address.StringToUint160(addr)
		if err != nil {
			return nil, fmt.Errorf("decode account address: %w", err)
		}
	} else {
		h = w.GetChangeAddress()
		if h.Equals(util.Uint160{}) {
			return nil, errors.New("wallet has no default account")
		}
	}

	acc := w.GetAccount(h)
	if acc == nil {
		return nil, fmt.Errorf("account %s not found in the wallet", address.Uint160ToString(h))
	}

	err = acc.Decrypt(password, w.Scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypt account %s: %w", acc.Address, err)
	}

	return acc, nil
}

// ParseContract decodes contract address either in Neo address format or as
// little-endian hex string.
func ParseContract(s string) (util.Uint160, error) {
	h, err := address.StringToUint160(s)
	if err == nil {
		return h, nil
	}

	h, err = util.Uint160DecodeStringLE(s)
	if err != nil {
		return h, fmt.Errorf("decode contract address %q: neither Neo address nor LE hex", s)
	}

	return h, nil
}
