package main

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/nspcc-dev/blockpush/block"
	"github.com/nspcc-dev/blockpush/gateway"
	"github.com/nspcc-dev/blockpush/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCheckCommand(a *app) *cobra.Command {
	var carPath string

	cmd := &cobra.Command{
		Use:   "check [<cid>...]",
		Short: "Check content availability via IPFS gateways",
		Long: `Check requests every content ID from every configured gateway until each
one is retrieved. Rate limited and timed out requests are repeated after the
backoff delay. Without --max-attempts the check lasts until all content is
available or the command is interrupted.

IDs are taken from the arguments and, if --car is set, from the archive.`,
		Example: `  blockpush check bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy
  blockpush check --car site.car --gateway ipfs.io,dweb.link --max-attempts 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.check(cmd, args, carPath)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&carPath, "car", "", "CAR archive to take block IDs from")
	fs.StringSlice("gateway", nil, "Gateway endpoints, scheme defaults to https")
	fs.Int("max-attempts", 0, "Limit of checks per ID and gateway, 0 means no limit")
	bindConfig(fs, "gateway", "gateway.list")
	bindConfig(fs, "max-attempts", "gateway.max_attempts")

	return cmd
}

func (a *app) check(cmd *cobra.Command, args []string, carPath string) error {
	ids := make([]cid.Cid, 0, len(args))
	for _, s := range args {
		id, err := cid.Decode(s)
		if err != nil {
			return fmt.Errorf("decode content ID %q: %w", s, err)
		}
		ids = append(ids, id)
	}

	if carPath != "" {
		blocks, _, err := block.ReadCARFile(carPath)
		if err != nil {
			return err
		}
		ids = append(ids, block.IDs(blocks)...)
	}

	if len(ids) == 0 {
		return errors.New("nothing to check, pass content IDs or --car")
	}

	a.log.Info("checking content availability",
		zap.Int("ids", len(ids)), zap.Strings("gateways", a.cfg.Gateway.List))

	rep, err := gateway.CheckAll(cmd.Context(), ids, a.cfg.Gateway.List, a.gatewayPrm(metrics.New()))

	if pErr := a.print(cmd, newCheckView(ids, a.cfg.Gateway.List, rep)); pErr != nil {
		return errors.Join(err, pErr)
	}

	if err == nil && !rep.OK() {
		err = fmt.Errorf("content is not available via %d gateway(s)", len(rep.Unresolved))
	}

	return err
}
