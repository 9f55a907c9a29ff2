package main

import (
	"fmt"

	"github.com/nspcc-dev/blockpush/config"
	"github.com/nspcc-dev/blockpush/internal/logs"
	"github.com/nspcc-dev/blockpush/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// version is set at build time.
var version = "dev"

// configKey annotates flags overriding configuration keys.
const configKey = "blockpush_config_key"

// app is a state shared by the commands of the single execution.
type app struct {
	cfgPath string
	format  string

	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := new(app)

	cmd := &cobra.Command{
		Use:   "blockpush",
		Short: "Upload content-addressed blocks to the Neo blockchain",
		Long: `blockpush uploads blocks of a CAR archive to the Neo N3 blockchain,
skipping the ones already available at the destination read endpoint, and
checks availability of the content via public HTTP gateways.

Configuration is read from the optional YAML file, BLOCKPUSH_* environment
variables and command line flags, the latter taking precedence.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.finish,
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&a.cfgPath, "config", "c", "", "Path to YAML configuration file")
	fs.String("log-level", "", "Logging level (debug|info|warn|error)")
	fs.String("log-format", "", "Logging format (console|json)")
	fs.StringVarP(&a.format, "output", "o", "table", "Result output format (table|json|yaml)")
	bindConfig(fs, "log-level", "logging.level")
	bindConfig(fs, "log-format", "logging.format")

	cmd.AddCommand(
		newUploadCommand(a),
		newCheckCommand(a),
		newDeployCommand(a),
	)

	return cmd
}

// bindConfig makes flag override the configuration key.
func bindConfig(fs *pflag.FlagSet, flag, key string) {
	err := fs.SetAnnotation(flag, configKey, []string{key})
	if err != nil {
		panic(err)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if _, err := output.ParseFormat(a.format); err != nil {
		return err
	}

	v := config.New()

	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKey]
		if err != nil || len(keys) == 0 {
			return
		}

		err = v.BindPFlag(keys[0], f)
	})
	if err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	a.cfg, err = config.Load(v, a.cfgPath)
	if err != nil {
		return err
	}

	a.log, _, err = logs.New(a.cfg.Logging.Level, a.cfg.Logging.Format)
	if err != nil {
		return err
	}

	a.log.Debug("configuration loaded", zap.String("file", a.cfgPath))

	return nil
}

func (a *app) finish(*cobra.Command, []string) {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) print(cmd *cobra.Command, v any) error {
	f, err := output.ParseFormat(a.format)
	if err != nil {
		return err
	}

	return output.Print(cmd.OutOrStdout(), f, v)
}
