// Package cli implements the kestrel-zkvm command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Database   string
	DevMode    bool
}

// NewRootCommand creates the root command for the kestrel-zkvm CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kestrel-zkvm",
		Short: "Kestrel zkVM continuation and composition pipeline",
		Long: `Execute guest programs into bounded segments, prove each segment,
fold the proofs into one succinct receipt, and wrap it for on-chain
verification. Receipts persist in a local store keyed by session ID.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML configuration")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "kestrel-receipts.db", "path to the receipt store")
	cmd.PersistentFlags().BoolVar(&opts.DevMode, "dev", false, "dev mode: skip proving, issue unproven receipts")

	cmd.AddCommand(NewExecuteCommand(opts))
	cmd.AddCommand(NewProveCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewCompressCommand(opts))
	cmd.AddCommand(NewWrapCommand(opts))
	cmd.AddCommand(NewBisectCommand(opts))
	cmd.AddCommand(NewListCommand(opts))

	return cmd
}

// loadConfig builds the pipeline configuration from flags.
func (opts *RootOptions) loadConfig() (*kestrelConfig, error) {
	cfg, err := configFromPath(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DevMode {
		cfg = cfg.WithDevMode(true)
	}
	return cfg, nil
}
