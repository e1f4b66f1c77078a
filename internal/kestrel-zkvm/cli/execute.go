package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	kestrelzkvm "github.com/kestrel-zk/kestrel-zkvm/pkg/kestrel-zkvm"
)

// ExecuteOptions holds flags for the execute command.
type ExecuteOptions struct {
	*RootOptions
	Input string
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecuteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "execute <program>",
		Short: "Run a guest program without proving",
		Long: `Run a guest program to completion and print session statistics.
No receipt is produced; use prove to generate one.

Example:
  kestrel-zkvm execute fib:10
  kestrel-zkvm execute echo --input 2a00000000000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "hex-encoded guest input")
	return cmd
}

func runExecute(cmd *cobra.Command, opts *ExecuteOptions, progSpec string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	prog, err := parseProgram(progSpec)
	if err != nil {
		return err
	}
	var input []byte
	if opts.Input != "" {
		if input, err = hex.DecodeString(opts.Input); err != nil {
			return fmt.Errorf("decode input: %w", err)
		}
	}

	zkvm, err := kestrelzkvm.New(cfg)
	if err != nil {
		return err
	}
	session, err := zkvm.Execute(cmd.Context(), prog, input)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session   %s\n", session.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "image     %s\n", prog.ImageID())
	fmt.Fprintf(cmd.OutOrStdout(), "segments  %d\n", len(session.Segments))
	fmt.Fprintf(cmd.OutOrStdout(), "cycles    %d\n", session.TotalCycles())
	fmt.Fprintf(cmd.OutOrStdout(), "exit      %s\n", session.ExitCode.Kind)
	fmt.Fprintf(cmd.OutOrStdout(), "journal   %s\n", hex.EncodeToString(session.Journal))
	return nil
}
