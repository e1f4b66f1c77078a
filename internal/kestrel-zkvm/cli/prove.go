package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/store"
	kestrelzkvm "github.com/kestrel-zk/kestrel-zkvm/pkg/kestrel-zkvm"
)

// ProveOptions holds flags for the prove command.
type ProveOptions struct {
	*RootOptions
	Input string
}

// NewProveCommand creates the prove command.
func NewProveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prove <program>",
		Short: "Execute a guest program and prove the session",
		Long: `Execute a guest program, prove every segment and store the resulting
receipt under the session ID.

Example:
  kestrel-zkvm prove fib:10
  kestrel-zkvm prove countdown:100000:7 --db ./receipts.db
  kestrel-zkvm prove echo --input 2a00000000000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProve(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "hex-encoded guest input")
	return cmd
}

func runProve(cmd *cobra.Command, opts *ProveOptions, progSpec string) error {
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
	ctx := cmd.Context()

	session, err := zkvm.Execute(ctx, prog, input)
	if err != nil {
		return err
	}
	r, err := zkvm.Prove(ctx, session)
	if err != nil {
		return err
	}

	s, err := store.Open(opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Put(ctx, session.ID, r); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session   %s\n", session.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "image     %s\n", prog.ImageID())
	fmt.Fprintf(cmd.OutOrStdout(), "segments  %d\n", len(session.Segments))
	fmt.Fprintf(cmd.OutOrStdout(), "cycles    %d\n", session.TotalCycles())
	fmt.Fprintf(cmd.OutOrStdout(), "journal   %s\n", hex.EncodeToString(session.Journal))
	fmt.Fprintf(cmd.OutOrStdout(), "receipt   %s\n", r.Kind)
	return nil
}
