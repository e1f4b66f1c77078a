package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/store"
	kestrelzkvm "github.com/kestrel-zk/kestrel-zkvm/pkg/kestrel-zkvm"
)

// BisectOptions holds flags for the bisect command.
type BisectOptions struct {
	*RootOptions
	Input string
}

// NewBisectCommand creates the bisect command.
func NewBisectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BisectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bisect <session-id> <program>",
		Short: "Locate where a claimed session diverges from re-execution",
		Long: `Replay the given guest program and binary-search the composite receipt
stored under the session ID for the first segment whose claimed post
state disagrees with honest re-execution. The configuration must match
the one the session was proven under, or segment boundaries will not
line up.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBisect(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "hex-encoded guest input")
	return cmd
}

func runBisect(cmd *cobra.Command, opts *BisectOptions, idStr, progSpec string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse session ID: %w", err)
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

	s, err := store.Open(opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Kind != receipt.KindComposite {
		return fmt.Errorf("receipt %s is %s, bisection needs a composite receipt", id, r.Kind)
	}

	zkvm, err := kestrelzkvm.New(cfg)
	if err != nil {
		return err
	}
	factory := func() kestrelzkvm.Core { return kestrelzkvm.NewMachine(prog, input) }
	res, err := zkvm.Bisect(ctx, factory, kestrelzkvm.DigestOf(input), r.Composite)
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "no divergence: all %d claimed boundaries match re-execution\n",
			len(r.Composite.Segments))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "divergence at segment %d\n", res.Index)
	fmt.Fprintf(cmd.OutOrStdout(), "  claimed    %s\n", res.Claimed)
	fmt.Fprintf(cmd.OutOrStdout(), "  recomputed %s\n", res.Recomputed)
	return nil
}
