package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/store"
	kestrelzkvm "github.com/kestrel-zk/kestrel-zkvm/pkg/kestrel-zkvm"
)

// WrapOptions holds flags for the wrap command.
type WrapOptions struct {
	*RootOptions
	VKOut string
}

// NewWrapCommand creates the wrap command.
func NewWrapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WrapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "wrap <session-id>",
		Short: "Wrap a stored receipt in a Groth16 proof",
		Long: `Load the receipt stored under the session ID, compress it if needed,
finalize it under the identity recursion program, wrap it in a Groth16
proof over BN254 and store the result back under the same ID. The first
wrap in a process compiles the circuit and runs the setup, which takes a
while.

With --vk-out the setup's verifying key is written to a file; verify
accepts it via --vk to pin the key instead of trusting receipt bytes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrap(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.VKOut, "vk-out", "", "write the Groth16 verifying key to this file")
	return cmd
}

func runWrap(cmd *cobra.Command, opts *WrapOptions, idStr string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse session ID: %w", err)
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
	zkvm, err := kestrelzkvm.New(cfg)
	if err != nil {
		return err
	}
	wrapped, err := zkvm.Wrap(ctx, r)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, id, wrapped); err != nil {
		return err
	}
	if opts.VKOut != "" {
		vk, err := zkvm.WrappedVerifyingKey()
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.VKOut, vk, 0o644); err != nil {
			return fmt.Errorf("write verifying key: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "verifying key written to %s\n", opts.VKOut)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "receipt %s wrapped (%d byte proof)\n",
		id, len(wrapped.Wrapped.Proof))
	return nil
}
