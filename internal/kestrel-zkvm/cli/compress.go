package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/store"
	kestrelzkvm "github.com/kestrel-zk/kestrel-zkvm/pkg/kestrel-zkvm"
)

// NewCompressCommand creates the compress command.
func NewCompressCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <session-id>",
		Short: "Fold a stored composite receipt into a succinct receipt",
		Long: `Load the receipt stored under the session ID, fold it into one
constant-size succinct receipt through the recursion programs, and store
the result back under the same ID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runCompress(cmd *cobra.Command, opts *RootOptions, idStr string) error {
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
	succinct, err := zkvm.Compress(ctx, r)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, id, succinct); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "receipt %s compressed (%s -> %s)\n", id, r.Kind, succinct.Kind)
	return nil
}
