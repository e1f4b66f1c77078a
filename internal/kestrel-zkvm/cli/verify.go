package cli

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/store"
	kestrelzkvm "github.com/kestrel-zk/kestrel-zkvm/pkg/kestrel-zkvm"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Journal string
	VKPath  string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <session-id> <program>",
		Short: "Verify a stored receipt against a program",
		Long: `Load the receipt stored under the session ID and verify it against the
given guest program's image ID and the expected journal.

Example:
  kestrel-zkvm verify 0c6f9a1e-... fib:10 --journal 3700000000000000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "hex-encoded expected journal")
	cmd.Flags().StringVar(&opts.VKPath, "vk", "", "pin the Groth16 verifying key from this file")
	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions, idStr, progSpec string) error {
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
	var journal []byte
	if opts.Journal != "" {
		if journal, err = hex.DecodeString(opts.Journal); err != nil {
			return fmt.Errorf("decode journal: %w", err)
		}
	}

	s, err := store.Open(opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()
	r, err := s.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	var zkvmOpts []kestrelzkvm.Option
	if opts.VKPath != "" {
		vk, err := os.ReadFile(opts.VKPath)
		if err != nil {
			return fmt.Errorf("read verifying key: %w", err)
		}
		zkvmOpts = append(zkvmOpts, kestrelzkvm.WithWrappedVerifyingKey(vk))
	}
	zkvm, err := kestrelzkvm.New(cfg, zkvmOpts...)
	if err != nil {
		return err
	}
	if err := zkvm.Verify(r, prog.ImageID(), journal); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "receipt %s verified (%s)\n", id, r.Kind)
	return nil
}
