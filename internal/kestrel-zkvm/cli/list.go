package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/store"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored receipts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(rootOpts.Database)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no receipts stored")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %s\n",
					e.ID, e.Kind, e.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
