package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/st-keller/jimmy-client/sink"
)

func newRecentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently answered searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cleanup, err := a.newClient(cmd.Context(), sink.Nop{}, false)
			if err != nil {
				return err
			}
			defer cleanup()

			items, err := client.Recent(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No recent answers.")
				return nil
			}
			for i, item := range items {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Q: %s\nA: %s\n", item.Text, item.Answer)
			}
			return nil
		},
	}
}
