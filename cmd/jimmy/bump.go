package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/types"
)

func newBumpCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "bump <question-id>",
		Short: "Pay to move a question to the top of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseItemID(args[0])
			if err != nil {
				return fmt.Errorf("invalid question id %q: %w", args[0], err)
			}

			client, cleanup, err := a.newClient(cmd.Context(), sink.NewWriter(cmd.OutOrStdout()), false)
			if err != nil {
				return err
			}
			defer cleanup()

			return client.Bump(cmd.Context(), id, token)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "checkout token from the payment provider")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
