package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reapHoldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap-holds",
		Short: "期限切れの仮押さえを失効させる",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Ledger.ExpireStaleHolds(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d件の仮押さえを失効させました\n", n)
			return nil
		},
	}
}
