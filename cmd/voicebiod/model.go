package main

import "github.com/spf13/cobra"

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model store maintenance commands",
	}

	cmd.AddCommand(newModelAddCmd())
	cmd.AddCommand(newModelRemoveCmd())
	cmd.AddCommand(newModelListCmd())
	cmd.AddCommand(newModelVerifyCmd())
	return cmd
}
