package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/metrics"
	"github.com/example/voicebio/internal/modelstore"
)

func newModelRemoveCmd() *cobra.Command {
	var classID int32

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a class from the model store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ms := modelstore.Open(cfg.Runtime.ModelDir)
			model, err := ms.Load()
			if err != nil {
				return err
			}
			next, err := ms.RemoveClass(model, classID)
			if err != nil {
				return err
			}

			metrics.ModelClasses.Set(float64(len(next.Classes)))
			fmt.Printf("removed class %d (%d classes remain)\n", classID, len(next.Classes))
			return nil
		},
	}

	cmd.Flags().Int32Var(&classID, "class-id", 0, "Class to remove")
	_ = cmd.MarkFlagRequired("class-id")
	return cmd
}
