package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/modelstore"
)

func newModelListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List classes in the model store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			model, err := modelstore.Open(cfg.Runtime.ModelDir).Load()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(model.Classes))
			for _, k := range model.Classes {
				rows = append(rows, []string{fmt.Sprintf("%d", k), fmt.Sprintf("%d", len(model.Classifiers[k].Weights))})
			}
			fmt.Println(renderTable([]string{"class", "dimension"}, rows, []columnAlignment{alignRight, alignRight}))
			return nil
		},
	}
	return cmd
}
