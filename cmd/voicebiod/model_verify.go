package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/dataset"
	"github.com/example/voicebio/internal/modelstore"
)

// newModelVerifyCmd round-trips the model store directory and cross
// references it against the dataset's per-class sample counts.
func newModelVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Round-trip the model store and report per-class sample counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			model, err := modelstore.Open(cfg.Runtime.ModelDir).Load()
			if err != nil {
				return err
			}

			records, err := dataset.Open(cfg.Runtime.DatasetPath).Load()
			if err != nil {
				return err
			}
			counts := make(map[int32]int)
			for _, r := range records {
				counts[r.Label]++
			}

			rows := make([][]string, 0, len(model.Classes))
			for _, k := range model.Classes {
				c := model.Classifiers[k]
				status := "ok"
				if len(c.Weights) != model.Dimension {
					status = "dimension mismatch"
				} else if counts[k] < cfg.Dataset.MinSamplesPerSpeaker {
					status = "below minimum samples"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", k), fmt.Sprintf("%d", len(c.Weights)), fmt.Sprintf("%d", counts[k]), status,
				})
			}

			fmt.Println(renderTable(
				[]string{"class", "dimension", "samples", "status"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	return cmd
}
