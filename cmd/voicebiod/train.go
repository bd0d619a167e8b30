package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/dataset"
	"github.com/example/voicebio/internal/metrics"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/pipeline"
	"github.com/example/voicebio/internal/svm"
)

// newTrainCmd retrains every class from the full dataset via
// One-vs-All, the same path internal/enroll.trainFull takes on
// re-enrolment of an existing class, exposed standalone so an operator
// can rebuild the whole model after a bulk dataset import.
func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Retrain every enrolled class from the full dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			records, err := dataset.Open(cfg.Runtime.DatasetPath).Load()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("train: dataset is empty")
			}

			dim := pipeline.New(cfg).Dimension()
			X := make([][]float64, len(records))
			labels := make([]int32, len(records))
			for i, r := range records {
				X[i] = r.Features
				labels[i] = r.Label
			}

			start := time.Now()
			results := svm.TrainOneVsAll(X, labels, dim, cfg.SVM)
			elapsed := time.Since(start)

			classes := make([]int32, 0, len(results))
			classifiers := make(map[int32]svm.Classifier, len(results))
			rows := make([][]string, 0, len(results))
			for k, r := range results {
				classes = append(classes, k)
				classifiers[k] = r.Classifier
				rows = append(rows, []string{
					fmt.Sprintf("%d", k), fmt.Sprintf("%d", r.Epochs), fmt.Sprintf("%v", r.Degenerate),
				})
				metrics.TrainingEpochsToConverge.WithLabelValues("full").Observe(float64(r.Epochs))
				if r.Degenerate {
					metrics.TrainingDegenerate.Inc()
				}
			}

			model := modelstore.Model{Dimension: dim, Classes: classes, Classifiers: classifiers}
			if err := modelstore.Open(cfg.Runtime.ModelDir).SaveFull(model); err != nil {
				return err
			}
			metrics.ModelClasses.Set(float64(len(classes)))

			auditLog, closeAudit := openAuditLogger(ctx, cfg)
			defer closeAudit()
			for k, r := range results {
				classID := k
				auditLog.RecordTrainingRun("full", &classID, r, elapsed/time.Duration(len(results)))
			}

			fmt.Println(renderTable(
				[]string{"class", "epochs", "degenerate"}, rows,
				[]columnAlignment{alignRight, alignRight, alignLeft},
			))
			fmt.Printf("retrained %d classes in %s\n", len(classes), elapsed.Round(time.Millisecond))
			return nil
		},
	}
	return cmd
}
