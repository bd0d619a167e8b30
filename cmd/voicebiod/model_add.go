package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/dataset"
	"github.com/example/voicebio/internal/metrics"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/pipeline"
	"github.com/example/voicebio/internal/svm"
)

// newModelAddCmd trains a classifier for classID from whatever records
// already sit in the dataset under that label and commits it to the
// model store, without touching the dataset or the user directory.
// Useful after a bulk dataset import where internal/enroll's
// credential-registration and audio-extraction steps do not apply.
func newModelAddCmd() *cobra.Command {
	var classID int32

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Train and add one class from records already in the dataset",
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

			dim := pipeline.New(cfg).Dimension()
			var positives, negativePool [][]float64
			classCounts := make(map[int32]int)
			for _, r := range records {
				classCounts[r.Label]++
				if r.Label == classID {
					positives = append(positives, r.Features)
				} else {
					negativePool = append(negativePool, r.Features)
				}
			}
			delete(classCounts, classID)
			if len(positives) == 0 {
				return apperr.New(apperr.KindInputMalformed, "model add: no dataset records for class", "class_id", classID)
			}

			var result svm.Result
			if len(negativePool) == 0 {
				result = svm.TrainBinary(positives, onesLabel(len(positives)), dim, cfg.SVM)
			} else {
				targetRatio := svm.AveragePosNegRatio(classCounts, len(records)-len(positives))
				result = svm.TrainIncremental(classID, positives, negativePool, targetRatio, dim, cfg.SVM)
			}
			result.Classifier.ClassID = classID

			ms := modelstore.Open(cfg.Runtime.ModelDir)
			model, err := ms.Load()
			var next modelstore.Model
			if apperr.Is(err, apperr.KindModelNotLoaded) {
				next = modelstore.Model{
					Dimension:   dim,
					Classes:     []int32{classID},
					Classifiers: map[int32]svm.Classifier{classID: result.Classifier},
				}
				err = ms.SaveFull(next)
			} else if err == nil {
				next, err = ms.AddClass(model, result.Classifier)
			}
			if err != nil {
				return err
			}

			auditLog, closeAudit := openAuditLogger(ctx, cfg)
			defer closeAudit()
			auditLog.RecordTrainingRun("incremental", &classID, result, 0)

			metrics.ModelClasses.Set(float64(len(next.Classes)))
			metrics.TrainingEpochsToConverge.WithLabelValues("incremental").Observe(float64(result.Epochs))
			if result.Degenerate {
				metrics.TrainingDegenerate.Inc()
			}

			fmt.Printf("added class %d (epochs=%d degenerate=%v)\n", classID, result.Epochs, result.Degenerate)
			return nil
		},
	}

	cmd.Flags().Int32Var(&classID, "class-id", 0, "Class to train and add")
	_ = cmd.MarkFlagRequired("class-id")
	return cmd
}

func onesLabel(n int) []int8 {
	y := make([]int8, n)
	for i := range y {
		y[i] = 1
	}
	return y
}
