package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/audiodecode"
	"github.com/example/voicebio/internal/dataset"
	"github.com/example/voicebio/internal/enroll"
	"github.com/example/voicebio/internal/modelstore"
)

func newEnrollCmd() *cobra.Command {
	var userID string
	var classID int32
	var codec string
	var sampleRate int

	cmd := &cobra.Command{
		Use:   "enroll [audio files...]",
		Short: "Enrol a speaker's recordings into the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			users, err := openUserDirectory(cfg)
			if err != nil {
				return err
			}
			defer users.Close()

			auditLog, closeAudit := openAuditLogger(ctx, cfg)
			defer closeAudit()

			ds := dataset.Open(cfg.Runtime.DatasetPath)
			ms := modelstore.Open(cfg.Runtime.ModelDir)
			enroller := enroll.New(cfg, ds, ms, users, auditLog)

			result, err := enroller.Enroll(ctx, userID, classID, args, audiodecode.Codec(codec), sampleRate)
			if err != nil {
				return err
			}

			fmt.Printf("enrolled class %d (incremental=%v epochs=%d degenerate=%v)\n",
				result.ClassID, result.Incremental, result.Training.Epochs, result.Training.Degenerate)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Directory user ID to register the voice credential against")
	cmd.Flags().Int32Var(&classID, "class-id", 0, "Speaker class ID to enrol")
	cmd.Flags().StringVar(&codec, "codec", string(audiodecode.CodecWAV), "Audio codec of the input files (wav|pcm_s16le|g711_ulaw|g711_alaw)")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 16000, "Sample rate hint for raw PCM/G.711 input")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}
