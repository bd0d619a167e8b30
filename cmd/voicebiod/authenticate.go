package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/audiodecode"
	"github.com/example/voicebio/internal/auth"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/pipeline"
)

func newAuthenticateCmd() *cobra.Command {
	var claimedID string
	var phraseID int32
	var codec string
	var sampleRate int

	cmd := &cobra.Command{
		Use:   "authenticate [audio file]",
		Short: "Authenticate a claimed identity against one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			audioPath := args[0]

			users, err := openUserDirectory(cfg)
			if err != nil {
				return err
			}
			defer users.Close()

			rec, err := users.Lookup(ctx, claimedID)
			if err != nil {
				return err
			}
			if rec == nil {
				return apperr.New(apperr.KindIdentityRejected, "authenticate: claimed id not in user directory", "claimed_id", claimedID)
			}

			phrases, err := openPhraseStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer phrases.Close()

			phrase, err := phrases.GetByID(ctx, phraseID)
			if err != nil {
				return err
			}

			model, err := modelstore.Open(cfg.Runtime.ModelDir).Load()
			if err != nil {
				return err
			}

			v, err := pipeline.New(cfg).ExtractFile(audioPath, audiodecode.Codec(codec), sampleRate)
			if err != nil {
				return err
			}

			auditLog, closeAudit := openAuditLogger(ctx, cfg)
			defer closeAudit()

			authenticator := auth.New(cfg.Auth, newTranscriberClient(cfg))
			verdict := authenticator.Decide(ctx, v, model, claimedID, phrase.Text, audioPath)
			auditLog.RecordAuthAttempt(claimedID, verdict)

			fmt.Printf("granted=%v predicted_id=%d confidence=%.3f id_match=%v text_similarity=%.3f\n",
				verdict.Granted, verdict.PredictedID, verdict.Confidence, verdict.IDMatch, verdict.TextSimilarity)
			if !verdict.Granted {
				return fmt.Errorf("authenticate: access denied")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&claimedID, "claimed-id", "", "Identity being claimed (directory identifier)")
	cmd.Flags().Int32Var(&phraseID, "phrase-id", 0, "Challenge phrase ID the speaker was asked to read")
	cmd.Flags().StringVar(&codec, "codec", "wav", "Audio codec of the input file (wav|pcm_s16le|g711_ulaw|g711_alaw)")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 16000, "Sample rate hint for raw PCM/G.711 input")
	_ = cmd.MarkFlagRequired("claimed-id")
	_ = cmd.MarkFlagRequired("phrase-id")

	return cmd
}
