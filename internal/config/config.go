// Package config provides the engine's typed Configuration value. It
// is constructed once per process (or once per test) and threaded
// explicitly into every subsystem constructor — there is no
// package-level global to mutate.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the recognised set of options the core needs.
type Config struct {
	MFCC      MFCCConfig      `mapstructure:"mfcc"`
	STFT      STFTConfig      `mapstructure:"stft"`
	Preproc   PreprocConfig   `mapstructure:"preprocessing"`
	SVM       SVMConfig       `mapstructure:"svm"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Augment   AugmentConfig   `mapstructure:"augmentation"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	LogLevel  string          `mapstructure:"log_level"`
}

// RuntimeConfig names the storage locations and external collaborator
// endpoints the process needs to wire up its components, needed to
// run the engine outside of tests.
type RuntimeConfig struct {
	DatasetPath         string `mapstructure:"dataset_path"`
	ModelDir            string `mapstructure:"model_dir"`
	UserDirectoryPath   string `mapstructure:"user_directory_path"`
	PhraseStoreDSN      string `mapstructure:"phrase_store_dsn"`
	AuditDSN            string `mapstructure:"audit_dsn"`
	TranscriberURL      string `mapstructure:"transcriber_url"`
	TranscriberLanguage string `mapstructure:"transcriber_language"`
	TranscriberPoolSize int    `mapstructure:"transcriber_pool_size"`
}

type MFCCConfig struct {
	NumCoefficients int     `mapstructure:"num_coefficients"`
	NumFilters      int     `mapstructure:"num_filters"`
	FMin            float64 `mapstructure:"f_min"`
	FMax            float64 `mapstructure:"f_max"`
	UsePolyExpansion bool   `mapstructure:"use_poly_expansion"`
	UseL2           bool    `mapstructure:"use_l2"`
}

type STFTConfig struct {
	FrameSizeMs   float64 `mapstructure:"frame_size_ms"`
	FrameStrideMs float64 `mapstructure:"frame_stride_ms"`
}

type PreprocConfig struct {
	TargetRMS float64  `mapstructure:"target_rms"`
	VAD       VADConfig `mapstructure:"vad"`
}

type VADConfig struct {
	EnergyMin   float64 `mapstructure:"energy_min"`
	FrameMs     float64 `mapstructure:"frame_ms"`
	StrideMs    float64 `mapstructure:"stride_ms"`
	PaddingMs   float64 `mapstructure:"padding_ms"`
	MinDurMs    float64 `mapstructure:"min_dur_ms"`
	MergeGapMs  float64 `mapstructure:"merge_gap_ms"`
}

type SVMConfig struct {
	LearningRate     float64        `mapstructure:"learning_rate"`
	EpochsMax        int            `mapstructure:"epochs_max"`
	C                float64        `mapstructure:"c"`
	AdamBeta1        float64        `mapstructure:"adam_beta1"`
	AdamBeta2        float64        `mapstructure:"adam_beta2"`
	AdamEpsilon      float64        `mapstructure:"adam_epsilon"`
	Patience         int            `mapstructure:"patience"`
	PatienceMinority int            `mapstructure:"patience_minority"`
	MinEpochs        int            `mapstructure:"min_epochs"`
	BatchSize        int            `mapstructure:"batch_size"`
	Thresholds       SVMThresholds  `mapstructure:"thresholds"`
	Weighting        SVMWeighting   `mapstructure:"weighting"`
	CollapseFloor    float64        `mapstructure:"collapse_specificity_floor"`
	CollapseRecall   float64        `mapstructure:"collapse_recall_trigger"`
	MaxRestarts      int            `mapstructure:"max_restarts"`
	Seed             uint64         `mapstructure:"seed"`
}

type SVMThresholds struct {
	Specificity float64 `mapstructure:"specificity"`
	Recall      float64 `mapstructure:"recall"`
	Precision   float64 `mapstructure:"precision"`
	F1          float64 `mapstructure:"f1"`
}

type SVMWeighting struct {
	Logarithmic  bool    `mapstructure:"logarithmic"`
	Conservative float64 `mapstructure:"conservative"`
	Min          float64 `mapstructure:"min"`
	Max          float64 `mapstructure:"max"`
}

type AuthConfig struct {
	ScoreMin            float64 `mapstructure:"score_min"`
	DiffMin             float64 `mapstructure:"diff_min"`
	RunnerUpFactor      float64 `mapstructure:"runner_up_factor"`
	ScoreHigh           float64 `mapstructure:"score_high"`
	PhraseSimilarityMin float64 `mapstructure:"phrase_similarity_min"`
	TranscriberTimeoutS float64 `mapstructure:"transcriber_timeout_secs"`
}

type DatasetConfig struct {
	TrainRatio           float64 `mapstructure:"train_ratio"`
	TrainPerSpeaker      int     `mapstructure:"train_per_speaker"`
	TestPerSpeaker       int     `mapstructure:"test_per_speaker"`
	MinSamplesPerSpeaker int     `mapstructure:"min_samples_per_speaker"`
	UseAugmentation      bool    `mapstructure:"use_augmentation"`
}

type AugmentConfig struct {
	NoiseIntensity float64    `mapstructure:"noise_intensity"`
	GainRange      [2]float64 `mapstructure:"gain_range"`
	SpeedRange     [2]float64 `mapstructure:"speed_range"`
	Variations     int        `mapstructure:"variations"`
	Seed           uint64     `mapstructure:"seed"`
}

// LoadOptions binds cobra/pflag flags, an optional config file, and a
// set of defaults into one Config.
type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultConfig returns the engine's baseline configuration.
func DefaultConfig() Config {
	return Config{
		MFCC: MFCCConfig{
			NumCoefficients:  50,
			NumFilters:       40,
			FMin:             0,
			FMax:             8000,
			UsePolyExpansion: false,
			UseL2:            true,
		},
		STFT: STFTConfig{
			FrameSizeMs:   25,
			FrameStrideMs: 10,
		},
		Preproc: PreprocConfig{
			TargetRMS: 0.1,
			VAD: VADConfig{
				EnergyMin:  0.0005,
				FrameMs:    25,
				StrideMs:   10,
				PaddingMs:  150,
				MinDurMs:   100,
				MergeGapMs: 250,
			},
		},
		SVM: SVMConfig{
			LearningRate:     0.005,
			EpochsMax:        40000,
			C:                10,
			AdamBeta1:        0.9,
			AdamBeta2:        0.999,
			AdamEpsilon:      1e-8,
			Patience:         1500,
			PatienceMinority: 2000,
			MinEpochs:        800,
			BatchSize:        32,
			Thresholds: SVMThresholds{
				Specificity: 0.88,
				Recall:      0.75,
				Precision:   0.75,
				F1:          0.75,
			},
			Weighting: SVMWeighting{
				Logarithmic:  false,
				Conservative: 1.5,
				Min:          1.0,
				Max:          15.0,
			},
			CollapseFloor:  0.80,
			CollapseRecall: 0.98,
			MaxRestarts:    3,
			Seed:           42,
		},
		Auth: AuthConfig{
			ScoreMin:            0.1,
			DiffMin:             0.20,
			RunnerUpFactor:      0.75,
			ScoreHigh:           0.8,
			PhraseSimilarityMin: 0.70,
			TranscriberTimeoutS: 15,
		},
		Dataset: DatasetConfig{
			TrainRatio:           0.8,
			TrainPerSpeaker:      6,
			TestPerSpeaker:       1,
			MinSamplesPerSpeaker: 7,
			UseAugmentation:      true,
		},
		Augment: AugmentConfig{
			NoiseIntensity: 0.05,
			GainRange:      [2]float64{0.70, 1.30},
			SpeedRange:     [2]float64{0.85, 1.15},
			Variations:     4,
			Seed:           42,
		},
		Runtime: RuntimeConfig{
			DatasetPath:         "voicebio-dataset.bin",
			ModelDir:            "voicebio-models",
			UserDirectoryPath:   "voicebio-users.db",
			PhraseStoreDSN:      "postgres://localhost:5432/voicebio_phrases?sslmode=disable",
			AuditDSN:            "postgres://localhost:5432/voicebio_audit?sslmode=disable",
			TranscriberURL:      "http://localhost:8090",
			TranscriberLanguage: "es",
			TranscriberPoolSize: 4,
		},
		LogLevel: "info",
	}
}

// Dimension returns the feature vector length implied by the MFCC
// configuration: D = S*C, doubled if poly expansion is on.
func (c Config) Dimension() int {
	const statsPerCoefficient = 5
	d := statsPerCoefficient * c.MFCC.NumCoefficients
	if c.MFCC.UsePolyExpansion {
		d *= 2
	}
	return d
}

// RegisterFlags binds the subset of options that are commonly overridden
// from the command line.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.Int("mfcc-coefficients", defaults.MFCC.NumCoefficients, "Number of MFCC coefficients kept per frame")
	fs.Int("mfcc-filters", defaults.MFCC.NumFilters, "Number of mel filterbank triangles")
	fs.Bool("mfcc-poly", defaults.MFCC.UsePolyExpansion, "Append element-wise squares to the feature vector")
	fs.Bool("mfcc-l2", defaults.MFCC.UseL2, "L2-normalise the feature vector")
	fs.Float64("svm-learning-rate", defaults.SVM.LearningRate, "Adam learning rate for the per-class trainer")
	fs.Int("svm-epochs-max", defaults.SVM.EpochsMax, "Maximum training epochs per class")
	fs.Float64("svm-c", defaults.SVM.C, "Inverse L2 regularisation strength")
	fs.Float64("auth-score-min", defaults.Auth.ScoreMin, "Minimum top score to consider granting")
	fs.Float64("auth-diff-min", defaults.Auth.DiffMin, "Minimum separation between top two scores")
	fs.Float64("auth-phrase-similarity-min", defaults.Auth.PhraseSimilarityMin, "Minimum Levenshtein phrase similarity to grant")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")

	fs.String("dataset-path", defaults.Runtime.DatasetPath, "Path to the dataset store's append-only binary file")
	fs.String("model-dir", defaults.Runtime.ModelDir, "Directory holding the per-class model files and manifest")
	fs.String("user-directory-path", defaults.Runtime.UserDirectoryPath, "Path to the SQLite user directory database")
	fs.String("phrase-store-dsn", defaults.Runtime.PhraseStoreDSN, "Postgres DSN for the challenge-phrase store")
	fs.String("audit-dsn", defaults.Runtime.AuditDSN, "Postgres DSN for the audit log store")
	fs.String("transcriber-url", defaults.Runtime.TranscriberURL, "Base URL of the transcription service")
	fs.String("transcriber-language", defaults.Runtime.TranscriberLanguage, "Language hint sent to the transcriber")
	fs.Int("transcriber-pool-size", defaults.Runtime.TranscriberPoolSize, "Max concurrent transcriber HTTP requests")
}

// Load layers flags, environment variables (VOICEBIO_* prefix), an
// optional config file, and defaults, in that order of precedence.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("VOICEBIO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	} else {
		v.SetConfigName("voicebio")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: read file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("mfcc.num_coefficients", c.MFCC.NumCoefficients)
	v.SetDefault("mfcc.num_filters", c.MFCC.NumFilters)
	v.SetDefault("mfcc.f_min", c.MFCC.FMin)
	v.SetDefault("mfcc.f_max", c.MFCC.FMax)
	v.SetDefault("mfcc.use_poly_expansion", c.MFCC.UsePolyExpansion)
	v.SetDefault("mfcc.use_l2", c.MFCC.UseL2)
	v.SetDefault("stft.frame_size_ms", c.STFT.FrameSizeMs)
	v.SetDefault("stft.frame_stride_ms", c.STFT.FrameStrideMs)
	v.SetDefault("preprocessing.target_rms", c.Preproc.TargetRMS)
	v.SetDefault("preprocessing.vad.energy_min", c.Preproc.VAD.EnergyMin)
	v.SetDefault("preprocessing.vad.frame_ms", c.Preproc.VAD.FrameMs)
	v.SetDefault("preprocessing.vad.stride_ms", c.Preproc.VAD.StrideMs)
	v.SetDefault("preprocessing.vad.padding_ms", c.Preproc.VAD.PaddingMs)
	v.SetDefault("preprocessing.vad.min_dur_ms", c.Preproc.VAD.MinDurMs)
	v.SetDefault("preprocessing.vad.merge_gap_ms", c.Preproc.VAD.MergeGapMs)
	v.SetDefault("svm.learning_rate", c.SVM.LearningRate)
	v.SetDefault("svm.epochs_max", c.SVM.EpochsMax)
	v.SetDefault("svm.c", c.SVM.C)
	v.SetDefault("svm.adam_beta1", c.SVM.AdamBeta1)
	v.SetDefault("svm.adam_beta2", c.SVM.AdamBeta2)
	v.SetDefault("svm.adam_epsilon", c.SVM.AdamEpsilon)
	v.SetDefault("svm.patience", c.SVM.Patience)
	v.SetDefault("svm.patience_minority", c.SVM.PatienceMinority)
	v.SetDefault("svm.min_epochs", c.SVM.MinEpochs)
	v.SetDefault("svm.batch_size", c.SVM.BatchSize)
	v.SetDefault("svm.thresholds.specificity", c.SVM.Thresholds.Specificity)
	v.SetDefault("svm.thresholds.recall", c.SVM.Thresholds.Recall)
	v.SetDefault("svm.thresholds.precision", c.SVM.Thresholds.Precision)
	v.SetDefault("svm.thresholds.f1", c.SVM.Thresholds.F1)
	v.SetDefault("svm.weighting.logarithmic", c.SVM.Weighting.Logarithmic)
	v.SetDefault("svm.weighting.conservative", c.SVM.Weighting.Conservative)
	v.SetDefault("svm.weighting.min", c.SVM.Weighting.Min)
	v.SetDefault("svm.weighting.max", c.SVM.Weighting.Max)
	v.SetDefault("svm.collapse_specificity_floor", c.SVM.CollapseFloor)
	v.SetDefault("svm.collapse_recall_trigger", c.SVM.CollapseRecall)
	v.SetDefault("svm.max_restarts", c.SVM.MaxRestarts)
	v.SetDefault("svm.seed", c.SVM.Seed)
	v.SetDefault("auth.score_min", c.Auth.ScoreMin)
	v.SetDefault("auth.diff_min", c.Auth.DiffMin)
	v.SetDefault("auth.runner_up_factor", c.Auth.RunnerUpFactor)
	v.SetDefault("auth.score_high", c.Auth.ScoreHigh)
	v.SetDefault("auth.phrase_similarity_min", c.Auth.PhraseSimilarityMin)
	v.SetDefault("auth.transcriber_timeout_secs", c.Auth.TranscriberTimeoutS)
	v.SetDefault("dataset.train_ratio", c.Dataset.TrainRatio)
	v.SetDefault("dataset.train_per_speaker", c.Dataset.TrainPerSpeaker)
	v.SetDefault("dataset.test_per_speaker", c.Dataset.TestPerSpeaker)
	v.SetDefault("dataset.min_samples_per_speaker", c.Dataset.MinSamplesPerSpeaker)
	v.SetDefault("dataset.use_augmentation", c.Dataset.UseAugmentation)
	v.SetDefault("augmentation.noise_intensity", c.Augment.NoiseIntensity)
	v.SetDefault("augmentation.gain_range", c.Augment.GainRange)
	v.SetDefault("augmentation.speed_range", c.Augment.SpeedRange)
	v.SetDefault("augmentation.variations", c.Augment.Variations)
	v.SetDefault("augmentation.seed", c.Augment.Seed)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("runtime.dataset_path", c.Runtime.DatasetPath)
	v.SetDefault("runtime.model_dir", c.Runtime.ModelDir)
	v.SetDefault("runtime.user_directory_path", c.Runtime.UserDirectoryPath)
	v.SetDefault("runtime.phrase_store_dsn", c.Runtime.PhraseStoreDSN)
	v.SetDefault("runtime.audit_dsn", c.Runtime.AuditDSN)
	v.SetDefault("runtime.transcriber_url", c.Runtime.TranscriberURL)
	v.SetDefault("runtime.transcriber_language", c.Runtime.TranscriberLanguage)
	v.SetDefault("runtime.transcriber_pool_size", c.Runtime.TranscriberPoolSize)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("mfcc.num_coefficients", "mfcc-coefficients")
	v.RegisterAlias("mfcc.num_filters", "mfcc-filters")
	v.RegisterAlias("mfcc.use_poly_expansion", "mfcc-poly")
	v.RegisterAlias("mfcc.use_l2", "mfcc-l2")
	v.RegisterAlias("svm.learning_rate", "svm-learning-rate")
	v.RegisterAlias("svm.epochs_max", "svm-epochs-max")
	v.RegisterAlias("svm.c", "svm-c")
	v.RegisterAlias("auth.score_min", "auth-score-min")
	v.RegisterAlias("auth.diff_min", "auth-diff-min")
	v.RegisterAlias("auth.phrase_similarity_min", "auth-phrase-similarity-min")
	v.RegisterAlias("log_level", "log-level")
	v.RegisterAlias("runtime.dataset_path", "dataset-path")
	v.RegisterAlias("runtime.model_dir", "model-dir")
	v.RegisterAlias("runtime.user_directory_path", "user-directory-path")
	v.RegisterAlias("runtime.phrase_store_dsn", "phrase-store-dsn")
	v.RegisterAlias("runtime.audit_dsn", "audit-dsn")
	v.RegisterAlias("runtime.transcriber_url", "transcriber-url")
	v.RegisterAlias("runtime.transcriber_language", "transcriber-language")
	v.RegisterAlias("runtime.transcriber_pool_size", "transcriber-pool-size")
}
