package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/theimaginaryfoundation/session-extract/extraction"
	"github.com/theimaginaryfoundation/session-extract/extraction/logging"
	"github.com/theimaginaryfoundation/session-extract/extraction/provider"
	"github.com/theimaginaryfoundation/session-extract/extraction/store"
)

var graphSchema = provider.GenerateSchema[extraction.Graph]()

func main() {
	// A missing .env is normal; the environment is used as-is.
	_ = godotenv.Load()

	cfg, err := parseFlags(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	runID := uuid.New()
	logger := logging.New(logging.ProfileRuntime, os.Stderr).With().Str("run_id", runID.String()).Logger()

	prompts, err := newPromptBuilder(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	logBanner(logger, cfg, prompts)

	// No run-level cancellation: a run ends when every session is done or the process is killed.
	ctx := context.Background()

	logger.Info().Msg("[1/2] loading data")
	corpusPath, err := extraction.ResolveCorpusPath(cfg.InputPath)
	if err != nil {
		logger.Error().Err(err).Msg("data file not found")
		os.Exit(2)
	}
	corpus, err := extraction.LoadCorpus(ctx, corpusPath)
	if err != nil {
		logger.Error().Err(err).Str("path", corpusPath).Msg("load corpus")
		os.Exit(2)
	}

	sessions := extraction.NormalizeCorpus(corpus)
	totalSessions := len(sessions)
	logger.Info().Int("sessions", totalSessions).Str("path", corpusPath).Msg("loaded sessions")
	sessions = extraction.LimitSessions(sessions, cfg.MaxSessions)
	if cfg.MaxSessions > 0 {
		logger.Info().Int("sessions", len(sessions)).Int("max_sessions", cfg.MaxSessions).Msg("limited sessions for this run")
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if hc, ok := completer.(interface{ HealthCheck(context.Context) error }); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			logger.Warn().Err(err).Msg("endpoint health check failed; calls will be retried per message")
		}
	}

	caller := provider.NewCaller(completer,
		provider.WithMaxAttempts(cfg.MaxAttempts),
		provider.WithBackoff(provider.BackoffConfig{InitialDelay: cfg.Backoff, Multiplier: 2}),
		provider.WithLogger(logger),
	)

	opts := extraction.ProcessorOptions{
		Temperature: cfg.temperature(),
		MaxTokens:   cfg.MaxTokens,
	}
	if cfg.Schema {
		opts.Schema = graphSchema
		opts.SchemaName = "ExtractionGraph"
	}
	proc := extraction.NewProcessor(caller, prompts, opts, logger)

	logger.Info().Msg("[2/2] calling model for each session")
	start := time.Now()
	results := proc.Process(ctx, sessions)
	elapsed := time.Since(start)

	ev := logger.Info().Dur("elapsed", elapsed.Round(time.Millisecond))
	if len(results) > 0 {
		ev = ev.Str("avg_per_session", fmt.Sprintf("%.2fs", elapsed.Seconds()/float64(len(results))))
	}
	ev.Msg("processing completed")

	outPath, err := extraction.WriteResults(cfg.OutputDir, time.Now(), results)
	if err != nil {
		logger.Error().Err(err).Msg("save results")
		os.Exit(1)
	}
	logger.Info().Str("path", outPath).Msg("all responses saved")

	if cfg.SQLitePath != "" {
		if err := archiveRun(ctx, cfg, store.Run{ID: runID, StartedAt: start, Model: cfg.Model, OutputPath: outPath}, results); err != nil {
			logger.Error().Err(err).Str("sqlite", cfg.SQLitePath).Msg("archive run")
			os.Exit(1)
		}
		logger.Info().Str("sqlite", cfg.SQLitePath).Msg("run archived")
	}

	sum := extraction.Summarize(results)
	fmt.Fprintf(os.Stdout, "run_id=%s sessions_available=%d sessions_processed=%d max_sessions=%d successful=%d failed=%d out=%s\n",
		runID, totalSessions, sum.Processed, cfg.MaxSessions, sum.Successful, sum.Failed, outPath)
}

func parseFlags(fs *flag.FlagSet, args []string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()
	applyEnv(&cfg, getenv)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional TOML run file; explicit flags override its values")
	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Corpus JSON file (falls back to data/<in> when missing)")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory to write llm_responses_<timestamp>.json into")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Remote endpoint: ollama or openai")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model name (e.g. llama3:8b or qwen2.5:7b)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Endpoint base URL (defaults to OLLAMA_BASE_URL / OPENAI_BASE_URL)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature (negative = not sent, for models that reject it)")
	fs.IntVar(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "Maximum output tokens per call")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Attempts per message before the session fails")
	fs.DurationVar(&cfg.Backoff, "backoff", cfg.Backoff, "First retry delay; doubles after each failed attempt")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout (0 = none)")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Process only the first N sessions (0 = all)")
	fs.BoolVar(&cfg.ExtractionPrompt, "extraction-prompt", cfg.ExtractionPrompt, "Wrap each message in the extraction prompt template")
	fs.StringVar(&cfg.SystemPromptFile, "system-prompt-file", "", "File whose contents replace the system prompt")
	fs.BoolVar(&cfg.Schema, "schema", false, "Request JSON output matching the extraction graph schema")
	fs.StringVar(&cfg.SQLitePath, "sqlite", "", "Also archive the run into this SQLite database")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/session-extract -in memoryAss1/homework_data.json -max-sessions 0")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.ConfigPath != "" {
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fc, err := loadFileConfig(cfg.ConfigPath)
		if err != nil {
			return Config{}, err
		}
		if err := applyFileConfig(&cfg, fc, set); err != nil {
			return Config{}, err
		}
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	resolveEndpointEnv(&cfg, getenv)

	cfg.InputPath = filepath.Clean(cfg.InputPath)
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	return cfg, nil
}

func newCompleter(cfg Config) (provider.Completer, error) {
	if cfg.Provider == providerOpenAI {
		return provider.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	}
	return provider.NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout)
}

func archiveRun(ctx context.Context, cfg Config, run store.Run, results []extraction.ResultRecord) error {
	db, err := store.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveRun(ctx, run, results)
}

func temperatureLabel(cfg Config) string {
	if t := cfg.temperature(); t != nil {
		return fmt.Sprintf("%g", *t)
	}
	return "omitted"
}

func logBanner(logger zerolog.Logger, cfg Config, prompts promptBuilder) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "default"
	}
	maxSessions := "all"
	if cfg.MaxSessions > 0 {
		maxSessions = fmt.Sprintf("%d (testing mode)", cfg.MaxSessions)
	}
	logger.Info().
		Str("provider", cfg.Provider).
		Str("base_url", baseURL).
		Str("model", cfg.Model).
		Str("temperature", temperatureLabel(cfg)).
		Int("max_tokens", cfg.MaxTokens).
		Int("max_attempts", cfg.MaxAttempts).
		Str("prompt_mode", prompts.mode()).
		Bool("schema", cfg.Schema).
		Str("in", cfg.InputPath).
		Str("out", cfg.OutputDir).
		Str("max_sessions", maxSessions).
		Msg("session extract")
}
