package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	indexDir     string
	altTextFlag  string
	tagsFlag     string
	settingsPath string
	templatePath string
	describe     bool
	dryRun       bool
	debugMode    bool
)

var rootCmd = &cobra.Command{
	Use:   "copostr --dir PATH",
	Short: "Post the next image from an image index",
	Long: `Picks one unposted image from the index in --dir, downloads it, posts it
with its source and licence, and records the outcome so the next run
moves on to another image.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := postNext(cmd.Context(), cfg, logger); err != nil {
			logger.Error("Run failed", zap.Error(err))
			return err
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [STATUS...]",
	Short: "Show the number of images per status",
	Long: `Shows the number of images per status. Pass status names (unposted,
success, download_fail, image_too_large, post_fail) to show only those.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := parseStatusFilter(args)
		if err != nil {
			return err
		}

		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := OpenStore(cmd.Context(), cfg.StorePath())
		if err != nil {
			logger.Error("Opening index failed", zap.Error(err))
			return err
		}
		defer store.Close()

		counts, err := store.CountByStatus(cmd.Context())
		if err != nil {
			logger.Error("Counting images failed", zap.Error(err))
			return err
		}

		writeStatusCounts(cmd.OutOrStdout(), counts, statuses)
		return nil
	},
}

// parseStatusFilter resolves status names, defaulting to every status
func parseStatusFilter(names []string) ([]Status, error) {
	if len(names) == 0 {
		return AllStatuses, nil
	}
	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		st, err := ParseStatus(name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func writeStatusCounts(out io.Writer, counts map[Status]int64, statuses []Status) {
	var total int64
	for _, st := range statuses {
		fmt.Fprintf(out, "%-16s %d\n", st, counts[st])
		total += counts[st]
	}
	fmt.Fprintf(out, "%-16s %d\n", "total", total)
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Mark every image except oversized ones as unposted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := OpenStore(cmd.Context(), cfg.StorePath())
		if err != nil {
			logger.Error("Opening index failed", zap.Error(err))
			return err
		}
		defer store.Close()

		logger.Info("Resetting index...")
		n, err := store.ResetRetryable(cmd.Context())
		if err != nil {
			logger.Error("Resetting index failed", zap.Error(err))
			return err
		}
		logger.Info("Index reset", zap.Int64("rows_updated", n))
		return nil
	},
}

// setup loads the configuration and builds the run logger
func setup(cmd *cobra.Command) (*Config, *zap.Logger, error) {
	overrides := &ConfigOverrides{}
	if cmd.Flags().Changed("settings") {
		overrides.SettingsPath = &settingsPath
	}
	if cmd.Flags().Changed("template") {
		overrides.TemplatePath = &templatePath
	}
	if cmd.Flags().Changed("alt") {
		overrides.AltText = &altTextFlag
	}
	if cmd.Flags().Changed("tags") {
		overrides.Tags = &tagsFlag
	}

	cfg, cfgErr := NewConfig(indexDir, overrides)

	level := "info"
	if cfg != nil {
		level = cfg.Settings.Log.Level
	}
	logger, err := NewLogger(level, debugMode)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	if cfgErr != nil {
		logger.Error("Loading configuration failed", zap.Error(cfgErr))
		logger.Sync()
		return nil, nil, cfgErr
	}
	return cfg, logger, nil
}

// postNext wires the pipeline from configuration and runs it once
func postNext(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	credentials, err := LoadCredentials(cfg.CredentialsPath())
	if err != nil {
		return err
	}
	logger.Debug("Loaded credentials", zap.String("path", cfg.CredentialsPath()))
	if missing := credentials.Missing(); len(missing) > 0 && !dryRun {
		logger.Warn("Credentials incomplete", zap.Strings("missing", missing))
	}

	store, err := OpenStore(ctx, cfg.StorePath())
	if err != nil {
		return err
	}
	defer store.Close()

	body, err := cfg.GetTemplate()
	if err != nil {
		return err
	}
	composer, err := NewPostComposer(body, cfg.PostOptions())
	if err != nil {
		return err
	}

	processor := NewPostProcessor(
		store,
		NewImageFetcher(cfg.Settings.Fetch.Timeout, cfg.Settings.Fetch.UserAgent),
		composer,
		NewHTTPGateway(cfg.Settings.Gateway.BaseURL, cfg.Settings.Gateway.Timeout),
		credentials,
		logger,
	)
	processor.SetDryRun(dryRun)

	if describe {
		writer, err := NewClaudeAltTextWriter(credentials.AnthropicAPIKey, cfg.Settings.AltTextWriter)
		if err != nil {
			logger.Warn("Alt text generation disabled", zap.Error(err))
		} else {
			processor.SetAltTextWriter(writer)
		}
	}

	result, err := processor.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("Run complete",
		zap.Uint64("image_id", result.ImageID),
		zap.Stringer("status", result.Status),
		zap.String("post_id", result.PostID),
		zap.Bool("dry_run", result.DryRun))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&indexDir, "dir", "", "Path to the directory containing the image index")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a settings file (default <dir>/settings.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.MarkPersistentFlagRequired("dir")

	rootCmd.Flags().StringVar(&altTextFlag, "alt", "", "Alt text to use for posted images")
	rootCmd.Flags().StringVar(&tagsFlag, "tags", "", "Tags to add to each post (semicolon-separated)")
	rootCmd.Flags().StringVar(&templatePath, "template", "", "Path to custom post body template file")
	rootCmd.Flags().BoolVar(&describe, "describe", false, "Generate alt text with Claude when none is configured")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compose the post without submitting it or writing a status")

	rootCmd.AddCommand(statusCmd, resetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
