package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serviceFactory builds the service a command runs against. Tests replace it.
type serviceFactory func(cmd *cobra.Command) (simplemedia.Service, func(), error)

func NewRootCommand() *cobra.Command {
	return newRootCommand(newServiceFromEnv)
}

func newRootCommand(factory serviceFactory) *cobra.Command {
	var envPrefix string
	var verbose bool
	var asJSON bool

	rootCmd := &cobra.Command{
		Use:   "media-admin",
		Short: "Simple Media admin CLI",
		Long: `Simple Media admin CLI

Runs maintenance operations against the media library configured through the
environment (DATABASE_URL, STORAGE_URL, ENABLE_THUMBNAILS, ...). Configuration
can be loaded from a .env file in the current directory.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envPrefix, "env-prefix", "", "prefix of the configuration environment variables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(NewListCommand(factory))
	rootCmd.AddCommand(NewStatsCommand(factory))
	rootCmd.AddCommand(NewBulkStatusCommand(factory))
	rootCmd.AddCommand(NewBulkDeleteCommand(factory))
	rootCmd.AddCommand(NewGenerateThumbnailCommand(factory))
	rootCmd.AddCommand(NewRepairThumbnailsCommand(factory))

	return rootCmd
}

func newServiceFromEnv(cmd *cobra.Command) (simplemedia.Service, func(), error) {
	prefix, _ := cmd.Flags().GetString("env-prefix")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	serverConfig, err := config.Load(config.WithEnv(prefix))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded",
		"database", serverConfig.DatabaseType,
		"storage", serverConfig.DefaultStorageBackend,
		"thumbnails", serverConfig.EnableThumbnails)

	var extra []simplemedia.Option
	if verbose {
		extra = append(extra, simplemedia.WithHooks(simplemedia.LoggingHooks(logger)))
	}
	return serverConfig.BuildService(logger, extra...)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
