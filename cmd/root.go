package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/logging"
)

var (
	homeDir      string
	immichURL    string
	immichAPIKey string

	paths     config.Paths
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "photoframe",
	Short: "Fullscreen photo slideshow for a personal photo library",
	Long: `Photoframe shows random photos from your library on a fullscreen display,
pairing portrait shots side by side and captioning each slide with the date
and place it was taken. It is driven by keyboard, mouse or voice commands.

Photos come from a local folder (import) or an Immich server (sync).`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Load .env file if it exists
	godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&homeDir, "home", os.Getenv(config.HomeEnv), "Directory holding config, cache and library files (can be set via PHOTOFRAME_HOME env var)")
	rootCmd.PersistentFlags().StringVar(&immichURL, "immich-url", os.Getenv("IMMICH_URL"), "Immich instance URL (can be set via IMMICH_URL env var)")
	rootCmd.PersistentFlags().StringVar(&immichAPIKey, "api-key", os.Getenv("IMMICH_API_KEY"), "Immich API key (can be set via IMMICH_API_KEY env var)")
}

// setup resolves the per-user paths, loads the configuration and builds the
// logger shared by every command.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if homeDir != "" {
		paths, err = config.NewPaths(homeDir)
	} else {
		paths, err = config.DefaultPaths()
	}
	if err != nil {
		return err
	}
	if err := paths.EnsureBase(); err != nil {
		return fmt.Errorf("failed to create %s: %w", paths.Base, err)
	}

	var warnings []string
	cfg, warnings = config.Load(paths.ConfigFile())

	logger, logCloser, err = logging.NewFromConfig(cfg, paths.LogFile())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	for _, w := range warnings {
		logger.Warn("config", "warning", w)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

func requireImmich() error {
	if immichURL == "" {
		return fmt.Errorf("immich-url is required (use --immich-url flag or IMMICH_URL env var)")
	}
	if immichAPIKey == "" {
		return fmt.Errorf("api-key is required (use --api-key flag or IMMICH_API_KEY env var)")
	}
	return nil
}
