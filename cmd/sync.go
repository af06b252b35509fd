package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/immich"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download photos from Immich into the library",
	Long: `Selects assets from Immich (immich_album_id, or the people filter, or the
whole timeline), downloads originals into the download cache and stores
their metadata in the library under album_name.

The cache is kept under CACHE_SIZE_LIMIT_GB by evicting the oldest files.
A running slideshow picks up the new photos on its next refresh check.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := requireImmich(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(paths.LibraryDB())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := os.MkdirAll(paths.DownloadDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	client := immich.NewClient(immichURL, immichAPIKey, logger)
	syncer := immich.NewSyncer(client, db, cfg, paths.DownloadDir(), paths.SignalFile(), logger)

	fmt.Printf("Syncing from %s...\n", immichURL)
	result, err := syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Println(renderTable(
		[]string{"Assets", "Downloaded", "Already cached", "Failed", "Evicted", "Pruned"},
		[][]string{{
			fmt.Sprint(result.Assets),
			fmt.Sprint(result.Downloaded),
			fmt.Sprint(result.Skipped),
			fmt.Sprint(result.Failed),
			fmt.Sprint(result.Evicted),
			fmt.Sprint(result.Pruned),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}
