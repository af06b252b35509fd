package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/downloads"
)

var signalAdded int

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Tell a running slideshow that new photos are available",
	Long: `Writes the download signal file. A running slideshow checks it every
cache_refresh_check_interval seconds and reloads its collection when the
signal is newer than its last check. Use it after adding photos to the
library by other means.`,
	RunE: runSignal,
}

func init() {
	rootCmd.AddCommand(signalCmd)

	signalCmd.Flags().IntVar(&signalAdded, "added", 0, "Number of photos added, for the log")
}

func runSignal(cmd *cobra.Command, args []string) error {
	db, err := database.Open(paths.LibraryDB())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	total, err := db.CountPhotos()
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}

	sig, err := downloads.WriteSignal(paths.SignalFile(), signalAdded, total)
	if err != nil {
		return err
	}
	fmt.Printf("Signal %s written at %s (%d photos in library)\n",
		sig.DownloadSessionID, sig.LastDownloadTimestamp.Format("2006-01-02 15:04:05"), total)
	return nil
}
