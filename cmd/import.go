package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/downloads"
	"github.com/jamo/photoframe/internal/library"
	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/models"
)

// localSource tags library rows imported from a folder.
const localSource = "local"

var (
	importAlbum string
	importPrune bool
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Scan a folder of photos into the library",
	Long: `Walks the directory tree, reading dimensions, capture time, GPS position and
orientation from every supported image and video, and stores the result in
the local library. Folder names become keywords usable by
filter_by_keywords.

With --album the imported photos also form a named album, which the slideshow
uses when album_name matches and no filters are set.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importAlbum, "album", "", "Store the imported photos as this album")
	importCmd.Flags().BoolVar(&importPrune, "prune", false, "Remove previously imported photos that are no longer on disk")
}

func runImport(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	db, err := database.Open(paths.LibraryDB())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fmt.Printf("Scanning %s...\n", root)
	photos, err := library.Scan(root, logger)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if len(photos) == 0 {
		return fmt.Errorf("no photos or videos found in %s", root)
	}

	images, portraits, located := 0, 0, 0
	for _, p := range photos {
		if p.IsImage() {
			images++
			if p.Orientation() == models.Portrait {
				portraits++
			}
		}
		if p.Location != nil {
			located++
		}
	}
	fmt.Printf("Found %d files (%d images, %d portrait, %d with GPS)\n", len(photos), images, portraits, located)

	if err := db.StorePhotos(photos, localSource); err != nil {
		return fmt.Errorf("failed to store photos: %w", err)
	}

	if importPrune {
		ids := make([]string, len(photos))
		for i, p := range photos {
			ids[i] = p.ID
		}
		removed, err := db.DeletePhotosNotIn(localSource, ids)
		if err != nil {
			return fmt.Errorf("failed to prune library: %w", err)
		}
		if removed > 0 {
			fmt.Printf("Removed %d photos no longer on disk\n", removed)
		}
	}

	if importAlbum != "" {
		ids := make([]string, len(photos))
		for i, p := range photos {
			ids[i] = p.ID
		}
		if _, err := db.StoreAlbum(importAlbum, false, ids); err != nil {
			return fmt.Errorf("failed to store album: %w", err)
		}
		fmt.Printf("Album %q now holds %d photos\n", importAlbum, len(ids))
	}

	total, err := db.CountPhotos()
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}
	if _, err := downloads.WriteSignal(paths.SignalFile(), len(photos), total); err != nil {
		logger.Warn("could not write download signal", logging.Error(err))
	}

	fmt.Printf("Library holds %d photos\n", total)
	return nil
}
