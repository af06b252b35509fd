package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/library"
	"github.com/jamo/photoframe/internal/models"
)

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "List albums in the library",
	RunE:  runAlbums,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the configured album and filters select photos",
	Long: `Loads the collection exactly as the slideshow would and reports the album,
filter and file status, so a misconfiguration shows up before the display
starts.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(albumsCmd)
	albumsCmd.AddCommand(verifyCmd)
}

func runAlbums(cmd *cobra.Command, args []string) error {
	db, err := database.Open(paths.LibraryDB())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	albums, err := db.GetAlbums()
	if err != nil {
		return fmt.Errorf("failed to list albums: %w", err)
	}
	if len(albums) == 0 {
		fmt.Println("No albums. Run 'photoframe import <dir> --album <name>' or 'photoframe sync'")
		return nil
	}

	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		marker := ""
		if strings.EqualFold(a.Name, cfg.AlbumName) {
			marker = "*"
		}
		kind := "regular"
		if a.Smart {
			kind = "smart"
		}
		rows = append(rows, []string{marker, a.Name, kind, fmt.Sprint(a.PhotoCount)})
	}
	fmt.Println(renderTable([]string{"", "Album", "Kind", "Photos"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	db, err := database.Open(paths.LibraryDB())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Library")

	total, err := db.CountPhotos()
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}
	if total == 0 {
		printCheck(out, "photos", checkFail, "library is empty")
	} else {
		printCheck(out, "photos", checkOK, fmt.Sprintf("%d in library", total))
	}

	filter := library.NewFilter(cfg)
	if filter.Active() {
		printCheck(out, "selection", checkOK, "filters (album ignored)")
	} else {
		_, found, err := db.FindAlbum(cfg.AlbumName)
		switch {
		case err != nil:
			return fmt.Errorf("failed to look up album: %w", err)
		case found:
			printCheck(out, "album", checkOK, cfg.AlbumName)
		case cfg.AlbumMissingPolicy == config.AlbumMissingFail:
			printCheck(out, "album", checkFail, fmt.Sprintf("%q not found", cfg.AlbumName))
		default:
			printCheck(out, "album", checkWarn, fmt.Sprintf("%q not found, falling back to library", cfg.AlbumName))
		}
	}

	photos, err := library.NewProvider(db, cfg, nil, logger).Load()
	switch {
	case errors.Is(err, library.ErrNoPhotos), errors.Is(err, library.ErrAlbumNotFound):
		printCheck(out, "collection", checkFail, err.Error())
		return nil
	case err != nil:
		return fmt.Errorf("failed to load photos: %w", err)
	}

	missing, portraits := 0, 0
	for _, p := range photos.Photos() {
		if _, err := os.Stat(p.Path); err != nil {
			missing++
		}
		if p.IsImage() && p.Orientation() == models.Portrait {
			portraits++
		}
	}
	printCheck(out, "collection", checkOK, fmt.Sprintf("%d photos", photos.Len()))

	switch {
	case !cfg.PortraitPairing:
		printCheck(out, "portrait pairing", checkOK, "disabled")
	case portraits < 2:
		printCheck(out, "portrait pairing", checkWarn, fmt.Sprintf("only %d portrait images", portraits))
	default:
		printCheck(out, "portrait pairing", checkOK, fmt.Sprintf("%d portrait images", portraits))
	}

	if missing > 0 {
		printCheck(out, "files", checkWarn, fmt.Sprintf("%d of %d missing on disk, they will be skipped", missing, photos.Len()))
	} else {
		printCheck(out, "files", checkOK, "all present")
	}
	return nil
}
