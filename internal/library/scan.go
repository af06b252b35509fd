package library

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/models"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var videoExts = map[string]bool{
	".mp4": true,
	".mov": true,
	".m4v": true,
}

// skipFolders are system or camera directories that never hold photos.
var skipFolders = map[string]bool{
	".stfolder":  true,
	".Trashes":   true,
	"@eaDir":     true,
	"PRIVATE":    true,
	"AVF_INFO":   true,
	"THMBNL":     true,
	"lost+found": true,
}

// Scan walks root and describes every supported media file. Unreadable
// files are logged and skipped.
func Scan(root string, logger *slog.Logger) ([]models.Photo, error) {
	logger = logging.NewComponentLogger(logger, "scan")
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var photos []models.Photo
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Debug("skipping unreadable entry", "path", path, logging.Error(err))
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skipFolders[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		var photo models.Photo
		switch {
		case imageExts[ext]:
			photo, err = describeImage(path)
			if err != nil {
				logger.Warn("skipping unreadable image", "path", path, logging.Error(err))
				return nil
			}
		case videoExts[ext]:
			photo = models.Photo{Kind: models.KindVideo, ExifOrientation: 1}
			mod := info.ModTime()
			photo.TakenAt = &mod
		default:
			return nil
		}

		photo.ID = photoID(path)
		photo.Path = path
		photo.Filename = name
		photo.Keywords = folderKeywords(root, path)
		photos = append(photos, photo)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// photoID derives a stable identifier from the absolute path.
func photoID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// folderKeywords turns the directories between root and the file into
// keywords, so "Trips/Beach/a.jpg" is tagged "Trips" and "Beach".
func folderKeywords(root, path string) []string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return nil
	}
	var keywords []string
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part != "" && part != "." {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

func describeImage(path string) (models.Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Photo{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return models.Photo{}, fmt.Errorf("decode header: %w", err)
	}
	photo := models.Photo{
		Kind:            models.KindImage,
		Width:           cfg.Width,
		Height:          cfg.Height,
		ExifOrientation: 1,
	}

	if _, err := f.Seek(0, 0); err != nil {
		return photo, nil
	}
	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF block; dimensions are enough to display it.
		return photo, nil
	}
	if t, err := x.DateTime(); err == nil {
		photo.TakenAt = &t
	}
	if lat, lon, err := x.LatLong(); err == nil {
		photo.Location = &models.Location{Latitude: lat, Longitude: lon}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil && o >= 1 && o <= 8 {
			photo.ExifOrientation = o
		}
	}
	// Orientations 5-8 rotate by 90 degrees, so the displayed shape is the
	// stored one transposed.
	if photo.ExifOrientation >= 5 {
		photo.Width, photo.Height = photo.Height, photo.Width
	}
	return photo, nil
}
