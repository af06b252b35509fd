package library

import (
	"path/filepath"
	"strings"

	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/models"
)

// toPhoto maps a stored row onto a Photo. Every storage-shape assumption
// lives here, each missing column gets a fixed default.
func toPhoto(r database.Row) models.Photo {
	p := models.Photo{
		ID:              r.ID,
		Path:            r.Path,
		Filename:        r.Filename,
		Kind:            models.KindImage,
		ExifOrientation: 1,
		Hidden:          r.Hidden,
		Persons:         database.DecodeList(r.PersonsJSON),
		Keywords:        database.DecodeList(r.KeywordsJSON),
	}
	if p.Filename == "" && p.Path != "" {
		p.Filename = filepath.Base(p.Path)
	}
	if r.Width.Valid && r.Width.Int64 > 0 {
		p.Width = int(r.Width.Int64)
	}
	if r.Height.Valid && r.Height.Int64 > 0 {
		p.Height = int(r.Height.Int64)
	}
	if r.TakenAt.Valid && !r.TakenAt.Time.IsZero() {
		t := r.TakenAt.Time
		p.TakenAt = &t
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		p.Location = &models.Location{Latitude: r.Latitude.Float64, Longitude: r.Longitude.Float64}
	}
	if r.Kind.Valid {
		switch models.MediaKind(strings.ToLower(r.Kind.String)) {
		case models.KindVideo:
			p.Kind = models.KindVideo
		case models.KindLivePhoto:
			p.Kind = models.KindLivePhoto
		}
	}
	if r.ExifOrientation.Valid && r.ExifOrientation.Int64 >= 1 && r.ExifOrientation.Int64 <= 8 {
		p.ExifOrientation = int(r.ExifOrientation.Int64)
	}
	if r.Place.Valid {
		p.Place = strings.TrimSpace(r.Place.String)
	}
	return p
}

// displayable rejects hidden photos and photos without a file.
func displayable(p models.Photo) bool {
	return !p.Hidden && strings.TrimSpace(p.Path) != ""
}
