package database_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/models"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreAndGetPhotos(t *testing.T) {
	db := openTestDB(t)
	taken := time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC)

	photos := []models.Photo{
		{
			ID: "a", Path: "/p/a.jpg", Filename: "a.jpg", Width: 3000, Height: 4000,
			TakenAt: &taken, Location: &models.Location{Latitude: 37.7749, Longitude: -122.4194},
			Kind: models.KindImage, ExifOrientation: 6, Place: "San Francisco",
			Persons: []string{"Alice"}, Keywords: []string{"beach"},
		},
		{ID: "b", Path: "/p/b.mov", Kind: models.KindVideo, Hidden: true},
	}
	if err := db.StorePhotos(photos, "scan"); err != nil {
		t.Fatalf("StorePhotos: %v", err)
	}

	rows, err := db.GetPhotos()
	if err != nil {
		t.Fatalf("GetPhotos: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	byID := map[string]database.Row{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	a := byID["a"]
	if !a.TakenAt.Valid || !a.TakenAt.Time.Equal(taken) {
		t.Fatalf("taken_at round trip failed: %+v", a.TakenAt)
	}
	if !a.Latitude.Valid || a.Latitude.Float64 != 37.7749 {
		t.Fatalf("latitude round trip failed: %+v", a.Latitude)
	}
	if got := database.DecodeList(a.PersonsJSON); len(got) != 1 || got[0] != "Alice" {
		t.Fatalf("persons round trip failed: %v", got)
	}
	if a.Source != "scan" || a.ExifOrientation.Int64 != 6 {
		t.Fatalf("unexpected row: %+v", a)
	}

	b := byID["b"]
	if !b.Hidden || b.TakenAt.Valid || b.Latitude.Valid {
		t.Fatalf("unexpected nullable handling: %+v", b)
	}

	n, err := db.CountPhotos()
	if err != nil || n != 2 {
		t.Fatalf("CountPhotos = %d, %v", n, err)
	}
}

func TestAlbums(t *testing.T) {
	db := openTestDB(t)
	if err := db.StorePhotos([]models.Photo{{ID: "a", Path: "/a"}, {ID: "b", Path: "/b"}, {ID: "c", Path: "/c"}}, "scan"); err != nil {
		t.Fatalf("StorePhotos: %v", err)
	}

	id, err := db.StoreAlbum("photoframe", false, []string{"a", "b"})
	if err != nil {
		t.Fatalf("StoreAlbum: %v", err)
	}
	again, err := db.StoreAlbum("PhotoFrame", false, []string{"b", "c"})
	if err != nil {
		t.Fatalf("StoreAlbum again: %v", err)
	}
	if again != id {
		t.Fatalf("album names should match case-insensitively: %d vs %d", again, id)
	}

	found, ok, err := db.FindAlbum("PHOTOFRAME")
	if err != nil || !ok || found != id {
		t.Fatalf("FindAlbum = %d, %v, %v", found, ok, err)
	}
	if _, ok, _ := db.FindAlbum("missing"); ok {
		t.Fatal("FindAlbum found a missing album")
	}

	rows, err := db.GetAlbumPhotos(id)
	if err != nil {
		t.Fatalf("GetAlbumPhotos: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 album photos, got %d", len(rows))
	}

	albums, err := db.GetAlbums()
	if err != nil {
		t.Fatalf("GetAlbums: %v", err)
	}
	if len(albums) != 1 || albums[0].PhotoCount != 3 {
		t.Fatalf("unexpected albums: %+v", albums)
	}
}

func TestDeletePhotosNotIn(t *testing.T) {
	db := openTestDB(t)
	if err := db.StorePhotos([]models.Photo{{ID: "a", Path: "/a"}, {ID: "b", Path: "/b"}}, "scan"); err != nil {
		t.Fatalf("StorePhotos: %v", err)
	}
	if err := db.StorePhotos([]models.Photo{{ID: "r", Path: "/r"}}, "immich"); err != nil {
		t.Fatalf("StorePhotos: %v", err)
	}

	removed, err := db.DeletePhotosNotIn("scan", []string{"a"})
	if err != nil {
		t.Fatalf("DeletePhotosNotIn: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	n, _ := db.CountPhotos()
	if n != 2 {
		t.Fatalf("expected other sources untouched, count=%d", n)
	}
}
