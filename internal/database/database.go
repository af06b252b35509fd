package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jamo/photoframe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

// Row is a photo exactly as stored. Nullable columns stay nullable; the
// library package decides what a missing value means.
type Row struct {
	ID              string
	Path            string
	Filename        string
	Width           sql.NullInt64
	Height          sql.NullInt64
	TakenAt         sql.NullTime
	Latitude        sql.NullFloat64
	Longitude       sql.NullFloat64
	Kind            sql.NullString
	ExifOrientation sql.NullInt64
	Place           sql.NullString
	PersonsJSON     sql.NullString
	KeywordsJSON    sql.NullString
	Hidden          bool
	Source          string
	SizeBytes       int64
	ImportedAt      sql.NullTime
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		filename TEXT,
		width INTEGER,
		height INTEGER,
		taken_at TIMESTAMP,
		latitude REAL,
		longitude REAL,
		kind TEXT,
		exif_orientation INTEGER,
		place TEXT,
		persons TEXT,
		keywords TEXT,
		hidden INTEGER DEFAULT 0,
		source TEXT,
		size_bytes INTEGER DEFAULT 0,
		imported_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS albums (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		smart INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS album_photos (
		album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
		photo_id TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
		PRIMARY KEY (album_id, photo_id)
	);

	CREATE INDEX IF NOT EXISTS idx_photos_taken_at ON photos(taken_at);
	CREATE INDEX IF NOT EXISTS idx_photos_source ON photos(source);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	return nil
}

// StorePhotos upserts photos in one transaction.
func (db *DB) StorePhotos(photos []models.Photo, source string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO photos (
			id, path, filename, width, height, taken_at, latitude, longitude,
			kind, exif_orientation, place, persons, keywords, hidden,
			source, size_bytes, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, photo := range photos {
		var lat, lon any
		if photo.Location != nil {
			lat, lon = photo.Location.Latitude, photo.Location.Longitude
		}
		var takenAt any
		if photo.TakenAt != nil {
			takenAt = *photo.TakenAt
		}
		persons, _ := json.Marshal(nonNil(photo.Persons))
		keywords, _ := json.Marshal(nonNil(photo.Keywords))

		_, err := stmt.Exec(
			photo.ID, photo.Path, photo.Filename, photo.Width, photo.Height, takenAt, lat, lon,
			string(photo.Kind), photo.ExifOrientation, photo.Place, string(persons), string(keywords),
			photo.Hidden, source, fileSize(photo.Path), now,
		)
		if err != nil {
			return fmt.Errorf("store photo %s: %w", photo.ID, err)
		}
	}

	return tx.Commit()
}

const photoColumns = `
	id, path, filename, width, height, taken_at, latitude, longitude,
	kind, exif_orientation, place, persons, keywords, hidden,
	COALESCE(source, ''), COALESCE(size_bytes, 0), imported_at`

func scanRow(rows interface{ Scan(...any) error }) (Row, error) {
	var r Row
	var filename sql.NullString
	err := rows.Scan(
		&r.ID, &r.Path, &filename, &r.Width, &r.Height, &r.TakenAt, &r.Latitude, &r.Longitude,
		&r.Kind, &r.ExifOrientation, &r.Place, &r.PersonsJSON, &r.KeywordsJSON, &r.Hidden,
		&r.Source, &r.SizeBytes, &r.ImportedAt,
	)
	r.Filename = filename.String
	return r, err
}

func (db *DB) queryRows(query string, args ...any) ([]Row, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetPhotos returns every stored photo ordered by capture time.
func (db *DB) GetPhotos() ([]Row, error) {
	return db.queryRows(`SELECT ` + photoColumns + ` FROM photos ORDER BY taken_at, id`)
}

// GetAlbumPhotos returns the photos linked to an album.
func (db *DB) GetAlbumPhotos(albumID int64) ([]Row, error) {
	return db.queryRows(`
		SELECT `+photoColumns+`
		FROM photos
		JOIN album_photos ON album_photos.photo_id = photos.id
		WHERE album_photos.album_id = ?
		ORDER BY taken_at, id
	`, albumID)
}

// CountPhotos returns the number of stored photos.
func (db *DB) CountPhotos() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM photos`).Scan(&n)
	return n, err
}

// TotalSize sums the recorded file sizes for a source.
func (db *DB) TotalSize(source string) (int64, error) {
	var n int64
	err := db.conn.QueryRow(`SELECT COALESCE(SUM(size_bytes), 0) FROM photos WHERE source = ?`, source).Scan(&n)
	return n, err
}

// StoreAlbum creates the album if needed and links the given photos to it.
func (db *DB) StoreAlbum(name string, smart bool, photoIDs []string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO albums (name, smart) VALUES (?, ?)`, name, smart); err != nil {
		return 0, err
	}
	var albumID int64
	if err := tx.QueryRow(`SELECT id FROM albums WHERE name = ?`, name).Scan(&albumID); err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO album_photos (album_id, photo_id) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, id := range photoIDs {
		if _, err := stmt.Exec(albumID, id); err != nil {
			return 0, fmt.Errorf("link photo %s: %w", id, err)
		}
	}

	return albumID, tx.Commit()
}

// FindAlbum looks an album up by name, ignoring case.
func (db *DB) FindAlbum(name string) (int64, bool, error) {
	var id int64
	err := db.conn.QueryRow(`SELECT id FROM albums WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// GetAlbums lists albums with their photo counts.
func (db *DB) GetAlbums() ([]models.Album, error) {
	rows, err := db.conn.Query(`
		SELECT albums.id, albums.name, albums.smart, COUNT(album_photos.photo_id)
		FROM albums
		LEFT JOIN album_photos ON album_photos.album_id = albums.id
		GROUP BY albums.id
		ORDER BY albums.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []models.Album
	for rows.Next() {
		var a models.Album
		if err := rows.Scan(&a.ID, &a.Name, &a.Smart, &a.PhotoCount); err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// DeletePhotosNotIn removes photos of a source whose IDs are not in keep.
// It returns the number of rows removed.
func (db *DB) DeletePhotosNotIn(source string, keep []string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS keep_ids (id TEXT PRIMARY KEY)`); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM keep_ids`); err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO keep_ids (id) VALUES (?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, id := range keep {
		if _, err := stmt.Exec(id); err != nil {
			return 0, err
		}
	}

	res, err := tx.Exec(`DELETE FROM photos WHERE source = ? AND id NOT IN (SELECT id FROM keep_ids)`, source)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// DecodeList parses a JSON string list column.
func DecodeList(col sql.NullString) []string {
	if !col.Valid || strings.TrimSpace(col.String) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(col.String), &out); err != nil {
		return nil
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
