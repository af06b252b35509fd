package immich

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/downloads"
	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/models"
)

// Source tags library rows that came from Immich.
const Source = "immich"

// Store is the part of the photo library a sync writes to.
type Store interface {
	StorePhotos(photos []models.Photo, source string) error
	StoreAlbum(name string, smart bool, photoIDs []string) (int64, error)
	DeletePhotosNotIn(source string, keep []string) (int64, error)
}

// Result summarises one sync run.
type Result struct {
	Assets     int
	Downloaded int
	Skipped    int
	Failed     int
	Evicted    int
	Pruned     int64
}

// Syncer mirrors the configured Immich selection into the download
// directory and the local library.
type Syncer struct {
	client     *Client
	store      Store
	cfg        *config.Config
	dir        string
	signalPath string
	logger     *slog.Logger
}

func NewSyncer(client *Client, store Store, cfg *config.Config, dir, signalPath string, logger *slog.Logger) *Syncer {
	return &Syncer{
		client:     client,
		store:      store,
		cfg:        cfg,
		dir:        dir,
		signalPath: signalPath,
		logger:     logging.NewComponentLogger(logger, "sync"),
	}
}

// Run performs a full sync. Only one sync may run per download directory.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	var result Result

	lock, err := downloads.Lock(s.dir)
	if err != nil {
		return result, err
	}
	defer lock.Unlock()

	assets, err := s.selectAssets(ctx)
	if err != nil {
		return result, fmt.Errorf("select assets: %w", err)
	}
	result.Assets = len(assets)
	s.logger.Info("assets selected", "count", len(assets))

	var batch []models.Photo
	var ids []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.store.StorePhotos(batch, Source); err != nil {
			return fmt.Errorf("store photos: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	batchSize := s.cfg.DownloadBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := filepath.Join(s.dir, localName(asset))
		fetched, err := s.fetch(ctx, asset, path)
		if err != nil {
			result.Failed++
			s.logger.Warn("download failed", "asset", asset.ID, logging.Error(err))
			continue
		}
		if fetched {
			result.Downloaded++
		} else {
			result.Skipped++
		}

		batch = append(batch, AssetToPhoto(asset, path))
		ids = append(ids, asset.ID)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
		if n := s.cfg.ProgressLogInterval; n > 0 && (i+1)%n == 0 {
			s.logger.Info("sync progress", "processed", i+1, "total", len(assets))
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	evicted, err := downloads.Enforce(s.dir, downloads.GB(s.cfg.CacheSizeLimitGB))
	if err != nil {
		s.logger.Warn("cache size enforcement failed", logging.Error(err))
	}
	result.Evicted = len(evicted)
	if len(evicted) > 0 {
		ids = keepExisting(s.dir, assets, ids)
	}

	pruned, err := s.store.DeletePhotosNotIn(Source, ids)
	if err != nil {
		return result, fmt.Errorf("prune library: %w", err)
	}
	result.Pruned = pruned

	if _, err := s.store.StoreAlbum(s.cfg.AlbumName, false, ids); err != nil {
		return result, fmt.Errorf("store album: %w", err)
	}

	if result.Downloaded > 0 {
		if _, err := downloads.WriteSignal(s.signalPath, result.Downloaded, len(ids)); err != nil {
			s.logger.Warn("failed to write download signal", logging.Error(err))
		}
	}
	return result, nil
}

func (s *Syncer) selectAssets(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	var err error

	switch {
	case s.cfg.ImmichAlbumID != "":
		assets, err = s.client.AlbumAssets(ctx, s.cfg.ImmichAlbumID)
	case len(s.cfg.FilterPeopleNames) > 0:
		var personIDs []string
		for _, name := range s.cfg.FilterPeopleNames {
			people, err := s.client.SearchPeople(ctx, strings.TrimSpace(name))
			if err != nil {
				return nil, fmt.Errorf("search person %q: %w", name, err)
			}
			if len(people) == 0 {
				s.logger.Warn("person not found on server", "name", name)
			}
			for _, p := range people {
				personIDs = append(personIDs, p.ID)
			}
		}
		if len(personIDs) == 0 {
			return nil, nil
		}
		assets, err = s.searchPeople(ctx, personIDs)
	default:
		assets, err = s.client.SearchAssets(ctx, SearchOptions{IncludeVideos: s.cfg.VideoPlaybackEnabled})
	}
	if err != nil {
		return nil, err
	}

	selected := assets[:0]
	for _, a := range assets {
		if a.IsArchived {
			continue
		}
		if !strings.EqualFold(a.Type, "IMAGE") && !s.cfg.VideoPlaybackEnabled {
			continue
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// searchPeople queries each person separately, which gives OR semantics,
// and merges the results without duplicates.
func (s *Syncer) searchPeople(ctx context.Context, personIDs []string) ([]models.Asset, error) {
	seen := make(map[string]bool)
	var merged []models.Asset
	for _, id := range personIDs {
		assets, err := s.client.SearchAssets(ctx, SearchOptions{
			PersonIDs:     []string{id},
			IncludeVideos: s.cfg.VideoPlaybackEnabled,
		})
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			if !seen[a.ID] {
				seen[a.ID] = true
				merged = append(merged, a)
			}
		}
	}
	return merged, nil
}

// fetch downloads the asset unless a copy is already cached.
func (s *Syncer) fetch(ctx context.Context, asset models.Asset, path string) (bool, error) {
	if !s.cfg.ForceCacheRefresh {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return false, nil
		}
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return false, err
	}
	_, err = s.client.DownloadOriginal(ctx, asset.ID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return false, err
	}
	return true, nil
}

func localName(asset models.Asset) string {
	ext := strings.ToLower(filepath.Ext(asset.OriginalFileName))
	if ext == "" {
		ext = ".jpg"
	}
	return asset.ID + ext
}

func keepExisting(dir string, assets []models.Asset, ids []string) []string {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var keep []string
	for _, a := range assets {
		if !wanted[a.ID] {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, localName(a))); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		keep = append(keep, a.ID)
	}
	return keep
}

// AssetToPhoto converts a server asset into a library record stored at path.
func AssetToPhoto(a models.Asset, path string) models.Photo {
	photo := models.Photo{
		ID:              a.ID,
		Path:            path,
		Filename:        a.OriginalFileName,
		Width:           a.ExifImageWidth,
		Height:          a.ExifImageHeight,
		Kind:            models.KindImage,
		ExifOrientation: 1,
		Persons:         a.People,
		Keywords:        a.Tags,
	}

	switch {
	case strings.EqualFold(a.Type, "VIDEO"):
		photo.Kind = models.KindVideo
	case a.LivePhotoVideoID != "":
		photo.Kind = models.KindLivePhoto
	}

	taken := a.LocalDateTime
	if taken.IsZero() {
		taken = a.FileCreatedAt
	}
	if !taken.IsZero() {
		photo.TakenAt = &taken
	}

	if o, err := strconv.Atoi(strings.TrimSpace(a.Orientation)); err == nil && o >= 1 && o <= 8 {
		photo.ExifOrientation = o
	}
	if photo.ExifOrientation >= 5 {
		photo.Width, photo.Height = photo.Height, photo.Width
	}

	if a.Latitude != nil && a.Longitude != nil {
		photo.Location = &models.Location{Latitude: *a.Latitude, Longitude: *a.Longitude}
	}

	var place []string
	for _, part := range []string{a.City, a.State, a.Country} {
		if part = strings.TrimSpace(part); part != "" {
			place = append(place, part)
		}
	}
	photo.Place = strings.Join(place, ", ")
	return photo
}
