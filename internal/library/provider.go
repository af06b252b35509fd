package library

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/downloads"
	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/models"
)

var (
	// ErrNoPhotos means nothing displayable matched the configuration.
	ErrNoPhotos = errors.New("no photos found")
	// ErrAlbumNotFound is returned when the album is missing and the
	// album_missing_policy is "fail".
	ErrAlbumNotFound = errors.New("album not found")
)

// Store is the part of the photo database the provider reads.
type Store interface {
	GetPhotos() ([]database.Row, error)
	FindAlbum(name string) (int64, bool, error)
	GetAlbumPhotos(albumID int64) ([]database.Row, error)
}

// Provider loads photo collections from the library according to the
// album and filter settings.
type Provider struct {
	store   Store
	cfg     *config.Config
	watcher *downloads.Watcher
	logger  *slog.Logger
	rng     *rand.Rand
}

// NewProvider creates a provider. watcher may be nil, in which case Refresh
// never reports new photos.
func NewProvider(store Store, cfg *config.Config, watcher *downloads.Watcher, logger *slog.Logger) *Provider {
	return &Provider{
		store:   store,
		cfg:     cfg,
		watcher: watcher,
		logger:  logging.NewComponentLogger(logger, "library"),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x70686f746f)),
	}
}

// Load builds a fresh collection. Filters win over the album when set.
func (p *Provider) Load() (*Collection, error) {
	photos, err := p.load()
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}
	if p.watcher != nil {
		p.watcher.Mark()
	}
	return NewCollection(photos), nil
}

func (p *Provider) load() ([]models.Photo, error) {
	filter := NewFilter(p.cfg)
	if filter.Active() {
		return p.loadFiltered(filter)
	}

	albumID, found, err := p.store.FindAlbum(p.cfg.AlbumName)
	if err != nil {
		return nil, fmt.Errorf("find album %q: %w", p.cfg.AlbumName, err)
	}
	if !found {
		if p.cfg.AlbumMissingPolicy == config.AlbumMissingFail {
			return nil, fmt.Errorf("%w: %q", ErrAlbumNotFound, p.cfg.AlbumName)
		}
		p.logger.Warn("album not found, using whole library", "album", p.cfg.AlbumName)
		return p.loadFiltered(filter)
	}

	rows, err := p.store.GetAlbumPhotos(albumID)
	if err != nil {
		return nil, fmt.Errorf("load album %q: %w", p.cfg.AlbumName, err)
	}
	photos := p.convert(rows, filter)
	if len(photos) == 0 {
		p.logger.Warn("album has no displayable photos, using fallback sample", "album", p.cfg.AlbumName)
		return p.fallbackSample()
	}
	p.logger.Info("loaded album", "album", p.cfg.AlbumName, "photos", len(photos))
	return photos, nil
}

func (p *Provider) loadFiltered(filter Filter) ([]models.Photo, error) {
	rows, err := p.store.GetPhotos()
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	photos := p.convert(rows, filter)
	if p.cfg.ShufflePhotos {
		p.shuffle(photos)
	}
	if filter.Active() && p.cfg.MaxPhotosLimit > 0 && len(photos) > p.cfg.MaxPhotosLimit {
		photos = photos[:p.cfg.MaxPhotosLimit]
	}
	p.logger.Info("loaded filtered photos", "matched", len(photos), "scanned", len(rows))
	return photos, nil
}

// fallbackSample draws a shuffled sample of the whole library. At most
// fallback_photo_limit rows are examined, and collection stops once
// min_fallback_photos displayable photos were found.
func (p *Provider) fallbackSample() ([]models.Photo, error) {
	rows, err := p.store.GetPhotos()
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	if p.cfg.ShufflePhotos {
		p.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	}
	if limit := p.cfg.FallbackPhotoLimit; limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	photos := p.convert(rows, Filter{})
	if want := p.cfg.MinFallbackPhotos; want > 0 && len(photos) > want {
		photos = photos[:want]
	}
	p.logger.Info("using fallback sample", "photos", len(photos), "examined", len(rows))
	return photos, nil
}

func (p *Provider) convert(rows []database.Row, filter Filter) []models.Photo {
	photos := make([]models.Photo, 0, len(rows))
	rejected := 0
	for i, row := range rows {
		photo := toPhoto(row)
		if !displayable(photo) {
			rejected++
			continue
		}
		if filter.Match(photo) {
			photos = append(photos, photo)
		}
		if n := p.cfg.ProgressLogInterval; n > 0 && (i+1)%n == 0 {
			p.logger.Debug("filtering progress", "processed", i+1, "total", len(rows), "matched", len(photos))
		}
	}
	if rejected > 0 {
		p.logger.Debug("rejected photos", "hidden_or_missing_path", rejected)
	}
	return photos
}

func (p *Provider) shuffle(photos []models.Photo) {
	p.rng.Shuffle(len(photos), func(i, j int) { photos[i], photos[j] = photos[j], photos[i] })
}

// Refresh reloads the collection when the download signal reports new
// photos and the check interval has elapsed. It returns the new collection
// and true only when a replacement is warranted.
func (p *Provider) Refresh(current *Collection) (*Collection, bool, error) {
	if p.watcher == nil {
		return nil, false, nil
	}
	interval := time.Duration(p.cfg.CacheRefreshCheckInterval) * time.Second
	if !p.watcher.ShouldCheck(interval) {
		return nil, false, nil
	}
	sig, ok := p.watcher.Check()
	if !ok {
		return nil, false, nil
	}

	photos, err := p.load()
	if err != nil {
		return nil, false, err
	}
	if len(photos) == 0 {
		return nil, false, nil
	}
	next := NewCollection(photos)
	p.logger.Info("collection refreshed",
		"previous", current.Len(), "now", next.Len(), "photos_added", sig.PhotosAdded)
	return next, true, nil
}
