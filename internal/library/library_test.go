package library

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/downloads"
	"github.com/jamo/photoframe/internal/models"
	"github.com/jamo/photoframe/internal/testsupport"
)

type fakeStore struct {
	rows   []database.Row
	albums map[string][]database.Row
}

func (s *fakeStore) GetPhotos() ([]database.Row, error) { return s.rows, nil }

func (s *fakeStore) albumNames() []string {
	names := make([]string, 0, len(s.albums))
	for name := range s.albums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *fakeStore) FindAlbum(name string) (int64, bool, error) {
	for i, albumName := range s.albumNames() {
		if albumName == name {
			return int64(i + 1), true, nil
		}
	}
	return 0, false, nil
}

func (s *fakeStore) GetAlbumPhotos(albumID int64) ([]database.Row, error) {
	names := s.albumNames()
	if albumID < 1 || int(albumID) > len(names) {
		return nil, nil
	}
	return s.albums[names[albumID-1]], nil
}

type seqRand struct {
	values []int
	next   int
}

func (r *seqRand) IntN(n int) int {
	v := r.values[r.next%len(r.values)]
	r.next++
	return v % n
}

func row(id string, opts ...func(*database.Row)) database.Row {
	r := database.Row{ID: id, Path: "/photos/" + id + ".jpg"}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func withPersons(names ...string) func(*database.Row) {
	return func(r *database.Row) {
		data, _ := json.Marshal(names)
		r.PersonsJSON = sql.NullString{String: string(data), Valid: true}
	}
}

func withPlace(place string) func(*database.Row) {
	return func(r *database.Row) { r.Place = sql.NullString{String: place, Valid: true} }
}

func hidden(r *database.Row) { r.Hidden = true }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ShufflePhotos = false
	return &cfg
}

func TestToPhotoDefaults(t *testing.T) {
	p := toPhoto(database.Row{ID: "x", Path: "/a/b/IMG_1.jpg"})
	if p.Filename != "IMG_1.jpg" {
		t.Fatalf("filename default = %q", p.Filename)
	}
	if p.Kind != models.KindImage || p.ExifOrientation != 1 {
		t.Fatalf("kind/orientation defaults = %q/%d", p.Kind, p.ExifOrientation)
	}
	if p.TakenAt != nil || p.Location != nil {
		t.Fatal("absent columns must stay absent")
	}

	taken := time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC)
	p = toPhoto(database.Row{
		ID: "y", Path: "/y.mov",
		Width:           sql.NullInt64{Int64: 1080, Valid: true},
		Height:          sql.NullInt64{Int64: 1920, Valid: true},
		TakenAt:         sql.NullTime{Time: taken, Valid: true},
		Latitude:        sql.NullFloat64{Float64: 1.5, Valid: true},
		Longitude:       sql.NullFloat64{Float64: 2.5, Valid: true},
		Kind:            sql.NullString{String: "VIDEO", Valid: true},
		ExifOrientation: sql.NullInt64{Int64: 42, Valid: true},
	})
	if p.Orientation() != models.Portrait || p.Kind != models.KindVideo {
		t.Fatalf("unexpected mapping %+v", p)
	}
	if p.ExifOrientation != 1 {
		t.Fatalf("out-of-range orientation should default, got %d", p.ExifOrientation)
	}
	if p.TakenAt == nil || !p.TakenAt.Equal(taken) || p.Location == nil || p.Location.Longitude != 2.5 {
		t.Fatalf("optional fields lost: %+v", p)
	}
}

func TestFilterMatch(t *testing.T) {
	photo := models.Photo{
		Persons:  []string{"Alice Smith", "Bob Jones"},
		Place:    "San Francisco, California, US",
		Keywords: []string{"Beach", "Summer"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"inactive", Filter{}, true},
		{"person substring", Filter{People: []string{"alice"}}, true},
		{"people OR", Filter{People: []string{"carol", "bob"}, PeopleLogic: "OR"}, true},
		{"people AND missing", Filter{People: []string{"alice", "carol"}, PeopleLogic: "AND"}, false},
		{"people AND present", Filter{People: []string{"ALICE", "jones"}, PeopleLogic: "AND"}, true},
		{"min people", Filter{RequirePeople: true, MinPeople: 3}, false},
		{"place OR", Filter{Places: []string{"paris", "francisco"}, PlacesLogic: "OR"}, true},
		{"place AND", Filter{Places: []string{"paris", "francisco"}, PlacesLogic: "AND"}, false},
		{"keyword", Filter{Keywords: []string{"beach"}}, true},
		{"keyword exact only", Filter{Keywords: []string{"bea"}}, false},
		{"overall AND", Filter{People: []string{"alice"}, Keywords: []string{"winter"}, OverallLogic: "AND"}, false},
		{"overall OR", Filter{People: []string{"alice"}, Keywords: []string{"winter"}, OverallLogic: "OR"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(photo); got != tt.want {
				t.Fatalf("Match() = %v, want %v", got, tt.want)
			}
		})
	}

	if (Filter{People: []string{"alice"}}).Match(models.Photo{}) {
		t.Fatal("photo without people must not match a people filter")
	}
}

func TestCollectionRandomSelection(t *testing.T) {
	c := NewCollection([]models.Photo{
		{ID: "land", Width: 400, Height: 300},
		{ID: "portrait", Width: 300, Height: 400},
		{ID: "video", Width: 300, Height: 400, Kind: models.KindVideo},
		{ID: "portrait2", Width: 300, Height: 400, Kind: models.KindImage},
	})

	if c.Len() != 4 || c.PortraitImageCount() != 2 {
		t.Fatalf("Len=%d portraits=%d", c.Len(), c.PortraitImageCount())
	}
	if i, ok := c.IndexOf("video"); !ok || i != 2 {
		t.Fatalf("IndexOf = %d, %v", i, ok)
	}

	r := &seqRand{values: []int{2}}
	if i, ok := c.RandomIndex(r); !ok || i != 2 {
		t.Fatalf("RandomIndex = %d, %v", i, ok)
	}
	r = &seqRand{values: []int{0, 1}}
	first, _ := c.RandomPortraitImageIndex(r)
	second, _ := c.RandomPortraitImageIndex(r)
	if first != 1 || second != 3 {
		t.Fatalf("portrait picks = %d, %d", first, second)
	}

	var empty *Collection
	if _, ok := empty.RandomIndex(r); ok {
		t.Fatal("nil collection must not yield an index")
	}
	if _, ok := empty.At(0); ok {
		t.Fatal("nil collection must not yield a photo")
	}
}

func TestProviderLoadsAlbum(t *testing.T) {
	store := &fakeStore{
		rows: []database.Row{row("a"), row("b"), row("c")},
		albums: map[string][]database.Row{
			"photoframe": {row("a"), row("h", hidden), {ID: "nopath"}},
		},
	}
	p := NewProvider(store, testConfig(), nil, nil)

	c, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected hidden and pathless photos excluded, got %d", c.Len())
	}
	if ph, _ := c.At(0); ph.ID != "a" {
		t.Fatalf("unexpected photo %q", ph.ID)
	}
}

func TestProviderAlbumMissingPolicy(t *testing.T) {
	store := &fakeStore{rows: []database.Row{row("a"), row("b")}}

	cfg := testConfig()
	c, err := NewProvider(store, cfg, nil, nil).Load()
	if err != nil {
		t.Fatalf("fallback policy should load library: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected whole library, got %d", c.Len())
	}

	cfg.AlbumMissingPolicy = config.AlbumMissingFail
	if _, err := NewProvider(store, cfg, nil, nil).Load(); !errors.Is(err, ErrAlbumNotFound) {
		t.Fatalf("expected ErrAlbumNotFound, got %v", err)
	}
}

func TestProviderEmptyAlbumUsesFallbackSample(t *testing.T) {
	var rows []database.Row
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		rows = append(rows, row(id))
	}
	store := &fakeStore{rows: rows, albums: map[string][]database.Row{"photoframe": nil}}
	cfg := testConfig()
	cfg.FallbackPhotoLimit = 3

	c, err := NewProvider(store, cfg, nil, nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("expected fallback sample of 3, got %d", c.Len())
	}
}

func TestFallbackSampleStopsAtMinimum(t *testing.T) {
	rows := []database.Row{row("a", hidden), row("b"), row("c"), row("d"), row("e")}
	store := &fakeStore{rows: rows, albums: map[string][]database.Row{"photoframe": nil}}

	tests := []struct {
		name    string
		limit   int
		minimum int
		want    []string
	}{
		{name: "minimum reached", limit: 5, minimum: 2, want: []string{"b", "c"}},
		{name: "limit counts rejected rows", limit: 3, minimum: 10, want: []string{"b", "c"}},
		{name: "whole library", limit: 10, minimum: 10, want: []string{"b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.FallbackPhotoLimit = tt.limit
			cfg.MinFallbackPhotos = tt.minimum

			c, err := NewProvider(store, cfg, nil, nil).Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			var got []string
			for _, p := range c.Photos() {
				got = append(got, p.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("sample = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderFilters(t *testing.T) {
	store := &fakeStore{rows: []database.Row{
		row("a", withPersons("Alice")),
		row("b", withPersons("Bob"), withPlace("Paris, FR")),
		row("c", withPersons("Alice"), hidden),
	}}
	cfg := testConfig()
	cfg.FilterPeopleNames = []string{"alice"}

	c, err := NewProvider(store, cfg, nil, nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected one match, got %d", c.Len())
	}

	cfg.FilterPeopleNames = []string{"nobody"}
	if _, err := NewProvider(store, cfg, nil, nil).Load(); !errors.Is(err, ErrNoPhotos) {
		t.Fatalf("expected ErrNoPhotos, got %v", err)
	}
}

func TestProviderRefreshFollowsDownloadSignal(t *testing.T) {
	signalPath := filepath.Join(t.TempDir(), "signal.json")
	store := &fakeStore{rows: []database.Row{row("a")}}
	cfg := testConfig()
	cfg.CacheRefreshCheckInterval = 0
	watcher := downloads.NewWatcher(signalPath, nil)
	p := NewProvider(store, cfg, watcher, nil)

	c, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, replaced, err := p.Refresh(c); replaced || err != nil {
		t.Fatalf("no signal should mean no refresh: %v %v", replaced, err)
	}

	time.Sleep(10 * time.Millisecond)
	store.rows = append(store.rows, row("b"))
	if _, err := downloads.WriteSignal(signalPath, 1, 2); err != nil {
		t.Fatalf("WriteSignal: %v", err)
	}
	next, replaced, err := p.Refresh(c)
	if err != nil || !replaced {
		t.Fatalf("expected refresh, got %v %v", replaced, err)
	}
	if next.Len() != 2 {
		t.Fatalf("expected 2 photos after refresh, got %d", next.Len())
	}
}

func TestScanDescribesImages(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteJPEG(t, filepath.Join(root, "Trips", "Beach", "tall.jpg"), 30, 60)
	testsupport.WriteJPEG(t, filepath.Join(root, "wide.jpg"), 60, 30)
	testsupport.WriteFile(t, filepath.Join(root, "clip.mov"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), 64)
	testsupport.WriteJPEG(t, filepath.Join(root, ".hidden", "secret.jpg"), 10, 10)
	if err := os.WriteFile(filepath.Join(root, "broken.jpg"), []byte("not a jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	photos, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	byName := map[string]models.Photo{}
	for _, p := range photos {
		byName[p.Filename] = p
	}
	if len(byName) != 3 {
		t.Fatalf("expected 3 media files, got %v", byName)
	}

	tall := byName["tall.jpg"]
	if tall.Orientation() != models.Portrait || tall.Kind != models.KindImage {
		t.Fatalf("unexpected tall photo %+v", tall)
	}
	if len(tall.Keywords) != 2 || tall.Keywords[0] != "Trips" || tall.Keywords[1] != "Beach" {
		t.Fatalf("folder keywords = %v", tall.Keywords)
	}
	if byName["wide.jpg"].Orientation() != models.Landscape {
		t.Fatal("wide photo should be landscape")
	}
	if byName["clip.mov"].Kind != models.KindVideo {
		t.Fatal("mov should be a video")
	}

	again, _ := Scan(root, nil)
	for _, p := range again {
		if p.Filename == "tall.jpg" && p.ID != tall.ID {
			t.Fatal("photo IDs must be stable across scans")
		}
	}
}
