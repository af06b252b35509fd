package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type mockGeocoder struct {
	calls  int
	places map[string]string
	err    error
}

func (m *mockGeocoder) Reverse(_ context.Context, lat, lon float64) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.places[Key(lat, lon)], nil
}

func TestKeyRounding(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{37.7749, -122.4194, "37.7749,-122.4194"},
		{37.77494, -122.41936, "37.7749,-122.4194"},
		{10, -20.5, "10.0,-20.5"},
		{0.00001, 0, "0.0,0.0"},
	}
	for _, tt := range tests {
		if got := Key(tt.lat, tt.lon); got != tt.want {
			t.Errorf("Key(%v, %v) = %q, want %q", tt.lat, tt.lon, got, tt.want)
		}
	}
}

func TestLookupCachesHits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	mock := &mockGeocoder{places: map[string]string{"37.7749,-122.4194": "San Francisco, US"}}
	c := NewCache(path, mock, nil)

	first, ok := c.Lookup(context.Background(), 37.7749, -122.4194)
	if !ok || first != "San Francisco, US" {
		t.Fatalf("first lookup = %q, %v", first, ok)
	}
	second, ok := c.Lookup(context.Background(), 37.77491, -122.41942)
	if !ok || second != "San Francisco, US" {
		t.Fatalf("second lookup = %q, %v", second, ok)
	}
	if mock.calls != 1 {
		t.Fatalf("geocoder called %d times, want 1", mock.calls)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cache not flushed: %v", err)
	}
	var onDisk map[string]*string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("cache file is not JSON: %v", err)
	}
	if v := onDisk["37.7749,-122.4194"]; v == nil || *v != "San Francisco, US" {
		t.Fatalf("unexpected cache file %s", data)
	}
}

func TestLookupCachesNegativeResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	mock := &mockGeocoder{err: errors.New("timeout")}
	c := NewCache(path, mock, nil)
	c.SetMinInterval(0)

	for i := 0; i < 3; i++ {
		if place, ok := c.Lookup(context.Background(), 1.5, 2.5); ok || place != "" {
			t.Fatalf("expected no place, got %q", place)
		}
	}
	if mock.calls != 1 {
		t.Fatalf("failed lookup retried: %d calls", mock.calls)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "{\n  \"1.5,2.5\": null\n}" {
		t.Fatalf("negative result should persist as null, got %s", data)
	}

	_, found, cached := c.Peek(1.5, 2.5)
	if found || !cached {
		t.Fatalf("Peek = found %v cached %v", found, cached)
	}
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	mock := &mockGeocoder{places: map[string]string{"48.8566,2.3522": "Paris, FR"}}
	NewCache(path, mock, nil).Lookup(context.Background(), 48.8566, 2.3522)

	other := &mockGeocoder{}
	c := NewCache(path, other, nil)
	if place, ok := c.Lookup(context.Background(), 48.8566, 2.3522); !ok || place != "Paris, FR" {
		t.Fatalf("reloaded lookup = %q, %v", place, ok)
	}
	if other.calls != 0 {
		t.Fatal("reloaded cache should not call the geocoder")
	}

	entries := c.Entries()
	if len(entries) != 1 || !entries[0].Found {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("cache not emptied")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("cache file should be removed, stat err = %v", err)
	}
}

func TestCorruptCacheStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c := NewCache(path, nil, nil); c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestLookupIsRateLimited(t *testing.T) {
	mock := &mockGeocoder{}
	c := NewCache("", mock, nil)
	c.SetMinInterval(100 * time.Millisecond)

	start := time.Now()
	c.Lookup(context.Background(), 1, 1)
	c.Lookup(context.Background(), 2, 2)
	c.Lookup(context.Background(), 3, 3)
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Fatalf("three lookups took %v, expected spacing", elapsed)
	}
	if mock.calls != 3 {
		t.Fatalf("calls = %d", mock.calls)
	}
}

func TestNominatimReverse(t *testing.T) {
	var gotQuery map[string]string
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		switch r.URL.Query().Get("lat") {
		case "37.7749":
			w.Write([]byte(`{"address": {"city": "San Francisco", "state": "California", "country_code": "us"}}`))
		case "1":
			w.Write([]byte(`{"address": {"village": "Smallville", "county": "Lowell", "country_code": "us"}}`))
		case "2":
			w.Write([]byte(`{"address": {"state": "Nowhere"}}`))
		default:
			http.Error(w, "bad", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL)
	place, err := n.Reverse(context.Background(), 37.7749, -122.4194)
	if err != nil || place != "San Francisco, US" {
		t.Fatalf("Reverse = %q, %v", place, err)
	}
	if gotAgent == "" || gotQuery["zoom"] != "14" || gotQuery["accept-language"] != "en" || gotQuery["addressdetails"] != "1" {
		t.Fatalf("unexpected request: agent=%q query=%v", gotAgent, gotQuery)
	}

	if place, _ := n.Reverse(context.Background(), 1, 0); place != "Smallville, US" {
		t.Fatalf("village fallback = %q", place)
	}
	if place, err := n.Reverse(context.Background(), 2, 0); err != nil || place != "" {
		t.Fatalf("missing country code should give no place: %q %v", place, err)
	}
	if _, err := n.Reverse(context.Background(), 3, 0); err == nil {
		t.Fatal("expected error on server failure")
	}
}
