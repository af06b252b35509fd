package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/models"
)

type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
	pageSize int
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logging.NewComponentLogger(logger, "immich"),
		pageSize: 1000,
	}
}

// SearchOptions narrows a metadata search.
type SearchOptions struct {
	PersonIDs     []string
	TakenAfter    time.Time
	IncludeVideos bool
}

// RemoteAlbum is an album as listed by the server.
type RemoteAlbum struct {
	ID         string `json:"id"`
	AlbumName  string `json:"albumName"`
	AssetCount int    `json:"assetCount"`
}

// Person is a recognised face cluster on the server.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API request %s %s failed with status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SearchAssets pages through /api/search/metadata.
func (c *Client) SearchAssets(ctx context.Context, opts SearchOptions) ([]models.Asset, error) {
	var allAssets []models.Asset
	page := 1

	for {
		requestBody := map[string]any{
			"page":       page,
			"size":       c.pageSize,
			"withExif":   true,
			"withPeople": true,
			"isVisible":  true,
		}
		if !opts.IncludeVideos {
			requestBody["type"] = "IMAGE"
		}
		if len(opts.PersonIDs) > 0 {
			requestBody["personIds"] = opts.PersonIDs
		}
		if !opts.TakenAfter.IsZero() {
			requestBody["takenAfter"] = opts.TakenAfter.Format(time.RFC3339)
		}

		var response struct {
			Assets struct {
				Items    []assetResponse `json:"items"`
				NextPage *string         `json:"nextPage"`
			} `json:"assets"`
		}
		if err := c.doJSON(ctx, http.MethodPost, "/api/search/metadata", requestBody, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Assets.Items {
			allAssets = append(allAssets, parseAsset(item))
		}
		c.logger.Debug("fetched page", "page", page, "assets", len(response.Assets.Items), "total", len(allAssets))

		if response.Assets.NextPage == nil || len(response.Assets.Items) < c.pageSize {
			break
		}
		page++
	}

	return allAssets, nil
}

// ListAlbums returns every album visible to the API key.
func (c *Client) ListAlbums(ctx context.Context) ([]RemoteAlbum, error) {
	var albums []RemoteAlbum
	if err := c.doJSON(ctx, http.MethodGet, "/api/albums", nil, &albums); err != nil {
		return nil, err
	}
	return albums, nil
}

// AlbumAssets returns the assets of one album.
func (c *Client) AlbumAssets(ctx context.Context, albumID string) ([]models.Asset, error) {
	var response struct {
		AlbumName string          `json:"albumName"`
		Assets    []assetResponse `json:"assets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/albums/"+url.PathEscape(albumID), nil, &response); err != nil {
		return nil, err
	}
	assets := make([]models.Asset, 0, len(response.Assets))
	for _, item := range response.Assets {
		assets = append(assets, parseAsset(item))
	}
	return assets, nil
}

// SearchPeople looks up people by name.
func (c *Client) SearchPeople(ctx context.Context, name string) ([]Person, error) {
	var people []Person
	path := "/api/search/person?name=" + url.QueryEscape(name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &people); err != nil {
		return nil, err
	}
	return people, nil
}

// DownloadOriginal streams the original file of an asset into w and
// returns the number of bytes written.
func (c *Client) DownloadOriginal(ctx context.Context, assetID string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/assets/"+url.PathEscape(assetID)+"/original", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("download %s failed with status %d: %s", assetID, resp.StatusCode, string(body))
	}
	return io.Copy(w, resp.Body)
}

type assetResponse struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	OriginalPath     string    `json:"originalPath"`
	OriginalFileName string    `json:"originalFileName"`
	FileCreatedAt    time.Time `json:"fileCreatedAt"`
	LocalDateTime    time.Time `json:"localDateTime"`
	IsArchived       bool      `json:"isArchived"`
	LivePhotoVideoID *string   `json:"livePhotoVideoId"`
	ExifInfo         *struct {
		ExifImageWidth  int      `json:"exifImageWidth"`
		ExifImageHeight int      `json:"exifImageHeight"`
		Orientation     string   `json:"orientation"`
		Latitude        *float64 `json:"latitude"`
		Longitude       *float64 `json:"longitude"`
		City            string   `json:"city"`
		State           string   `json:"state"`
		Country         string   `json:"country"`
	} `json:"exifInfo"`
	People []struct {
		Name string `json:"name"`
	} `json:"people"`
	Tags []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"tags"`
}

func parseAsset(resp assetResponse) models.Asset {
	asset := models.Asset{
		ID:               resp.ID,
		Type:             resp.Type,
		OriginalPath:     resp.OriginalPath,
		OriginalFileName: resp.OriginalFileName,
		FileCreatedAt:    resp.FileCreatedAt,
		LocalDateTime:    resp.LocalDateTime,
		IsArchived:       resp.IsArchived,
	}
	if resp.LivePhotoVideoID != nil {
		asset.LivePhotoVideoID = *resp.LivePhotoVideoID
	}

	if resp.ExifInfo != nil {
		asset.ExifImageWidth = resp.ExifInfo.ExifImageWidth
		asset.ExifImageHeight = resp.ExifInfo.ExifImageHeight
		asset.Orientation = resp.ExifInfo.Orientation
		asset.Latitude = resp.ExifInfo.Latitude
		asset.Longitude = resp.ExifInfo.Longitude
		asset.City = resp.ExifInfo.City
		asset.State = resp.ExifInfo.State
		asset.Country = resp.ExifInfo.Country
	}

	for _, p := range resp.People {
		if name := strings.TrimSpace(p.Name); name != "" {
			asset.People = append(asset.People, name)
		}
	}
	for _, tag := range resp.Tags {
		name := tag.Value
		if name == "" {
			name = tag.Name
		}
		if name = strings.TrimSpace(name); name != "" {
			asset.Tags = append(asset.Tags, name)
		}
	}

	return asset
}
