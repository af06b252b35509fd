package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent identifies the slideshow to Nominatim, whose usage
// policy requires one.
const DefaultUserAgent = "photoframe/1.0 (personal photo slideshow)"

// Nominatim is a Geocoder backed by an OpenStreetMap Nominatim endpoint.
type Nominatim struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

func NewNominatim(endpoint string) *Nominatim {
	return &Nominatim{
		endpoint:  endpoint,
		userAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimResponse struct {
	Address map[string]string `json:"address"`
}

// placeKeys is the preference order for the locality part of a place.
var placeKeys = []string{"city", "town", "village", "municipality", "county", "state"}

// Reverse returns "City, CC" for a coordinate, or "" when the response has
// no usable locality or country code.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("accept-language", "en")
	params.Set("zoom", "14")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode nominatim response: %w", err)
	}
	return formatPlace(data.Address), nil
}

func formatPlace(address map[string]string) string {
	var locality string
	for _, key := range placeKeys {
		if v := strings.TrimSpace(address[key]); v != "" {
			locality = v
			break
		}
	}
	cc := strings.ToUpper(strings.TrimSpace(address["country_code"]))
	if locality == "" || cc == "" {
		return ""
	}
	return locality + ", " + cc
}
