package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "family-atlas/1.0"
)

// Address is the part of a reverse geocoding answer the resolver reads.
type Address struct {
	Country  string `json:"country"`
	County   string `json:"county"`
	Province string `json:"province"`
	State    string `json:"state"`
	City     string `json:"city"`
}

// Geocoder turns a coordinate into a postal address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

var ErrNoResult = errors.New("geocoder returned no result")

// nominatimResponse is the jsonv2 reverse endpoint payload.
type nominatimResponse struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error"`
}

// NominatimClient queries an OpenStreetMap Nominatim server.
type NominatimClient struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// NewNominatimClient returns a client honoring the public server's policy
// of one request per second.
func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &NominatimClient{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return Address{}, fmt.Errorf("geocoding rate limit: %w", err)
		}
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("addressdetails", "1")
	q.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Address{}, fmt.Errorf("build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Address{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("geocoding API returned status: %d", resp.StatusCode)
	}

	var result nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Address{}, fmt.Errorf("failed to parse geocoding response: %w", err)
	}
	if result.Error != "" {
		return Address{}, fmt.Errorf("%w: %s", ErrNoResult, result.Error)
	}
	return result.Address, nil
}
