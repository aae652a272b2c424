package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent        = "rationalize-dashboard"
	defaultTimeout          = 5 * time.Second
)

// NominatimClient клиент публичного геокодера Nominatim (OpenStreetMap).
// Политика сервиса — не более одного запроса в секунду, поэтому клиент
// несет собственный rate limiter.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NominatimOption настройка клиента
type NominatimOption func(*NominatimClient)

// WithBaseURL переопределяет адрес сервиса (для тестов и self-hosted)
func WithBaseURL(baseURL string) NominatimOption {
	return func(c *NominatimClient) { c.baseURL = baseURL }
}

// WithUserAgent задает User-Agent (Nominatim требует осмысленный)
func WithUserAgent(userAgent string) NominatimOption {
	return func(c *NominatimClient) { c.userAgent = userAgent }
}

// WithTimeout задает таймаут одного запроса
func WithTimeout(timeout time.Duration) NominatimOption {
	return func(c *NominatimClient) { c.httpClient.Timeout = timeout }
}

// NewNominatimClient создает клиент с лимитом 1 запрос в секунду
func NewNominatimClient(opts ...NominatimOption) *NominatimClient {
	client := &NominatimClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultNominatimBaseURL,
		userAgent:  defaultUserAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// nominatimResult элемент ответа /search
type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode запрашивает координаты названия места
func (c *NominatimClient) Geocode(name string) (Point, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return Point{}, false, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	query := url.Values{}
	query.Set("q", name)
	query.Set("format", "json")
	query.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return Point{}, false, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Point{}, false, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, false, fmt.Errorf("geocode request returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Point{}, false, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return Point{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	return Point{Lat: lat, Lon: lon}, true, nil
}
