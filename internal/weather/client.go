// Package weather fetches current conditions from OpenWeatherMap with a
// Redis-backed cache.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("weather: api key not configured")

// Conditions summarises the weather at a location.
type Conditions struct {
	Location     string  `json:"location,omitempty"`
	TemperatureC float64 `json:"temperature_c"`
	Humidity     int     `json:"humidity"`
	Summary      string  `json:"summary"`
	Description  string  `json:"description"`
	WindSpeed    float64 `json:"wind_speed"`
}

// Client queries the current-weather endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      redis.Cmdable
	ttl        time.Duration
	group      singleflight.Group
	logger     *slog.Logger
}

// NewClient constructs the client. A nil cache disables caching.
func NewClient(baseURL, apiKey string, cache redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Current returns conditions at lat, lon. Results are cached per location
// rounded to two decimals.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	key := cacheKey(lat, lon)
	if cached, ok := c.fromCache(ctx, key); ok {
		return cached, nil
	}

	// The shared fetch outlives any single caller; the HTTP client timeout bounds it.
	results := c.group.DoChan(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		cond, err := c.fetch(fetchCtx, lat, lon)
		if err != nil {
			return nil, err
		}
		c.toCache(fetchCtx, key, cond)
		return cond, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		cond := *res.Val.(*Conditions)
		return &cond, nil
	}
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (*Conditions, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("weather: provider returned status %d", resp.StatusCode)
	}

	var payload struct {
		Name    string `json:"name"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	cond := &Conditions{
		Location:     payload.Name,
		TemperatureC: payload.Main.Temp,
		Humidity:     payload.Main.Humidity,
		WindSpeed:    payload.Wind.Speed,
	}
	if len(payload.Weather) > 0 {
		cond.Summary = payload.Weather[0].Main
		cond.Description = payload.Weather[0].Description
	}
	return cond, nil
}

func (c *Client) fromCache(ctx context.Context, key string) (*Conditions, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("weather cache read", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	var cond Conditions
	if err := json.Unmarshal(data, &cond); err != nil {
		return nil, false
	}
	return &cond, true
}

func (c *Client) toCache(ctx context.Context, key string, cond *Conditions) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(cond)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("weather cache write", slog.String("key", key), slog.Any("error", err))
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.2f:%.2f", lat, lon)
}
