// Package analysis forwards change-detection requests to the remote
// image-analysis backend.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// ErrInvalidRange is returned when Before is later than After.
var ErrInvalidRange = errors.New("analysis: before date is after the after date")

// Client calls the analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	validate   *validator.Validate
}

// NewClient constructs a client. A non-positive rps disables rate limiting.
func NewClient(baseURL string, timeout time.Duration, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:  rate.NewLimiter(limit, 1),
		validate: validator.New(),
	}
}

// Validate checks coordinates, date formats and ordering.
func (c *Client) Validate(req Request) error {
	if err := c.validate.Struct(req); err != nil {
		return err
	}
	before, _ := time.Parse(DateLayout, req.Before)
	after, _ := time.Parse(DateLayout, req.After)
	if before.After(after) {
		return ErrInvalidRange
	}
	return nil
}

// Analyze runs change detection for module over the request range.
func (c *Client) Analyze(ctx context.Context, module string, req Request) (*Result, error) {
	if !ValidModule(module) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	if err := c.Validate(req); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var result Result
	if err := c.do(ctx, "/analyze", "application/json", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	result.Module = module
	return &result, nil
}

// CompareSatellite compares satellite imagery at the start and end dates.
func (c *Client) CompareSatellite(ctx context.Context, req Request) (*Comparison, error) {
	if err := c.Validate(req); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("latitude", strconv.FormatFloat(req.Lat, 'f', -1, 64))
	form.Set("longitude", strconv.FormatFloat(req.Lon, 'f', -1, 64))
	form.Set("start_date", req.Before)
	form.Set("end_date", req.After)

	var cmp Comparison
	if err := c.do(ctx, "/satellite/compare", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("analysis: rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analysis: request %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("analysis: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Detail: detail(payload)}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("analysis: decode %s: %w", path, err)
	}
	return nil
}

// detail extracts the FastAPI error detail, which is either a string or a
// list of validation errors.
func detail(payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
