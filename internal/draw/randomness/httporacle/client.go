// Package httporacle is a randomness source backed by the oracle HTTP API.
package httporacle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/platform/timeouts"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/api"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
)

// tokens are re-minted this long before they expire.
const tokenRefreshMargin = 30 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL string
	// Auth holds the shared key used to mint bearer tokens for Subject.
	Auth           auth.Config
	Subject        string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client talks to one oracle.
type Client struct {
	base    *url.URL
	cfg     Config
	http    *http.Client
	timeout time.Duration

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

var (
	_ randomness.Source         = (*Client)(nil)
	_ randomness.StatusReporter = (*Client)(nil)
	_ randomness.Canceler       = (*Client)(nil)
)

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("oracle base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse oracle base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("oracle base URL must be http or https: %s", raw)
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return nil, errors.New("oracle token subject is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = auth.DefaultTTL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = timeouts.OracleRequest
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, cfg: cfg, http: httpClient, timeout: timeout}, nil
}

// RequestRandomness submits entityHash. The tracking id is the oracle's
// request id.
func (c *Client) RequestRandomness(ctx context.Context, entityHash, saltDigest hashing.Digest) (randomness.TrackingID, error) {
	body := api.SubmitRequest{EntityHash: entityHash.String()}
	if !saltDigest.IsZero() {
		body.SaltDigest = saltDigest.String()
	}
	var out api.SubmitResponse
	if err := c.call(ctx, "request randomness", http.MethodPost, "/v1/requests", body, true, http.StatusCreated, entityHash, &out); err != nil {
		return "", err
	}
	if out.TrackingID == "" {
		return "", randomness.ErrUnavailable("request randomness", errors.New("oracle returned no tracking id"))
	}
	return randomness.TrackingID(out.TrackingID), nil
}

// FetchRandomness returns the delivered value or zero. Failures that could
// mean "not yet" are logged and reported as zero.
func (c *Client) FetchRandomness(ctx context.Context, entityHash hashing.Digest) (randomness.Value, error) {
	resp, err := c.randomness(ctx, entityHash)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return randomness.Value{}, ctxErr
		}
		if apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			return randomness.Value{}, err
		}
		log.Printf("oracle source: fetch %s: %v", entityHash.Hex(), err)
		return randomness.Value{}, nil
	}
	value, err := randomness.ParseValue(resp.Randomness)
	if err != nil {
		log.Printf("oracle source: fetch %s: malformed randomness %q", entityHash.Hex(), resp.Randomness)
		return randomness.Value{}, nil
	}
	return value, nil
}

// Status reports unknown, pending or fulfilled.
func (c *Client) Status(ctx context.Context, entityHash hashing.Digest) (randomness.Status, error) {
	resp, err := c.randomness(ctx, entityHash)
	if err != nil {
		return randomness.StatusUnknown, err
	}
	return randomness.ParseStatus(resp.Status), nil
}

// Cancel withdraws a pending request.
func (c *Client) Cancel(ctx context.Context, id randomness.TrackingID) (bool, error) {
	var out api.CancelResponse
	path := "/v1/requests/" + url.PathEscape(string(id))
	if err := c.call(ctx, "cancel request", http.MethodDelete, path, nil, true, http.StatusOK, hashing.ZeroDigest, &out); err != nil {
		return false, err
	}
	return out.Cancelled, nil
}

// Record returns the full commitment record for a hash or request id.
func (c *Client) Record(ctx context.Context, key string) (api.RecordResponse, error) {
	var out api.RecordResponse
	path := "/v1/records/" + url.PathEscape(strings.TrimSpace(key))
	if err := c.call(ctx, "get record", http.MethodGet, path, nil, false, http.StatusOK, hashing.ZeroDigest, &out); err != nil {
		return api.RecordResponse{}, err
	}
	return out, nil
}

// Events returns one page of the oracle's audit trail.
func (c *Client) Events(ctx context.Context, filter string, after int64, pageSize int) (api.EventsResponse, error) {
	query := url.Values{}
	if strings.TrimSpace(filter) != "" {
		query.Set("filter", filter)
	}
	if after > 0 {
		query.Set("after", strconv.FormatInt(after, 10))
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/v1/events"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out api.EventsResponse
	if err := c.call(ctx, "list events", http.MethodGet, path, nil, false, http.StatusOK, hashing.ZeroDigest, &out); err != nil {
		return api.EventsResponse{}, err
	}
	return out, nil
}

func (c *Client) randomness(ctx context.Context, entityHash hashing.Digest) (api.RandomnessResponse, error) {
	var out api.RandomnessResponse
	path := "/v1/randomness/" + entityHash.Hex()
	if err := c.call(ctx, "fetch randomness", http.MethodGet, path, nil, false, http.StatusOK, entityHash, &out); err != nil {
		return api.RandomnessResponse{}, err
	}
	return out, nil
}

// call performs one request and decodes a want-status response into out.
// Other statuses are mapped to source errors.
func (c *Client) call(ctx context.Context, op, method, path string, body any, authenticated bool, want int, entityHash hashing.Digest, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}
	pathPart, rawQuery, _ := strings.Cut(path, "?")
	target := c.base.JoinPath(pathPart)
	target.RawQuery = rawQuery
	req, err := http.NewRequestWithContext(callCtx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token, err := c.bearer()
		if err != nil {
			return fmt.Errorf("%s: mint token: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return randomness.ErrUnavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return mapStatus(op, resp.StatusCode, apiErr, entityHash)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return randomness.ErrUnavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) bearer() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if c.token != "" && now.Add(tokenRefreshMargin).Before(c.tokenExp) {
		return c.token, nil
	}
	token, err := auth.Issue(c.cfg.Auth, c.cfg.Subject, c.cfg.TokenTTL)
	if err != nil {
		return "", err
	}
	c.token = token
	c.tokenExp = now.Add(c.cfg.TokenTTL)
	return token, nil
}

type statusError struct {
	status int
	body   api.ErrorResponse
}

func (e *statusError) Error() string {
	if e.body.Message != "" {
		return fmt.Sprintf("oracle status %d: %s: %s", e.status, e.body.Code, e.body.Message)
	}
	return fmt.Sprintf("oracle status %d", e.status)
}

// mapStatus translates a non-success HTTP status into a source error.
func mapStatus(op string, status int, body api.ErrorResponse, entityHash hashing.Digest) error {
	se := &statusError{status: status, body: body}
	switch {
	case status == http.StatusBadRequest:
		reason := se.body.Message
		if reason == "" {
			reason = http.StatusText(status)
		}
		return randomness.ErrInvalidInput(reason)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return randomness.ErrUnauthorized(op, se)
	case status == http.StatusNotFound:
		return apperrors.Wrap(apperrors.CodeNotFound, op+": not found", se)
	case status == http.StatusConflict:
		return randomness.ErrAlreadyProcessed(entityHash, se)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return randomness.ErrUnavailable(op, se)
	}
	return fmt.Errorf("%s: unexpected %w", op, se)
}
