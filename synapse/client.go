// Package synapse is a small client for the Synapse REST API: login, table
// queries, folder listings and file downloads
package synapse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/bpc-regimens/logging"
	"github.com/giygas/bpc-regimens/metrics"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/juju/ratelimit"
	"golang.org/x/oauth2"
)

const DefaultEndpoint = "https://repo-prod.prod.sagebase.org"

// Config configures a Client
type Config struct {
	Endpoint          string
	AuthToken         string
	CacheDir          string
	RequestsPerSecond float64
	Timeout           time.Duration
	RetryMax          int
	Logger            *slog.Logger
}

// Client is an authenticated Synapse session. Create it with NewClient and
// call Login before anything else.
type Client struct {
	endpoint string
	cacheDir string
	timeout  time.Duration

	api    *retryablehttp.Client
	files  *retryablehttp.Client
	bucket *ratelimit.Bucket
	logger *slog.Logger

	pollInterval time.Duration
	profile      *UserProfile
}

// UserProfile is the part of the Synapse profile the tool uses
type UserProfile struct {
	OwnerID   string `json:"ownerId"`
	UserName  string `json:"userName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type errorResponse struct {
	Reason string `json:"reason"`
}

// NewClient builds a client. API calls carry the token as a bearer token;
// file downloads from pre-signed URLs do not.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AuthToken == "" {
		return nil, ErrNoCredentials
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 4
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "files"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Logger()
	}

	authed := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AuthToken,
		TokenType:   "Bearer",
	}))
	authed.Timeout = cfg.Timeout

	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		cacheDir:     cfg.CacheDir,
		timeout:      cfg.Timeout,
		api:          newRetryClient(authed, cfg),
		files:        newRetryClient(&http.Client{Timeout: cfg.Timeout}, cfg),
		bucket:       ratelimit.NewBucketWithRate(cfg.RequestsPerSecond, int64(cfg.RequestsPerSecond)+1),
		logger:       cfg.Logger,
		pollInterval: 500 * time.Millisecond,
	}, nil
}

func newRetryClient(httpClient *http.Client, cfg Config) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = cfg.Logger
	// Hand back the last response so the status code can be reported
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// throttle waits for a token of the outbound bucket
func (c *Client) throttle(ctx context.Context) error {
	wait := c.bucket.Take(1)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) requireLogin(op string) error {
	if c.profile == nil {
		return &FetchError{Op: op, Err: ErrNotLoggedIn}
	}
	return nil
}

// call sends a request to the API and decodes a 200/201 JSON body into out.
// It returns the status code so callers can act on 202.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) (int, error) {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, &FetchError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		payload = bytes.NewReader(encoded)
	}

	resp, err := c.send(ctx, c.api, op, method, c.endpoint+path, payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return resp.StatusCode, nil
}

// send throttles, performs the request and turns transport failures and
// non 2xx statuses into FetchErrors. The caller closes the body.
func (c *Client) send(ctx context.Context, hc *retryablehttp.Client, op, method, url string, body io.Reader) (*http.Response, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		metrics.SynapseRequestsTotal.WithLabelValues(op, "error").Inc()
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &FetchError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		metrics.SynapseRequestsTotal.WithLabelValues(op, "status_"+statusClass(resp.StatusCode)).Inc()
		return nil, &FetchError{Op: op, StatusCode: resp.StatusCode, Err: readReason(resp)}
	}

	metrics.SynapseRequestsTotal.WithLabelValues(op, "ok").Inc()
	return resp, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func readReason(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Reason != "" {
		return errors.New(er.Reason)
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return errors.New(text)
	}
	return errors.New(http.StatusText(resp.StatusCode))
}

// Login checks the token by fetching the caller's profile
func (c *Client) Login(ctx context.Context) (UserProfile, error) {
	var profile UserProfile
	if _, err := c.call(ctx, "login", http.MethodGet, "/repo/v1/userProfile", nil, &profile); err != nil {
		return UserProfile{}, err
	}

	c.profile = &profile
	c.logger.Info("Logged in to Synapse", "user", profile.UserName)
	return profile, nil
}

// Profile returns the logged in profile, if any
func (c *Client) Profile() (UserProfile, bool) {
	if c.profile == nil {
		return UserProfile{}, false
	}
	return *c.profile, true
}
