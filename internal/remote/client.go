// Package remote provides clients for the authoritative remote store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/wire"
)

const (
	restPrefix      = "/rest/v1/"
	maxErrorBody    = 4 << 10
	defaultTimeout  = 30 * time.Second
	preferUpsert    = "resolution=merge-duplicates,return=minimal"
	preferReturning = "return=representation"
)

// Config holds remote store connection settings.
type Config struct {
	// HTTPClient is the base client; the bearer token is layered on top.
	HTTPClient  *http.Client
	URL         string
	APIKey      string
	AccessToken string
	Timeout     time.Duration
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: remote URL is required", common.ErrMissingConfig)
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: remote URL %q", common.ErrInvalidConfig, c.URL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: remote API key is required", common.ErrMissingConfig)
	}
	return nil
}

// Client talks to a PostgREST endpoint. It implements service.RemoteStore.
type Client struct {
	http      *http.Client
	logger    *slog.Logger
	retryOpts common.RetryOptions
	baseURL   string
	apiKey    string
}

var _ service.RemoteStore = (*Client)(nil)

// NewClient creates a new remote client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Without a user session the anon key doubles as the bearer token.
	token := cfg.AccessToken
	if token == "" {
		token = cfg.APIKey
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient.Timeout = timeout

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		logger:  common.ComponentLogger("remote"),
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// BulkUpsert inserts or merges rows keyed by id.
func (c *Client) BulkUpsert(ctx context.Context, table model.Table, rows []wire.Row) error {
	if len(rows) == 0 {
		return nil
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode %s rows: %w", table, err)
	}

	resp, err := c.do(ctx, http.MethodPost, table, nil, body, preferUpsert)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	c.logger.Debug("Upserted rows", "table", table, "count", len(rows))
	return nil
}

// Delete removes one row by id. A delete that matches nothing returns
// ErrNotFound so callers can decide whether that is success.
func (c *Client) Delete(ctx context.Context, table model.Table, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", common.ErrInvalidEntity)
	}

	query := url.Values{"id": {"eq." + id}}
	resp, err := c.do(ctx, http.MethodDelete, table, query, nil, preferReturning)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var deleted []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&deleted); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s delete response: %w", table, err)
	}
	if len(deleted) == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// SelectAll returns every row of table owned by userID. Transient failures
// are retried before giving up.
func (c *Client) SelectAll(ctx context.Context, table model.Table, userID string) ([]wire.Row, error) {
	query := url.Values{"select": {"*"}}
	if userID != "" {
		query.Set(wire.UserColumn, "eq."+userID)
	}

	var rows []wire.Row
	err := common.WithRetry(ctx, func() error {
		resp, err := c.do(ctx, http.MethodGet, table, query, nil, "")
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		rows = nil
		if err := dec.Decode(&rows); err != nil {
			return fmt.Errorf("failed to decode %s rows: %w", table, err)
		}
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched rows", "table", table, "count", len(rows))
	return rows, nil
}

// Ping checks that the REST endpoint answers. Any response below 500 counts
// as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+restPrefix, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("ping failed: %w", err), Retryable: true}
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return classify("", resp.StatusCode, "")
	}
	return nil
}

// do sends one request and returns the response when it succeeded. The
// caller closes the body.
func (c *Client) do(ctx context.Context, method string, table model.Table, query url.Values, body []byte, prefer string) (*http.Response, error) {
	remoteTable, err := wire.RemoteTable(table)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + restPrefix + remoteTable
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	c.logger.Debug("Making remote request", "method", method, "table", table)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("%s %s request failed: %w", method, table, err),
			Retryable: true,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer func() { _ = resp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classify(table, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return resp, nil
}
