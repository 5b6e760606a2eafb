package easylink

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

	"github.com/cenkalti/backoff/v4"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/config"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/redis"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

const (
	tokenCacheKey = "easylink:access_token"
	tokenMargin   = time.Minute
	minTokenTTL   = 30 * time.Second
	maxRetries    = 3
)

// Transfer is a disbursement as reported by the partner's query API.
type Transfer struct {
	Reference      string `json:"reference"`
	DisbursementID string `json:"disbursement_id"`
	State          State  `json:"state"`
	Reason         string `json:"reason"`
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// codeReferenceNotFound is the body code Easylink uses alongside 404.
const codeReferenceNotFound = 40401

// Client talks to the Easylink partner API. Access tokens are cached in
// Redis so every instance shares one token.
type Client struct {
	baseURL        string
	appID          string
	appSecret      string
	http           *http.Client
	cache          redis.RedisClient
	initialBackoff time.Duration
}

func NewClient(cfg config.EasylinkConfig, cache redis.RedisClient) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		appID:          cfg.AppID,
		appSecret:      cfg.AppSecret,
		http:           &http.Client{Timeout: cfg.Timeout},
		cache:          cache,
		initialBackoff: 500 * time.Millisecond,
	}
}

// QueryTransfer returns the partner's view of reference. Server errors are
// retried with backoff; a 401 drops the cached token and re-authenticates
// once before giving up.
func (c *Client) QueryTransfer(ctx context.Context, reference string) (*Transfer, error) {
	var transfer *Transfer
	reauthenticated := false

	op := func() error {
		t, err := c.queryTransfer(ctx, reference)
		switch {
		case err == nil:
			transfer = t
			return nil
		case errors.Is(err, pkgerrors.ErrPartnerUnauthorized) && !reauthenticated:
			reauthenticated = true
			if derr := c.cache.Del(ctx, tokenCacheKey); derr != nil {
				slog.Warn("failed to drop cached easylink token", "error", derr)
			}
			return err
		case errors.Is(err, pkgerrors.ErrPartnerUnavailable):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return transfer, nil
}

func (c *Client) queryTransfer(ctx context.Context, reference string) (*Transfer, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/transfer/query?" + url.Values{"reference": {reference}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build transfer query: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	env, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || env.Code == codeReferenceNotFound {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrPartnerReferenceNotFound, reference)
	}

	var t Transfer
	if err := json.Unmarshal(env.Data, &t); err != nil {
		return nil, fmt.Errorf("%w: decode transfer: %v", pkgerrors.ErrPartnerUnavailable, err)
	}
	if t.Reference == "" {
		t.Reference = reference
	}
	return &t, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	cached, err := c.cache.Get(ctx, tokenCacheKey)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, redis.ErrKeyNotFound) {
		slog.Warn("easylink token cache unavailable", "error", err)
	}

	body, err := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/get-access-token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, _, err := c.do(req)
	if err != nil {
		return "", err
	}
	var tok tokenResponse
	if err := json.Unmarshal(env.Data, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response without access_token", pkgerrors.ErrPartnerUnauthorized)
	}

	ttl := time.Duration(tok.ExpiresIn)*time.Second - tokenMargin
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	if err := c.cache.Set(ctx, tokenCacheKey, tok.AccessToken, ttl); err != nil {
		slog.Warn("failed to cache easylink token", "error", err)
	}
	return tok.AccessToken, nil
}

// do maps transport failures and 5xx to ErrPartnerUnavailable and 401/403
// to ErrPartnerUnauthorized. 404 is returned to the caller untouched.
func (c *Client) do(req *http.Request) (*envelope, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", pkgerrors.ErrPartnerUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", pkgerrors.ErrPartnerUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s answered %d", pkgerrors.ErrPartnerUnauthorized, req.Method, req.URL.Path, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s answered %d", pkgerrors.ErrPartnerUnavailable, req.Method, req.URL.Path, resp.StatusCode)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, resp.StatusCode, fmt.Errorf("%w: decode response: %v", pkgerrors.ErrPartnerUnavailable, err)
		}
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return nil, resp.StatusCode, fmt.Errorf("easylink %s %s answered %d: %s", req.Method, req.URL.Path, resp.StatusCode, env.Message)
	}
	return &env, resp.StatusCode, nil
}
