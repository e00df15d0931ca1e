package fedex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pagecrest/fulfillment/pkg/carrier"
	"golang.org/x/sync/singleflight"
)

const (
	// tokenSlack is subtracted from the upstream expiry so a token is
	// refreshed before it can expire mid-call.
	tokenSlack = 5 * time.Minute

	tokenCallTimeout = 30 * time.Second

	tokenPath = "/oauth/token"
)

// TokenCache holds the process-wide OAuth token for one FedEx environment.
// Credentials for sandbox and production are never mixed in one cache.
// Concurrent refreshes collapse into a single upstream call.
type TokenCache struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	now          func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenCache creates a token cache for the given environment base URL.
func NewTokenCache(baseURL, clientID, clientSecret string, httpClient *http.Client) *TokenCache {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &TokenCache{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     baseURL + tokenPath,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token returns a valid bearer token, refreshing it when the cached one
// is missing, within tokenSlack of expiry, or when force is set. Callers
// arriving during an in-flight refresh wait for its result instead of
// issuing their own token request.
func (tc *TokenCache) Token(ctx context.Context, force bool) (string, error) {
	if !force {
		tc.mu.Lock()
		if tc.token != "" && tc.now().Before(tc.expiry) {
			token := tc.token
			tc.mu.Unlock()
			return token, nil
		}
		tc.mu.Unlock()
	}

	v, err, _ := tc.group.Do("token", func() (interface{}, error) {
		return tc.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call refreshes.
func (tc *TokenCache) Invalidate() {
	tc.mu.Lock()
	tc.token = ""
	tc.expiry = time.Time{}
	tc.mu.Unlock()
}

func (tc *TokenCache) refresh(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenCallTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", tc.clientID)
	form.Set("client_secret", tc.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		tc.Invalidate()
		if ctx.Err() != nil {
			return "", carrier.NewError(carrierName, "TOKEN_TIMEOUT", "token request timed out").
				WithCause(carrier.ErrTimeout).WithRetryable(true)
		}
		return "", carrier.NewError(carrierName, "TOKEN_REQUEST_FAILED", "token request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		tc.Invalidate()
		desc := tokenErrorDescription(body)
		return "", carrier.NewError(carrierName, "AUTH_FAILED", desc).
			WithStatusCode(resp.StatusCode).
			WithBody(string(body)).
			WithCause(carrier.ErrAuthFailed)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		tc.Invalidate()
		return "", carrier.NewError(carrierName, "AUTH_FAILED", "malformed token response").
			WithCause(carrier.ErrAuthFailed)
	}

	issuedAt := tc.now()
	tc.mu.Lock()
	tc.token = tok.AccessToken
	tc.expiry = issuedAt.Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack)
	tc.mu.Unlock()

	return tok.AccessToken, nil
}

func tokenErrorDescription(body []byte) string {
	var errResp tokenErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.ErrorDescription != "" {
			return errResp.ErrorDescription
		}
		if len(errResp.Errors) > 0 && errResp.Errors[0].Message != "" {
			return errResp.Errors[0].Message
		}
	}
	return "credential exchange rejected"
}
