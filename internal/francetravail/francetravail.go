package francetravail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	apiURL     = "https://api.francetravail.io"
	authURL    = "https://entreprise.francetravail.fr/connexion/oauth2/access_token?realm=%2Fpartenaire"
	searchPath = "/partenaire/offresdemploi/v2/offres/search"
	tokenScope = "api_offresdemploiv2 o2dsoffre"

	// Refresh the cached token this long before it actually expires.
	tokenExpiryMargin = 60 * time.Second

	// The job board throttles aggressively; pace outgoing calls even when
	// the orchestrator fires a whole batch at once.
	defaultRequestsPerSecond = 5
	requestBurst             = 1
)

// Client talks to the France Travail job-board API. It owns a cached bearer
// token refreshed via the client-credentials flow and a process-wide rate
// limiter shared by all searches.
type Client struct {
	logger       *zap.Logger
	clientID     string
	clientSecret string
	limiter      *rate.Limiter
	HTTPClient   *http.Client
	APIURL       string
	AuthURL      string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(logger *zap.Logger, clientID, clientSecret string) *Client {
	return &Client{
		logger:       logger,
		clientID:     clientID,
		clientSecret: clientSecret,
		limiter:      rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), requestBurst),
		APIURL:       apiURL,
		AuthURL:      authURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetRequestsPerSecond replaces the client-side limiter rate. Zero or
// negative values keep the default.
func (c *Client) SetRequestsPerSecond(rps float64) {
	if rps <= 0 {
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), requestBurst)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns the cached bearer token, exchanging credentials for a
// fresh one when the cache is empty or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode}
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if token.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("token response contained no access token")}
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Debug("refreshed access token",
		zap.Time("expiry", c.tokenExpiry),
	)

	return c.token, nil
}
