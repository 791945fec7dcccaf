package trovo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ClientIDProvider supplies the application client id sent on every request.
type ClientIDProvider interface {
	ClientID() string
}

// AccessTokenProvider supplies a user bearer token on top of the client id.
// The chat session and authenticated endpoints are written against this
// capability, never against a concrete provider type.
type AccessTokenProvider interface {
	ClientIDProvider

	// AccessToken returns the current bearer token, or an error if no valid
	// token can be produced.
	AccessToken(ctx context.Context) (string, error)

	// RefreshIfNeeded refreshes the token when it is close to expiry. It is
	// a no-op for providers that cannot refresh. A *RefreshRejectedError
	// means the platform rejected the refresh token and the provider is
	// permanently unable to produce credentials.
	RefreshIfNeeded(ctx context.Context) error
}

// ClientID is the simplest provider: a bare client id with no user token.
// Enough for public endpoints and channel chat streams.
type ClientID string

// ClientID implements ClientIDProvider.
func (c ClientID) ClientID() string { return string(c) }

// StaticToken is an AccessTokenProvider wrapping a fixed token. It never
// refreshes; once Expiry has passed every call fails with
// ErrAccessTokenExpired.
type StaticToken struct {
	ID    string
	Token string

	// Zero means the token is treated as never expiring.
	Expiry time.Time
}

func (s StaticToken) ClientID() string { return s.ID }

func (s StaticToken) AccessToken(ctx context.Context) (string, error) {
	if !s.Expiry.IsZero() && time.Now().After(s.Expiry) {
		return "", ErrAccessTokenExpired
	}
	return s.Token, nil
}

func (s StaticToken) RefreshIfNeeded(ctx context.Context) error { return nil }

// OAuthTokens is the token pair held by an OAuthProvider.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// refreshSkew is how long before expiry a refresh is attempted.
const refreshSkew = time.Minute

// OAuthProvider is a full OAuth-capable AccessTokenProvider. It exchanges its
// refresh token against the platform when the access token nears expiry.
// Safe for concurrent use.
type OAuthProvider struct {
	clientID     string
	clientSecret string
	http         *http.Client
	baseURL      string

	mu     sync.Mutex
	tokens OAuthTokens
}

// OAuthOption customizes an OAuthProvider.
type OAuthOption func(*OAuthProvider)

// WithOAuthHTTPClient injects a custom http client for refresh calls.
func WithOAuthHTTPClient(client *http.Client) OAuthOption {
	return func(p *OAuthProvider) {
		p.http = client
	}
}

// WithOAuthBaseURL overrides the api base url used for refresh calls.
func WithOAuthBaseURL(url string) OAuthOption {
	return func(p *OAuthProvider) {
		p.baseURL = url
	}
}

// NewOAuthProvider creates a provider from an existing token pair, usually
// obtained by completing the platform's authorization code flow.
func NewOAuthProvider(clientID, clientSecret string, tokens OAuthTokens, opts ...OAuthOption) *OAuthProvider {
	p := &OAuthProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokens:       tokens,
		http:         &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *OAuthProvider) ClientID() string { return p.clientID }

func (p *OAuthProvider) AccessToken(ctx context.Context) (string, error) {
	if err := p.RefreshIfNeeded(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens.AccessToken, nil
}

// Tokens returns a copy of the current token pair, e.g. for persisting the
// rotated refresh token.
func (p *OAuthProvider) Tokens() OAuthTokens {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens
}

type refreshTokenPayload struct {
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type refreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (p *OAuthProvider) RefreshIfNeeded(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Until(p.tokens.ExpiresAt) > refreshSkew {
		return nil
	}

	body, err := json.Marshal(refreshTokenPayload{
		ClientSecret: p.clientSecret,
		GrantType:    "refresh_token",
		RefreshToken: p.tokens.RefreshToken,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/refreshtoken", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Client-ID", p.clientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("refresh token request: %w", err)
	}
	defer resp.Body.Close()

	if canHandleCode(resp.StatusCode) {
		apiErr := &APIError{Status: StatusUnknown, Message: "unknown or uncategorized error"}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return &RefreshRejectedError{API: apiErr}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh token request: unexpected status %d", resp.StatusCode)
	}

	var tokens refreshTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}

	p.tokens = OAuthTokens{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}
	return nil
}
