package trovo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://open-api.trovo.live/openplatform"
	defaultChatURL = "wss://open-chat.trovo.live/chat"
)

// Client is the entrypoint for making requests to the Trovo api.
type Client struct {
	auth    ClientIDProvider
	http    *http.Client
	baseURL string
	chatURL string
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient injects a custom http client, e.g. to share a connection
// pool across the program.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithBaseURL overrides the REST api base url.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithChatURL overrides the chat WebSocket url.
func WithChatURL(url string) Option {
	return func(c *Client) {
		c.chatURL = url
	}
}

// WithLogger attaches a structured logger. The client is silent by default.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a client with the given auth provider. Pass a bare ClientID for
// public endpoints, or an AccessTokenProvider to also use authenticated ones.
func New(auth ClientIDProvider, opts ...Option) *Client {
	c := &Client{
		auth:    auth,
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		chatURL: defaultChatURL,
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// bearer produces an access token for authenticated endpoints, refreshing it
// first when the provider supports that.
func (c *Client) bearer(ctx context.Context) (string, error) {
	auth, ok := c.auth.(AccessTokenProvider)
	if !ok {
		return "", ErrAnonymousClient
	}
	if err := auth.RefreshIfNeeded(ctx); err != nil {
		return "", err
	}
	return auth.AccessToken(ctx)
}

// apiDo performs one api call: payload marshalling, standard headers, api
// error decoding and response decoding into out. bearer may be empty for
// unauthenticated endpoints; out may be nil for empty responses.
func (c *Client) apiDo(ctx context.Context, method, path string, payload, out any, bearer string) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Client-ID", c.auth.ClientID())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "OAuth "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if canHandleCode(resp.StatusCode) {
		apiErr := &APIError{Status: StatusUnknown, Message: "unknown or uncategorized error"}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		c.log.Debug().Str("path", path).Int("status", int(apiErr.Status)).Msg("api error response")
		return apiErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// Users looks up channel id, user id and nickname for a list of usernames.
//
// Note: if just one of the usernames doesn't exist the result is empty, an
// api limitation.
func (c *Client) Users(ctx context.Context, usernames []string) ([]User, error) {
	var response getUsersResponse
	err := c.apiDo(ctx, http.MethodPost, "/getusers", getUsersPayload{User: usernames}, &response, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == StatusInvalidParameters {
			return nil, nil
		}
		return nil, err
	}
	return response.Users, nil
}

// User looks up a single user by username. Returns nil if not found.
func (c *Client) User(ctx context.Context, username string) (*User, error) {
	users, err := c.Users(ctx, []string{username})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// ChannelByID fetches channel information for the given channel id. Returns
// nil if the channel was not found.
func (c *Client) ChannelByID(ctx context.Context, channelID string) (*ChannelInfo, error) {
	var channel ChannelInfo
	err := c.apiDo(ctx, http.MethodPost, "/channels/id", getChannelByIDPayload{ChannelID: channelID}, &channel, "")
	if err != nil {
		return nil, err
	}
	if channel.Username == "" {
		// The api returns a nulled out channel when it can't be found;
		// username is never legitimately blank.
		return nil, nil
	}
	return &channel, nil
}
