package trovo

import (
	"context"
	"net/http"
)

// ChatTokenForChannel gets a chat token for the given channel id. Chat
// tokens are short-lived and single-use; the chat stream fetches a fresh one
// on every connection attempt.
func (c *Client) ChatTokenForChannel(ctx context.Context, channelID string) (ChatToken, error) {
	var token ChatToken
	err := c.apiDo(ctx, http.MethodGet, "/chat/channel-token/"+channelID, nil, &token, "")
	return token, err
}

// ChatTokenForUser gets a chat token for the authenticated user's own
// channel. Requires an AccessTokenProvider.
func (c *Client) ChatTokenForUser(ctx context.Context) (ChatToken, error) {
	bearer, err := c.bearer(ctx)
	if err != nil {
		return ChatToken{}, err
	}
	var token ChatToken
	err = c.apiDo(ctx, http.MethodGet, "/chat/token", nil, &token, bearer)
	return token, err
}

// SendChatMessage sends a chat message. An empty channelID sends to the
// authenticated user's own channel; sending to other channels additionally
// needs the send_to_my_channel scope of the channel owner.
func (c *Client) SendChatMessage(ctx context.Context, channelID, content string) error {
	bearer, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	return c.apiDo(ctx, http.MethodPost, "/chat/send", sendChatMessagePayload{
		Content:   content,
		ChannelID: channelID,
	}, nil, bearer)
}

// ChatMessagesForChannel opens a chat stream for the given channel id.
//
// The stream connects lazily and maintains itself: on link failure it
// reconnects with capped exponential backoff (fetching a fresh chat token
// each attempt) until the stream is closed or the platform rejects the
// credentials outright. Close the stream, or cancel ctx, to release the
// connection.
func (c *Client) ChatMessagesForChannel(ctx context.Context, channelID string, opts ...ChatOption) *ChatMessageStream {
	return newChatStream(ctx, c, channelID, func(ctx context.Context) (ChatToken, error) {
		return c.ChatTokenForChannel(ctx, channelID)
	}, opts...)
}

// ChatMessagesForUser opens a chat stream for the authenticated user's own
// channel. The server resolves the session's channel from the chat token, so
// the join carries an empty channel id. Requires an AccessTokenProvider;
// otherwise the stream ends with ErrAnonymousClient on first Recv.
func (c *Client) ChatMessagesForUser(ctx context.Context, opts ...ChatOption) *ChatMessageStream {
	return newChatStream(ctx, c, "", c.ChatTokenForUser, opts...)
}
