package trovo

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorStatus is an error code returned in the body of a failed api request.
type ErrorStatus int

// Error codes returned by the Trovo api.
const (
	// Internal service failed to fetch data. Please try again.
	StatusInternalFetch ErrorStatus = -1201

	// Internal server error, in most cases a timeout of an internal service.
	StatusInternalTimeout ErrorStatus = -1000

	// Server received invalid parameters.
	StatusInvalidParameters ErrorStatus = 1002

	// Unknown or uncategorized internal server error.
	StatusInternalUnknown ErrorStatus = 1111

	// Conflict. Please try again.
	StatusConflict ErrorStatus = 1203

	// The user does not exist.
	StatusInvalidUser ErrorStatus = 10505

	// Authorization failed. Double check your token or the auth status.
	StatusAuthorizationFailed ErrorStatus = 10703

	// Authorization code doesn't exist or has expired.
	StatusInvalidAuthCode ErrorStatus = 10710

	// One user cannot send the same message in 30 sec to a channel, or more
	// than 1 message in 1 sec across all platforms.
	StatusMessageSpam ErrorStatus = 10908

	// The category does not exist.
	StatusInvalidCategory ErrorStatus = 11000

	// Content conflicts with Trovo moderation rules.
	StatusModerated ErrorStatus = 11101

	// The user account has been blocked by Trovo.
	StatusAccountBlocked ErrorStatus = 11400

	// Error in the request header.
	StatusInvalidHeader ErrorStatus = 11701

	// Please try again with a valid scope.
	StatusInvalidScope ErrorStatus = 11703

	// The access token passed in is not valid.
	StatusInvalidAccessToken ErrorStatus = 11704

	// Api rate limit exceeded.
	StatusRateLimitExceeded ErrorStatus = 11706

	// No permission to send chats to this channel.
	StatusMissingChatPermission ErrorStatus = 11707

	// Refresh token has expired.
	StatusRefreshTokenExpired ErrorStatus = 11712

	// Invalid refresh token.
	StatusInvalidRefreshToken ErrorStatus = 11713

	// Access token has expired.
	StatusAccessTokenExpired ErrorStatus = 11714

	// Invalid grant type.
	StatusInvalidGrantType ErrorStatus = 11715

	// Invalid redirect uri.
	StatusInvalidRedirectURI ErrorStatus = 11716

	// Invalid client secret.
	StatusInvalidClientSecret ErrorStatus = 11717

	// Scope is not authorized by the user.
	StatusUnauthorizedScope ErrorStatus = 11730

	// The user is banned from chatting in this channel.
	StatusBannedInChannel ErrorStatus = 12400

	// Channel is currently in slow mode.
	StatusSlowMode ErrorStatus = 12401

	// The channel is follower only chat.
	StatusFollowerOnly ErrorStatus = 12402

	// Unknown or uncategorized error.
	StatusUnknown ErrorStatus = 20000
)

// APIError is an error response body returned by the Trovo api.
type APIError struct {
	Status  ErrorStatus `json:"status"`
	Message string      `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trovo api error %d: %s", e.Status, e.Message)
}

// Unauthenticated reports whether the error means the presented credential
// itself was rejected, as opposed to a transient or request-specific failure.
func (e *APIError) Unauthenticated() bool {
	switch e.Status {
	case StatusAuthorizationFailed, StatusInvalidAccessToken,
		StatusAccessTokenExpired, StatusUnauthorizedScope, StatusInvalidScope:
		return true
	}
	return false
}

// canHandleCode reports whether the given http status is known to carry a
// friendly APIError body.
func canHandleCode(code int) bool {
	return code == http.StatusBadRequest ||
		code == http.StatusUnauthorized ||
		code == http.StatusInternalServerError
}

// RefreshRejectedError is returned when the platform rejects a refresh token.
// It is fatal: the provider cannot produce further credentials.
type RefreshRejectedError struct {
	API *APIError
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("trovo: refresh token rejected: %v", e.API)
}

func (e *RefreshRejectedError) Unwrap() error { return e.API }

// ErrAccessTokenExpired is returned by StaticToken once its expiry has
// passed. Static tokens do not support refreshing.
var ErrAccessTokenExpired = errors.New("trovo: access token expired and does not support refreshing")

// ErrAnonymousClient is returned by endpoints that require user
// authentication when the client was built with a plain ClientIDProvider.
var ErrAnonymousClient = errors.New("trovo: endpoint requires an AccessTokenProvider")

// isFatalAuth is the single classification point between "network blip, keep
// trying" and "credentials are bad, stop" used by the chat session.
func isFatalAuth(err error) bool {
	var api *APIError
	if errors.As(err, &api) {
		return api.Unauthenticated()
	}
	var rr *RefreshRejectedError
	if errors.As(err, &rr) {
		return true
	}
	var ca *ChatAuthError
	if errors.As(err, &ca) {
		return true
	}
	return errors.Is(err, ErrAccessTokenExpired) || errors.Is(err, ErrAnonymousClient)
}
