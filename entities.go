package trovo

// User holds a user's channel id, user id and nickname as returned by
// Client.Users.
type User struct {
	// Unique id of the user.
	UserID string `json:"user_id"`

	// Unique id of the user's channel.
	ChannelID string `json:"channel_id"`

	// Username, unique across the platform and the last part of the
	// streamer's channel url.
	Username string `json:"username"`

	// Display name shown in chats and channels. May differ from Username.
	Nickname string `json:"nickname"`
}

type getUsersPayload struct {
	User []string `json:"user"`
}

type getUsersResponse struct {
	Users []User `json:"users"`
}

type getChannelByIDPayload struct {
	ChannelID string `json:"channel_id"`
}

// AudienceType is the audience rating of a channel.
type AudienceType string

const (
	AudienceFamilyFriendly AudienceType = "CHANNEL_AUDIENCE_TYPE_FAMILYFRIENDLY"
	AudienceTeen           AudienceType = "CHANNEL_AUDIENCE_TYPE_TEEN"
	AudienceEighteenPlus   AudienceType = "CHANNEL_AUDIENCE_TYPE_EIGHTEENPLUS"
)

// SocialLink is a social media link attached to a channel.
type SocialLink struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ChannelInfo is the channel information returned by Client.ChannelByID.
type ChannelInfo struct {
	// Whether the channel is currently live.
	IsLive bool `json:"is_live"`

	// Id of the game category.
	CategoryID string `json:"category_id"`

	// Text name of the category.
	CategoryName string `json:"category_name"`

	// Current title of the channel.
	LiveTitle string `json:"live_title"`

	// Audience rating.
	AudiType AudienceType `json:"audi_type"`

	// Language of the channel as a 2 letter language code.
	LanguageCode string `json:"language_code"`

	// Thumbnail url. Empty when the previous stream's thumbnail expired.
	Thumbnail string `json:"thumbnail"`

	// Number of current viewers.
	CurrentViewers uint64 `json:"current_viewers"`

	// Number of followers.
	Followers uint64 `json:"followers"`

	// Profile text of the streamer.
	StreamerInfo string `json:"streamer_info"`

	// Url of the streamer's profile picture.
	ProfilePic string `json:"profile_pic"`

	// Url of the channel.
	ChannelURL string `json:"channel_url"`

	// Unix timestamp of the channel creation time.
	CreatedAt int64 `json:"created_at,string"`

	// Count of subscribers.
	SubscriberNum uint64 `json:"subscriber_num"`

	// Username of the channel's streamer.
	Username string `json:"username"`

	// Social media links of the streamer.
	SocialLinks []SocialLink `json:"social_links"`

	// Unix timestamp of the latest stream start.
	StartedAt int64 `json:"started_at,string"`

	// Unix timestamp of the latest stream end.
	EndedAt int64 `json:"ended_at,string"`
}

type sendChatMessagePayload struct {
	Content string `json:"content"`

	// Empty means the authenticated user's own channel.
	ChannelID string `json:"channel_id,omitempty"`
}
