package trovo

import (
	"encoding/json"
	"fmt"
)

// ChatToken is the short-lived credential used to authenticate a chat
// session. Distinct from the api access token and scoped to one channel.
type ChatToken struct {
	Token string `json:"token"`
}

// Wire discriminants of the chat socket protocol. Field names and values are
// platform-defined and must match byte for byte.
const (
	frameAuth     = "AUTH"
	frameJoin     = "JOIN"
	framePing     = "PING"
	frameResponse = "RESPONSE"
	frameChat     = "CHAT"
	framePong     = "PONG"
)

// socketFrame is the JSON envelope every chat socket message travels in.
// Data is kept raw so each frame type decodes its own payload and unknown
// types pass through harmlessly.
type socketFrame struct {
	Type  string          `json:"type"`
	Nonce string          `json:"nonce,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinFrameData struct {
	ChannelID string `json:"channel_id"`
}

// ResponseError is the error object a RESPONSE frame may carry when the
// server rejects the request it acknowledges.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("trovo chat: server rejected request (%d): %s", e.Code, e.Message)
}

type responseFrameData struct {
	Error *ResponseError `json:"error,omitempty"`
}

type pongFrameData struct {
	// Interval in seconds the server advises between pings.
	Gap int64 `json:"gap"`
}

type chatFrameData struct {
	// Message container id; one container may hold multiple chats.
	EID string `json:"eid"`

	// Raw so each chat decodes independently of its siblings.
	Chats []json.RawMessage `json:"chats"`
}

func encodeAuthFrame(nonce string, token ChatToken) ([]byte, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return nil, err
	}
	return json.Marshal(socketFrame{Type: frameAuth, Nonce: nonce, Data: data})
}

func encodeJoinFrame(nonce, channelID string) ([]byte, error) {
	data, err := json.Marshal(joinFrameData{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	return json.Marshal(socketFrame{Type: frameJoin, Nonce: nonce, Data: data})
}

func encodePingFrame(nonce string) ([]byte, error) {
	return json.Marshal(socketFrame{Type: framePing, Nonce: nonce})
}

// ChatMessageType identifies the kind of a chat message.
type ChatMessageType int

const (
	// Normal chat messages.
	ChatMessageNormal ChatMessageType = 0

	// Spells, including mana spells and elixir spells.
	ChatMessageSpell ChatMessageType = 5

	// Magic chat, super cap.
	ChatMessageMagicSuperCap ChatMessageType = 6

	// Magic chat, colorful.
	ChatMessageMagicColorful ChatMessageType = 7

	// Magic chat, spell.
	ChatMessageMagicSpell ChatMessageType = 8

	// Magic chat, bullet screen.
	ChatMessageMagicBulletScreen ChatMessageType = 9

	// Shown when someone subscribes to the channel.
	ChatMessageSubscription ChatMessageType = 5001

	// System message.
	ChatMessageSystem ChatMessageType = 5002

	// Shown when someone follows the channel.
	ChatMessageFollow ChatMessageType = 5003

	// Welcome message when a viewer joins the channel.
	ChatMessageWelcome ChatMessageType = 5004

	// A user gifted subscriptions to one or more users in the channel.
	ChatMessageGiftSub ChatMessageType = 5005

	// Detailed message for a gift subscription to a single user.
	ChatMessageGiftSubDetailed ChatMessageType = 5006

	// Platform level activity and event messages.
	ChatMessageEvent ChatMessageType = 5007

	// Welcome message for users joining from a raid.
	ChatMessageRaid ChatMessageType = 5008

	// Custom spells.
	ChatMessageCustomSpell ChatMessageType = 5009
)

// Emote is an emote reference inside a chat message. The platform omits
// image variants it has not rendered, so each url is individually optional.
type Emote struct {
	// Name of the emote as typed in chat.
	Name string `json:"name"`

	// Animated gif variant, nil when the platform omitted it.
	GifURL *string `json:"gif_url,omitempty"`

	// Webp variant, nil when the platform omitted it.
	WebpURL *string `json:"webp_url,omitempty"`

	// Static png variant, nil when the platform omitted it.
	PngURL *string `json:"png_url,omitempty"`
}

// ChatMessage is a single decoded chat event. The platform omits optional
// fields inconsistently across message variants; every optional field here
// decodes to nil or its zero value when absent, never to a decode failure.
type ChatMessage struct {
	// Type of chat message.
	Type ChatMessageType `json:"type"`

	// Content of the message.
	Content string `json:"content"`

	// Display name of the sender.
	NickName string `json:"nick_name"`

	// Url of the sender's profile picture, nil when absent. System and
	// event messages frequently have none.
	Avatar *string `json:"avatar,omitempty"`

	// Subscription level of the sender in the channel, e.g. "sub_L1".
	SubLv string `json:"sub_lv,omitempty"`

	// Badge names of the sender.
	Medals []string `json:"medals,omitempty"`

	// Decoration names of the sender.
	Decos []string `json:"decos,omitempty"`

	// Roles of the sender, e.g. ["mod", "follower"].
	Roles []string `json:"roles,omitempty"`

	// Id of the message.
	MessageID string `json:"message_id"`

	// User id of the sender. Nil for anonymous and system messages.
	SenderID *int64 `json:"sender_id,omitempty"`

	// Unix timestamp of when the message was sent.
	SendTime int64 `json:"send_time"`

	// Emotes used in the message.
	Emotes []Emote `json:"emotes,omitempty"`

	// Extra info, message type specific (gift ids, values and so on).
	ContentData map[string]json.RawMessage `json:"content_data,omitempty"`

	// Roles of the sender as a json string with more detail than Roles.
	CustomRole string `json:"custom_role,omitempty"`
}

// DecodeError reports one undecodable frame or one undecodable chat message
// inside a batch. It never tears down the session; it is surfaced in the
// stream in place of the message it describes.
type DecodeError struct {
	// Raw is the offending payload.
	Raw []byte

	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("trovo chat: decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// chatItem is one entry of a decoded chat batch, either a message or a
// per-item decode failure, in arrival order.
type chatItem struct {
	Msg *ChatMessage
	Err *DecodeError
}

// decodeFrame parses one inbound socket frame envelope.
func decodeFrame(raw []byte) (socketFrame, error) {
	var frame socketFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return socketFrame{}, &DecodeError{Raw: raw, Err: err}
	}
	return frame, nil
}

// decodeChatData decodes a CHAT frame payload. Each chat in the batch is
// decoded independently: a malformed chat becomes a per-item error without
// discarding its siblings. A malformed batch wrapper becomes a single error
// item.
func decodeChatData(data json.RawMessage) []chatItem {
	var batch chatFrameData
	if err := json.Unmarshal(data, &batch); err != nil {
		return []chatItem{{Err: &DecodeError{Raw: data, Err: err}}}
	}

	items := make([]chatItem, 0, len(batch.Chats))
	for _, raw := range batch.Chats {
		var msg ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			items = append(items, chatItem{Err: &DecodeError{Raw: raw, Err: err}})
			continue
		}
		items = append(items, chatItem{Msg: &msg})
	}
	return items
}
