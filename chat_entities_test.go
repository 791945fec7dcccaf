package trovo

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeFramesWireFormat(t *testing.T) {
	tests := []struct {
		name string
		got  func() ([]byte, error)
		want string
	}{
		{
			name: "auth",
			got: func() ([]byte, error) {
				return encodeAuthFrame("n1", ChatToken{Token: "tok"})
			},
			want: `{"type":"AUTH","nonce":"n1","data":{"token":"tok"}}`,
		},
		{
			name: "join",
			got: func() ([]byte, error) {
				return encodeJoinFrame("n2", "chan-10")
			},
			want: `{"type":"JOIN","nonce":"n2","data":{"channel_id":"chan-10"}}`,
		},
		{
			name: "ping",
			got: func() ([]byte, error) {
				return encodePingFrame("3")
			},
			want: `{"type":"PING","nonce":"3"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.got()
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("encoded %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestDecodeFrameUnknownType(t *testing.T) {
	frame, err := decodeFrame([]byte(`{"type":"SHINY_NEW_THING","data":{"whatever":1}}`))
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if frame.Type != "SHINY_NEW_THING" {
		t.Errorf("Type = %q", frame.Type)
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	_, err := decodeFrame([]byte(`{not json`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want *DecodeError", err)
	}
}

func TestDecodeChatDataMissingOptionalFields(t *testing.T) {
	// A system message with no avatar, no sender id, and an emote that only
	// has the png variant rendered.
	data := json.RawMessage(`{"eid":"e1","chats":[{
		"type": 5002,
		"content": "alice followed the channel",
		"nick_name": "system",
		"message_id": "m1",
		"send_time": 1700000000,
		"emotes": [{"name":"wave","png_url":"https://img.example/wave.png"}]
	}]}`)

	items := decodeChatData(data)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	msg := items[0].Msg
	if msg == nil {
		t.Fatalf("item errored: %v", items[0].Err)
	}
	if msg.Type != ChatMessageSystem {
		t.Errorf("Type = %d, want %d", msg.Type, ChatMessageSystem)
	}
	if msg.Avatar != nil {
		t.Errorf("Avatar = %v, want nil", *msg.Avatar)
	}
	if msg.SenderID != nil {
		t.Errorf("SenderID = %v, want nil", *msg.SenderID)
	}
	if len(msg.Emotes) != 1 {
		t.Fatalf("got %d emotes, want 1", len(msg.Emotes))
	}
	emote := msg.Emotes[0]
	if emote.GifURL != nil || emote.WebpURL != nil {
		t.Errorf("absent emote variants should be nil: %+v", emote)
	}
	if emote.PngURL == nil || *emote.PngURL != "https://img.example/wave.png" {
		t.Errorf("PngURL = %v", emote.PngURL)
	}
}

func TestDecodeChatDataMalformedItemKeepsSiblings(t *testing.T) {
	data := json.RawMessage(`{"eid":"e1","chats":[
		{"type":0,"content":"first","nick_name":"alice","message_id":"m1","sender_id":7,"send_time":1},
		{"type":0,"content":"broken","nick_name":"bob","message_id":"m2","sender_id":"not-a-number","send_time":2},
		{"type":0,"content":"third","nick_name":"carol","message_id":"m3","sender_id":9,"send_time":3}
	]}`)

	items := decodeChatData(data)
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Msg == nil || items[0].Msg.Content != "first" {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].Err == nil {
		t.Errorf("item 1 should be a decode error, got %+v", items[1].Msg)
	}
	if items[2].Msg == nil || items[2].Msg.Content != "third" {
		t.Errorf("item 2 = %+v", items[2])
	}
	if items[0].Msg.SenderID == nil || *items[0].Msg.SenderID != 7 {
		t.Errorf("item 0 SenderID = %v, want 7", items[0].Msg.SenderID)
	}
}

func TestDecodeChatDataMalformedBatch(t *testing.T) {
	items := decodeChatData(json.RawMessage(`"not an object"`))
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Err == nil {
		t.Fatal("want a decode error item")
	}
}

func TestDecodeChatDataEmptyBatch(t *testing.T) {
	items := decodeChatData(json.RawMessage(`{"eid":"e1"}`))
	if len(items) != 0 {
		t.Fatalf("got %d items, want 0", len(items))
	}
}
