package trovo_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	trovo "github.com/NPChat/go-trovo"
)

func TestUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getusers" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Client-ID"); got != "test-client-id" {
			t.Errorf("Client-ID header = %q, want %q", got, "test-client-id")
		}

		var payload struct {
			User []string `json:"user"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		if len(payload.User) != 2 {
			t.Errorf("payload users = %v, want 2 entries", payload.User)
		}

		w.Write([]byte(`{"users":[
			{"user_id":"1","channel_id":"10","username":"alice","nickname":"Alice"},
			{"user_id":"2","channel_id":"20","username":"bob","nickname":"Bob"}
		]}`))
	}))
	defer srv.Close()

	client := trovo.New(trovo.ClientID("test-client-id"), trovo.WithBaseURL(srv.URL))

	users, err := client.Users(context.Background(), []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[0].ChannelID != "10" || users[1].Nickname != "Bob" {
		t.Errorf("unexpected users: %+v", users)
	}
}

func TestUsersInvalidParametersMeansEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":1002,"message":"invalid parameters"}`))
	}))
	defer srv.Close()

	client := trovo.New(trovo.ClientID("cid"), trovo.WithBaseURL(srv.URL))

	users, err := client.Users(context.Background(), []string{"no-such-user"})
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("got %d users, want 0", len(users))
	}
}

func TestUserNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[]}`))
	}))
	defer srv.Close()

	client := trovo.New(trovo.ClientID("cid"), trovo.WithBaseURL(srv.URL))

	user, err := client.User(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if user != nil {
		t.Fatalf("got %+v, want nil", user)
	}
}

func TestChannelByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/id" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"is_live": true,
			"category_name": "Just Chatting",
			"live_title": "hello world",
			"audi_type": "CHANNEL_AUDIENCE_TYPE_TEEN",
			"current_viewers": 42,
			"followers": 1000,
			"username": "alice",
			"created_at": "1600000000",
			"started_at": "1700000000",
			"ended_at": "1700003600",
			"social_links": [{"type":"twitter","url":"https://example.com"}]
		}`))
	}))
	defer srv.Close()

	client := trovo.New(trovo.ClientID("cid"), trovo.WithBaseURL(srv.URL))

	channel, err := client.ChannelByID(context.Background(), "10")
	if err != nil {
		t.Fatalf("ChannelByID: %v", err)
	}
	if channel == nil {
		t.Fatal("got nil channel")
	}
	if !channel.IsLive || channel.Username != "alice" || channel.AudiType != trovo.AudienceTeen {
		t.Errorf("unexpected channel: %+v", channel)
	}
	if channel.StartedAt != 1700000000 {
		t.Errorf("StartedAt = %d, want 1700000000", channel.StartedAt)
	}
}

func TestChannelByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The api nulls out the whole channel instead of erroring.
		w.Write([]byte(`{"is_live":false,"username":""}`))
	}))
	defer srv.Close()

	client := trovo.New(trovo.ClientID("cid"), trovo.WithBaseURL(srv.URL))

	channel, err := client.ChannelByID(context.Background(), "404")
	if err != nil {
		t.Fatalf("ChannelByID: %v", err)
	}
	if channel != nil {
		t.Fatalf("got %+v, want nil", channel)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":-1000,"message":"internal timeout"}`))
	}))
	defer srv.Close()

	client := trovo.New(trovo.ClientID("cid"), trovo.WithBaseURL(srv.URL))

	_, err := client.ChannelByID(context.Background(), "10")
	var apiErr *trovo.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.Status != trovo.StatusInternalTimeout {
		t.Errorf("Status = %d, want %d", apiErr.Status, trovo.StatusInternalTimeout)
	}
	if apiErr.Unauthenticated() {
		t.Error("internal timeout should not classify as unauthenticated")
	}
}

func TestSendChatMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/send" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "OAuth user-token" {
			t.Errorf("Authorization = %q, want %q", got, "OAuth user-token")
		}

		var payload struct {
			Content   string `json:"content"`
			ChannelID string `json:"channel_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		if payload.Content != "hello" || payload.ChannelID != "10" {
			t.Errorf("unexpected payload: %+v", payload)
		}

		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	auth := trovo.StaticToken{ID: "cid", Token: "user-token"}
	client := trovo.New(auth, trovo.WithBaseURL(srv.URL))

	if err := client.SendChatMessage(context.Background(), "10", "hello"); err != nil {
		t.Fatalf("SendChatMessage: %v", err)
	}
}

func TestSendChatMessageRequiresAccessToken(t *testing.T) {
	client := trovo.New(trovo.ClientID("cid"))

	err := client.SendChatMessage(context.Background(), "", "hello")
	if !errors.Is(err, trovo.ErrAnonymousClient) {
		t.Fatalf("got %v, want ErrAnonymousClient", err)
	}
}
