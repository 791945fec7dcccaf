// Package trovo implements an unofficial client for the Trovo live-streaming
// platform: user and channel lookups over the open REST api, and a resilient
// chat feed delivered over a persistent WebSocket connection.
//
// The chat stream reconnects automatically with capped exponential backoff,
// keeps the socket alive with heartbeats, and tolerates the platform's
// inconsistent message encodings: optional fields that are missing decode to
// their absent representation instead of failing the whole message, and a
// malformed message inside a batch is surfaced on its own without discarding
// the rest of the batch.
//
// # Basic Usage
//
//	client := trovo.New(trovo.ClientID("your-client-id"))
//
//	user, err := client.User(ctx, "some-streamer")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	stream := client.ChatMessagesForChannel(ctx, user.ChannelID)
//	defer stream.Close()
//
//	for {
//		msg, err := stream.Recv(ctx)
//		if err != nil {
//			var de *trovo.DecodeError
//			if errors.As(err, &de) {
//				continue // one bad message, stream keeps going
//			}
//			log.Fatal(err) // terminal
//		}
//		fmt.Printf("[%s] %s\n", msg.NickName, msg.Content)
//	}
//
// # Authentication
//
// Endpoints that act on behalf of a user (sending chat, the user's own chat
// token) need an AccessTokenProvider. Two are included: StaticToken for a
// fixed token that is never refreshed, and OAuthProvider which refreshes
// itself against the platform when the token nears expiry:
//
//	auth := trovo.NewOAuthProvider("client-id", "client-secret", tokens)
//	client := trovo.New(auth)
//	err := client.SendChatMessage(ctx, "", "hello from a bot")
package trovo
