package trovo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultStalenessWindow   = 75 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	defaultBackoffInitial    = 500 * time.Millisecond
	defaultBackoffMax        = 30 * time.Second
	defaultStreamBuffer      = 32

	writeTimeout = 10 * time.Second

	// closeGrace bounds the graceful close handshake before the connection
	// is torn down abruptly.
	closeGrace = 5 * time.Second
)

// ErrStreamClosed is returned by Recv after the stream has ended: the caller
// closed it, or a terminal error was already delivered. A closed stream
// cannot be restarted; open a new one.
var ErrStreamClosed = errors.New("trovo chat: stream closed")

var errLinkClosed = errors.New("trovo chat: link closed")

// ChatAuthError means the chat server rejected the session during the auth
// or join handshake. Fatal: the session closes instead of reconnecting.
type ChatAuthError struct {
	Response *ResponseError
}

func (e *ChatAuthError) Error() string {
	return fmt.Sprintf("trovo chat: session rejected: %v", e.Response)
}

func (e *ChatAuthError) Unwrap() error { return e.Response }

type chatConfig struct {
	heartbeatInterval time.Duration
	stalenessWindow   time.Duration
	handshakeTimeout  time.Duration
	backoffInitial    time.Duration
	backoffMax        time.Duration
	buffer            int
}

func defaultChatConfig() chatConfig {
	return chatConfig{
		heartbeatInterval: defaultHeartbeatInterval,
		stalenessWindow:   defaultStalenessWindow,
		handshakeTimeout:  defaultHandshakeTimeout,
		backoffInitial:    defaultBackoffInitial,
		backoffMax:        defaultBackoffMax,
		buffer:            defaultStreamBuffer,
	}
}

// ChatOption customizes one chat stream.
type ChatOption func(*chatConfig)

// WithHeartbeatInterval sets how often a PING is sent while the session is
// active. The server may advise a shorter interval via PONG responses.
// Default 30s.
func WithHeartbeatInterval(d time.Duration) ChatOption {
	return func(cfg *chatConfig) {
		cfg.heartbeatInterval = d
	}
}

// WithStalenessWindow sets the maximum time without any inbound frame before
// the link is presumed dead and reconnected. Default 75s.
func WithStalenessWindow(d time.Duration) ChatOption {
	return func(cfg *chatConfig) {
		cfg.stalenessWindow = d
	}
}

// WithHandshakeTimeout bounds the dial and each auth/join acknowledgement.
// Default 10s.
func WithHandshakeTimeout(d time.Duration) ChatOption {
	return func(cfg *chatConfig) {
		cfg.handshakeTimeout = d
	}
}

// WithReconnectBackoff sets the initial and maximum delay of the exponential
// reconnect backoff. Defaults 500ms and 30s.
func WithReconnectBackoff(initial, maxDelay time.Duration) ChatOption {
	return func(cfg *chatConfig) {
		cfg.backoffInitial = initial
		cfg.backoffMax = maxDelay
	}
}

// WithStreamBuffer sets the message buffer size of the stream. Default 32.
func WithStreamBuffer(n int) ChatOption {
	return func(cfg *chatConfig) {
		cfg.buffer = n
	}
}

// streamEvent is one item of the stream: a message or an error.
type streamEvent struct {
	msg *ChatMessage
	err error
}

// ChatMessageStream is a live feed of chat messages for one channel. It
// reconnects transparently on link failure; only cancellation or a fatal
// credential rejection ends it.
type ChatMessageStream struct {
	events <-chan streamEvent
	cancel context.CancelFunc
}

// Recv returns the next chat event, blocking until one arrives, the stream
// ends, or ctx is done.
//
// A returned *DecodeError describes a single undecodable message and leaves
// the stream running; keep calling Recv. Any other error is terminal and
// further calls return ErrStreamClosed.
func (s *ChatMessageStream) Recv(ctx context.Context) (*ChatMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return nil, ErrStreamClosed
		}
		if ev.err != nil {
			return nil, ev.err
		}
		return ev.msg, nil
	}
}

// Close cancels the stream: the link is torn down, heartbeats stop, and
// pending Recv calls return. Calling it more than once has no effect.
func (s *ChatMessageStream) Close() {
	s.cancel()
}

// Session phases. Owned exclusively by the session goroutine.
type sessionPhase int

const (
	phaseIdle sessionPhase = iota
	phaseConnecting
	phaseAuthenticating
	phaseJoining
	phaseActive
	phaseReconnecting
	phaseClosed
)

func (p sessionPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseConnecting:
		return "connecting"
	case phaseAuthenticating:
		return "authenticating"
	case phaseJoining:
		return "joining"
	case phaseActive:
		return "active"
	case phaseReconnecting:
		return "reconnecting"
	case phaseClosed:
		return "closed"
	}
	return "unknown"
}

// chatSession drives one chat subscription across however many physical
// connections it takes. It exclusively owns the link and the chat token;
// the caller only holds the stream.
type chatSession struct {
	fetchToken func(ctx context.Context) (ChatToken, error)
	channelID  string
	chatURL    string
	cfg        chatConfig
	log        zerolog.Logger

	events  chan streamEvent
	backoff *backoff.ExponentialBackOff
	phase   sessionPhase
}

// newChatStream starts a session goroutine and hands the caller its stream.
// No connection exists until the goroutine runs; connect errors surface
// through Recv.
func newChatStream(ctx context.Context, c *Client, channelID string, fetchToken func(context.Context) (ChatToken, error), opts ...ChatOption) *ChatMessageStream {
	cfg := defaultChatConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.backoffInitial
	bo.MaxInterval = cfg.backoffMax

	s := &chatSession{
		fetchToken: fetchToken,
		channelID:  channelID,
		chatURL:    c.chatURL,
		cfg:        cfg,
		log:        c.log.With().Str("component", "chat").Str("channel_id", channelID).Logger(),
		events:     make(chan streamEvent, cfg.buffer),
		backoff:    bo,
		phase:      phaseIdle,
	}

	ctx, cancel := context.WithCancel(ctx)
	go s.run(ctx)

	return &ChatMessageStream{events: s.events, cancel: cancel}
}

func (s *chatSession) setPhase(p sessionPhase) {
	if s.phase == p {
		return
	}
	s.log.Debug().Stringer("from", s.phase).Stringer("to", p).Msg("session phase change")
	s.phase = p
}

// emit pushes one event to the consumer, giving up when the session is
// cancelled so a gone consumer never wedges the producer.
func (s *chatSession) emit(ctx context.Context, ev streamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// run is the session event loop: connect, serve, classify the failure,
// back off, repeat. It never gives up on transient errors; it stops only on
// cancellation or a fatal credential rejection, which is delivered to the
// stream exactly once.
func (s *chatSession) run(ctx context.Context) {
	defer close(s.events)

	for {
		err := s.connectOnce(ctx)

		if ctx.Err() != nil {
			s.setPhase(phaseClosed)
			return
		}

		if isFatalAuth(err) {
			s.log.Warn().Err(err).Msg("fatal credential rejection, closing session")
			s.setPhase(phaseClosed)
			s.emit(ctx, streamEvent{err: err})
			return
		}

		s.setPhase(phaseReconnecting)
		wait := s.backoff.NextBackOff()
		s.log.Debug().Err(err).Dur("backoff", wait).Msg("chat link lost, reconnecting")

		select {
		case <-ctx.Done():
			s.setPhase(phaseClosed)
			return
		case <-time.After(wait):
		}
	}
}

// connectOnce runs one physical connection from token fetch to link death.
// Tokens are single-use, so every attempt fetches a fresh one.
func (s *chatSession) connectOnce(ctx context.Context) error {
	s.setPhase(phaseConnecting)

	token, err := s.fetchToken(ctx)
	if err != nil {
		return fmt.Errorf("fetch chat token: %w", err)
	}

	link, err := dialChatLink(ctx, s.chatURL, s.cfg.handshakeTimeout)
	if err != nil {
		return err
	}
	defer link.close()
	defer link.noteReaderExit()

	// Unblocks a pending receive when the caller cancels mid-session.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		<-watchCtx.Done()
		link.close()
	}()

	p := newPinger(s.cfg.heartbeatInterval)

	s.setPhase(phaseAuthenticating)
	authNonce := uuid.NewString()
	auth, err := encodeAuthFrame(authNonce, token)
	if err != nil {
		return err
	}
	if err := s.request(ctx, link, p, frameAuth, authNonce, auth); err != nil {
		return err
	}

	s.setPhase(phaseJoining)
	joinNonce := uuid.NewString()
	join, err := encodeJoinFrame(joinNonce, s.channelID)
	if err != nil {
		return err
	}
	if err := s.request(ctx, link, p, frameJoin, joinNonce, join); err != nil {
		return err
	}

	s.setPhase(phaseActive)
	s.backoff.Reset()

	go s.heartbeat(watchCtx, link, p)

	return s.readLoop(ctx, link, p)
}

// request sends one control frame and waits for its acknowledgement under
// the handshake timeout. Frames arriving in the meantime (the server replays
// recent chat right after auth) are dispatched normally.
func (s *chatSession) request(ctx context.Context, link *chatLink, p *pinger, frameType, nonce string, payload []byte) error {
	if err := link.send(payload); err != nil {
		return err
	}

	deadline := time.Now().Add(s.cfg.handshakeTimeout)
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			return fmt.Errorf("trovo chat: no ack for %s within %s", frameType, s.cfg.handshakeTimeout)
		}

		raw, err := link.receive(wait)
		if err != nil {
			return err
		}

		in, derr := decodeFrame(raw)
		if derr != nil {
			if !s.emit(ctx, streamEvent{err: derr}) {
				return ctx.Err()
			}
			continue
		}

		acked, err := s.dispatchFrame(ctx, in, p, nonce)
		if err != nil || acked {
			return err
		}
	}
}

// readLoop forwards decoded frames until the link dies or goes stale.
func (s *chatSession) readLoop(ctx context.Context, link *chatLink, p *pinger) error {
	for {
		raw, err := link.receive(s.cfg.stalenessWindow)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		frame, derr := decodeFrame(raw)
		if derr != nil {
			if !s.emit(ctx, streamEvent{err: derr}) {
				return ctx.Err()
			}
			continue
		}

		if _, err := s.dispatchFrame(ctx, frame, p, ""); err != nil {
			return err
		}
	}
}

// dispatchFrame handles one inbound frame. awaiting is the nonce of an
// outstanding control request, empty while active; acked reports whether
// this frame acknowledged it. A RESPONSE error during a handshake is a
// fatal rejection; while active it forces a reconnect. Unknown frame types
// are skipped so server additions never break the session.
func (s *chatSession) dispatchFrame(ctx context.Context, frame socketFrame, p *pinger, awaiting string) (acked bool, err error) {
	switch frame.Type {
	case frameResponse:
		var data responseFrameData
		if len(frame.Data) > 0 {
			_ = json.Unmarshal(frame.Data, &data)
		}
		if awaiting != "" && frame.Nonce == awaiting {
			if data.Error != nil {
				return false, &ChatAuthError{Response: data.Error}
			}
			return true, nil
		}
		if data.Error != nil {
			return false, data.Error
		}
		return false, nil

	case frameChat:
		for _, item := range decodeChatData(frame.Data) {
			ev := streamEvent{msg: item.Msg}
			if item.Err != nil {
				s.log.Warn().Err(item.Err).Msg("undecodable chat message in batch")
				ev = streamEvent{err: item.Err}
			}
			if !s.emit(ctx, ev) {
				return false, ctx.Err()
			}
		}
		return false, nil

	case framePong:
		var data pongFrameData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			s.log.Debug().Err(err).Msg("undecodable pong, ignoring")
			return false, nil
		}
		p.ack(frame.Nonce, data.Gap)
		return false, nil

	default:
		s.log.Debug().Str("type", frame.Type).Msg("ignoring unknown frame type")
		return false, nil
	}
}

// heartbeat sends a PING each interval until the link or session dies. Send
// failures just end the loop; the read loop notices the dead link on its
// own.
func (s *chatSession) heartbeat(ctx context.Context, link *chatLink, p *pinger) {
	timer := time.NewTimer(p.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			frame, err := encodePingFrame(p.nextNonce())
			if err != nil {
				return
			}
			if err := link.send(frame); err != nil {
				s.log.Debug().Err(err).Msg("heartbeat send failed")
				return
			}
			timer.Reset(p.currentInterval())
		}
	}
}

// pinger tracks heartbeat iterations and the server-advised ping interval.
// Shared between the heartbeat goroutine and the read loop.
type pinger struct {
	mu           sync.Mutex
	interval     time.Duration
	iteration    uint64
	acknowledged uint64
}

func newPinger(interval time.Duration) *pinger {
	return &pinger{interval: interval}
}

func (p *pinger) currentInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *pinger) nextNonce() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.iteration++
	return strconv.FormatUint(p.iteration, 10)
}

// ack records a PONG. Delayed responses to old pings are ignored, and the
// server's gap advice replaces the ping interval when present.
func (p *pinger) ack(nonce string, gap int64) {
	iteration, err := strconv.ParseUint(nonce, 10, 64)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if iteration <= p.acknowledged {
		return
	}
	p.acknowledged = iteration
	if gap > 0 {
		p.interval = time.Duration(gap) * time.Second
	}
}

// chatLink owns one physical WebSocket connection. Writes are serialized;
// reads belong to a single goroutine.
type chatLink struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool

	closeOnce  sync.Once
	readerExit chan struct{}
	exitOnce   sync.Once
}

func dialChatLink(ctx context.Context, url string, timeout time.Duration) (*chatLink, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("trovo chat: dial %s: %w", url, err)
	}
	return &chatLink{conn: conn, readerExit: make(chan struct{})}, nil
}

// send writes one text frame.
func (l *chatLink) send(payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errLinkClosed
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return l.conn.WriteMessage(websocket.TextMessage, payload)
}

// receive blocks until a frame arrives, the peer closes, or no frame is seen
// for the given window.
func (l *chatLink) receive(window time.Duration) ([]byte, error) {
	_ = l.conn.SetReadDeadline(time.Now().Add(window))
	_, raw, err := l.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// noteReaderExit marks that no goroutine reads from the link anymore, which
// lets close skip its grace wait.
func (l *chatLink) noteReaderExit() {
	l.exitOnce.Do(func() {
		close(l.readerExit)
	})
}

// close performs a graceful close handshake bounded by closeGrace, then
// terminates the connection. Safe to call from any goroutine, any number of
// times.
func (l *chatLink) close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		_ = l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.mu.Unlock()

		select {
		case <-l.readerExit:
		case <-time.After(closeGrace):
		}
		_ = l.conn.Close()
	})
}
