// Package realtime maintains the live connection that delivers bot messages.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

// Event names used on the wire
const (
	EventAuthenticate = "authenticate"
	EventNewMessage   = "new_message"
)

const maxFrameSize = 1 << 20

// Envelope is a single frame on the live channel
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// State is the connection state of the channel
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// TokenSource supplies the token sent in the authentication handshake
type TokenSource interface {
	Token() string
}

// Channel owns the single live connection of a session.
// It never reconnects on its own; a dropped connection stays down until
// Connect is called again.
type Channel struct {
	url         string
	tokens      TokenSource
	dialTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	messages *pubsub.Stream[domain.ChatMessage]
	state    *pubsub.Value[State]
}

// NewChannel creates a channel for the given websocket URL
func NewChannel(wsURL string, tokens TokenSource, dialTimeout time.Duration) *Channel {
	return &Channel{
		url:         wsURL,
		tokens:      tokens,
		dialTimeout: dialTimeout,
		messages:    pubsub.NewStream[domain.ChatMessage](),
		state:       pubsub.NewValue(Disconnected),
	}
}

// URLFromBase derives the websocket URL from the API base URL
func URLFromBase(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

// Messages subscribes to bot messages pushed by the server
func (c *Channel) Messages(buffer int) *pubsub.Subscription[domain.ChatMessage] {
	return c.messages.Subscribe(buffer)
}

// State returns the connection state value
func (c *Channel) State() *pubsub.Value[State] {
	return c.state
}

// Connected reports whether the connection is up
func (c *Channel) Connected() bool {
	return c.state.Get() == Connected
}

// Connect opens the connection and sends the authentication handshake.
// Calling it while connected is a no-op.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, c.dialTimeout)
	defer cancelDial()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial realtime channel: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	// Authenticate as soon as the transport is up
	token := c.tokens.Token()
	if token == "" {
		log.Warn().Msg("realtime connected without a session token")
	} else {
		data, _ := json.Marshal(token)
		if err := wsjson.Write(dialCtx, conn, Envelope{Event: EventAuthenticate, Data: data}); err != nil {
			conn.Close(websocket.StatusInternalError, "handshake failed")
			return fmt.Errorf("failed to send authentication: %w", err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state.Set(Connected)

	go c.readLoop(loopCtx, conn, c.done)

	log.Info().Str("url", c.url).Msg("realtime channel connected")
	return nil
}

// Disconnect tears the connection down. Safe to call when not connected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn, cancel, done := c.conn, c.cancel, c.done
	if conn == nil {
		c.mu.Unlock()
		return
	}
	c.conn, c.cancel, c.done = nil, nil, nil
	c.state.Set(Disconnected)
	c.mu.Unlock()

	cancel()
	conn.Close(websocket.StatusNormalClosure, "client disconnect")
	<-done
	log.Info().Msg("realtime channel disconnected")
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() == nil && !isNormalClose(err) {
				log.Warn().Err(err).Msg("realtime channel dropped")
			}
			break
		}
		c.dispatch(ctx, env)
	}

	// A dropped connection clears itself; Disconnect already did when it raced us
	c.mu.Lock()
	if c.conn == conn {
		c.conn, c.cancel, c.done = nil, nil, nil
		c.state.Set(Disconnected)
	}
	c.mu.Unlock()
}

func (c *Channel) dispatch(ctx context.Context, env Envelope) {
	if env.Event != EventNewMessage {
		return
	}

	var msg domain.ChatMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		log.Debug().Err(err).Msg("ignoring malformed realtime message")
		return
	}
	if msg.Sender != domain.SenderBot {
		return
	}

	c.messages.Publish(ctx, msg)
}

func isNormalClose(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}
