package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

const (
	authTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Hub accepts live connections and pushes new messages to their owners
type Hub struct {
	jwtManager *security.JWTManager

	mu    sync.RWMutex
	conns map[int64]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub
func NewHub(jwtManager *security.JWTManager) *Hub {
	return &Hub{
		jwtManager: jwtManager,
		conns:      make(map[int64]map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and waits for the authenticate frame
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to accept websocket")
		return
	}
	defer conn.CloseNow()

	userID, err := h.authenticate(r.Context(), conn)
	if err != nil {
		log.Debug().Err(err).Msg("live connection rejected")
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	h.add(userID, conn)
	defer h.remove(userID, conn)
	log.Debug().Int64("user_id", userID).Msg("live connection opened")

	// Inbound frames after the handshake carry nothing; read until the peer leaves
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			log.Debug().Int64("user_id", userID).Msg("live connection closed")
			return
		}
	}
}

func (h *Hub) authenticate(ctx context.Context, conn *websocket.Conn) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var env realtime.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		return 0, fmt.Errorf("failed to read handshake: %w", err)
	}
	if env.Event != realtime.EventAuthenticate {
		return 0, fmt.Errorf("unexpected event %q", env.Event)
	}

	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil {
		return 0, fmt.Errorf("failed to decode token: %w", err)
	}
	claims, err := h.jwtManager.Validate(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}

// Publish pushes msg to every live connection of userID and returns how many received it
func (h *Hub) Publish(userID int64, msg domain.ChatMessage) int {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal pushed message")
		return 0
	}
	env := realtime.Envelope{Event: realtime.EventNewMessage, Data: data}

	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, c, env)
		cancel()
		if err != nil {
			log.Debug().Err(err).Int64("user_id", userID).Msg("failed to push message")
			continue
		}
		delivered++
	}
	return delivered
}

// Connections returns the number of live connections of userID
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) add(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

func (h *Hub) remove(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], conn)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}
