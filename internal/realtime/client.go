package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/response"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxInboundSize = 1024
	sendBuffer     = 64

	// EventSnapshot is the first message on every connection: the session as the caller sees it.
	EventSnapshot = "session_snapshot"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// browsers cannot set Authorization on websockets, so the token query parameter is the gate
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSMessage is the envelope of every frame sent to subscribers.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenValidator resolves a bearer token to a user ID.
type TokenValidator func(token string) (uuid.UUID, error)

// SessionFinder loads a session as seen by a user.
type SessionFinder interface {
	GetSession(ctx context.Context, callerID, id uuid.UUID) (*models.LiveSession, error)
}

// Client is one websocket watching one session. The feed is server to client only;
// inbound frames are read for heartbeats and otherwise ignored.
type Client struct {
	ID        string
	SessionID uuid.UUID
	UserID    uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

// ServeWs handles GET /ws?session_id=&token=.
func ServeWs(hub *Hub, sessions SessionFinder, validate TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		sessionID, err := uuid.Parse(c.Query("session_id"))
		if err != nil {
			response.BadRequest(c, "valid session_id required")
			return
		}
		userID, err := validate(c.Query("token"))
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		sess, err := sessions.GetSession(c.Request.Context(), userID, sessionID)
		if err != nil {
			response.Error(c, err)
			return
		}
		snapshot, err := json.Marshal(sess)
		if err != nil {
			response.Error(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			UserID:    userID,
			hub:       hub,
			conn:      conn,
			send:      make(chan WSMessage, sendBuffer),
			logger:    logger,
		}
		// queued before Register so it precedes any broadcast
		client.send <- WSMessage{Event: EventSnapshot, Data: snapshot}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundSize)
	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		extend()
		if msg.Event != "ping" {
			continue
		}
		select {
		case c.send <- WSMessage{Event: "pong"}:
		default:
		}
	}
}

// writePump owns all writes to the connection. It exits when the hub closes send.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
