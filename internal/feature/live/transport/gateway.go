// Package transport exposes the live connection gateway over WebSocket.
package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stockfeed/internal/feature/live/hub"
	jwtmw "stockfeed/internal/platform/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
)

// connectedAck is the first frame every connection receives.
var connectedAck = []byte(`{"message":"Connected"}`)

// FollowingReader returns the symbols a user follows.
type FollowingReader interface {
	FollowedSymbols(ctx context.Context, userID uint) ([]string, error)
}

// TokenVerifier identifies the user behind a bearer token.
type TokenVerifier interface {
	Enabled() bool
	ParseUserID(token string) (uint, error)
}

// Options configures a Gateway.
type Options struct {
	Group       string
	SendBuffer  int
	CheckOrigin func(r *http.Request) bool
}

// Gateway upgrades HTTP requests to WebSocket connections joined to a hub group.
type Gateway struct {
	hub        *hub.Hub
	group      string
	sendBuffer int
	upgrader   websocket.Upgrader
	verifier   TokenVerifier
	follows    FollowingReader
	log        *zap.Logger
}

// NewGateway creates a Gateway. verifier and follows may be nil, in which
// case every connection receives every update.
func NewGateway(h *hub.Hub, opts Options, verifier TokenVerifier, follows FollowingReader, log *zap.Logger) *Gateway {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Gateway{
		hub:        h,
		group:      opts.Group,
		sendBuffer: opts.SendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		verifier: verifier,
		follows:  follows,
		log:      log,
	}
}

// Serve handles one live connection until it closes.
// The ack is queued before the connection joins the group, so it is always
// the first frame. Missed updates are never replayed.
//
// GET /ws
func (g *Gateway) Serve(c *gin.Context) {
	filter, err := g.filterFor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		g.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	member := hub.NewBufferedMember(uuid.NewString(), g.sendBuffer, filter)
	_ = member.Deliver(connectedAck)

	if err := g.hub.Join(g.group, member); err != nil {
		member.Close()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	g.log.Debug("live connection joined", zap.String("id", member.ID()), zap.String("group", g.group))

	cl := &client{conn: conn, member: member, hub: g.hub, group: g.group, log: g.log}
	go cl.writePump()
	cl.readPump()
}

// filterFor builds the per-connection symbol filter from an optional token
// passed as "Authorization: Bearer" or the "token" query parameter.
func (g *Gateway) filterFor(c *gin.Context) (func(string) bool, error) {
	token, ok := jwtmw.BearerToken(c.Request)
	if !ok {
		token = c.Query("token")
	}
	if token == "" || g.verifier == nil || !g.verifier.Enabled() || g.follows == nil {
		return nil, nil
	}

	userID, err := g.verifier.ParseUserID(token)
	if err != nil {
		return nil, errors.New("invalid token")
	}
	codes, err := g.follows.FollowedSymbols(c.Request.Context(), userID)
	if err != nil {
		// フォロー情報が読めない場合は全件配信にフォールバック
		g.log.Warn("failed to load followed symbols", zap.Uint("user_id", userID), zap.Error(err))
		return nil, nil
	}

	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return func(symbol string) bool {
		_, ok := set[symbol]
		return ok
	}, nil
}

// client pumps frames between one WebSocket connection and its hub member.
type client struct {
	conn   *websocket.Conn
	member *hub.BufferedMember
	hub    *hub.Hub
	group  string
	log    *zap.Logger
}

// readPump discards inbound frames and keeps the read deadline fresh. Any
// read error ends the connection and leaves the group.
func (c *client) readPump() {
	defer func() {
		c.hub.Leave(c.group, c.member.ID())
		c.member.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", zap.String("id", c.member.ID()), zap.Error(err))
			}
			return
		}
	}
}

// writePump drains the member queue to the socket and sends pings. When the
// queue is closed (eviction or shutdown) it sends a close frame.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.member.Messages():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
