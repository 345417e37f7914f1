package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/youssefm/groupchat/internal/chat"
	"github.com/youssefm/groupchat/internal/group"
	"github.com/youssefm/groupchat/internal/metrics"
	"github.com/youssefm/groupchat/internal/user"
)

// TokenVerifier validates a raw token string and returns the user ID it
// was issued to
type TokenVerifier func(token string) (int64, error)

// GroupDirectory resolves groups for room checks
type GroupDirectory interface {
	GetByID(ctx context.Context, id int64) (*group.Group, error)
}

// MessageLog appends chat messages; the returned record carries ciphertext
type MessageLog interface {
	Append(ctx context.Context, groupID, senderID int64, plaintext string) (*chat.Message, error)
}

// UserDirectory resolves the connecting user; absent users are (nil, nil)
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Decryptor turns stored ciphertext back into plaintext for delivery
type Decryptor interface {
	Decrypt(text string) (string, error)
}

// Event is the wire envelope for both directions
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinRoomPayload struct {
	GroupID int64 `json:"groupId"`
}

type sendMessagePayload struct {
	GroupID int64  `json:"groupId"`
	Content string `json:"content"`
}

type roomPayload struct {
	GroupID int64 `json:"groupId"`
}

type presencePayload struct {
	GroupID  int64  `json:"groupId"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

type messagePayload struct {
	ID         int64     `json:"id"`
	GroupID    int64     `json:"groupId"`
	SenderID   int64     `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Gateway upgrades HTTP requests to websocket sessions and routes room
// events between authenticated clients. Room subscriptions live only for
// the duration of a connection; durable membership stays with the group
// service, which the gateway consults on every join and send.
type Gateway struct {
	hub    *Hub
	verify TokenVerifier
	groups GroupDirectory
	chats  MessageLog
	users  UserDirectory
	dec    Decryptor

	upgrader websocket.Upgrader
}

// New creates a new gateway
func New(verify TokenVerifier, groups GroupDirectory, chats MessageLog, users UserDirectory, dec Decryptor) *Gateway {
	return &Gateway{
		hub:    NewHub(),
		verify: verify,
		groups: groups,
		chats:  chats,
		users:  users,
		dec:    dec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS is the websocket entry point. Authentication happens after the
// upgrade so the client receives a structured error event before close
// instead of a bare handshake failure.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	var header http.Header
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		header = http.Header{"Sec-WebSocket-Protocol": []string{proto}}
	}

	conn, err := g.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Printf("gateway: upgrade failed: %v", err)
		return
	}

	token := extractToken(r)
	userID, err := g.verify(token)
	if err != nil {
		rejectConnection(conn, "unauthorized")
		return
	}

	u, err := g.users.GetByID(r.Context(), userID)
	if err != nil || u == nil {
		rejectConnection(conn, "unauthorized")
		return
	}

	client := newClient(uuid.NewString(), userID, conn)
	metrics.ActiveConnections.Inc()

	go client.writePump()
	g.sendEvent(client, "connected", map[string]any{"userId": userID})
	g.readPump(client, u)
}

// extractToken checks, in order: the Authorization header, the token query
// parameter, and the websocket subprotocol header.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimSpace(r.Header.Get("Sec-WebSocket-Protocol"))
}

// rejectConnection sends a terminal error event and closes the socket
func rejectConnection(conn *websocket.Conn, message string) {
	payload, _ := json.Marshal(Event{Event: "error", Data: mustMarshal(errorPayload{Message: message})})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, payload)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
	conn.Close()
}

// readPump processes inbound events until the connection drops, then tears
// down every room subscription the client held
func (g *Gateway) readPump(c *Client, u *user.User) {
	defer func() {
		rooms := g.hub.LeaveAll(c)
		for _, roomID := range rooms {
			g.broadcastPresence(roomID, c, "userLeft", u)
		}
		c.close()
		c.conn.Close()
		metrics.ActiveConnections.Dec()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("gateway: client %s read error: %v", c.id, err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			g.sendError(c, "invalid event")
			continue
		}

		switch ev.Event {
		case "joinRoom":
			g.handleJoinRoom(c, u, ev.Data)
		case "leaveRoom":
			g.handleLeaveRoom(c, u, ev.Data)
		case "sendMessage":
			g.handleSendMessage(c, u, ev.Data)
		default:
			g.sendError(c, "unknown event: "+ev.Event)
		}
	}
}

func (g *Gateway) handleJoinRoom(c *Client, u *user.User, data json.RawMessage) {
	var req joinRoomPayload
	if err := json.Unmarshal(data, &req); err != nil || req.GroupID == 0 {
		g.sendError(c, "invalid joinRoom payload")
		return
	}

	grp, err := g.groups.GetByID(context.Background(), req.GroupID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			g.sendError(c, "group not found")
		} else {
			log.Printf("gateway: joinRoom lookup failed: %v", err)
			g.sendError(c, "internal error")
		}
		return
	}
	if !grp.HasMember(c.userID) {
		g.sendError(c, "not a member of this group")
		return
	}

	g.hub.Join(req.GroupID, c)
	g.sendEvent(c, "joinedRoom", roomPayload{GroupID: req.GroupID})
	g.broadcastPresence(req.GroupID, c, "userJoined", u)
}

func (g *Gateway) handleLeaveRoom(c *Client, u *user.User, data json.RawMessage) {
	var req joinRoomPayload
	if err := json.Unmarshal(data, &req); err != nil || req.GroupID == 0 {
		g.sendError(c, "invalid leaveRoom payload")
		return
	}

	g.hub.Leave(req.GroupID, c)
	g.sendEvent(c, "leftRoom", roomPayload{GroupID: req.GroupID})
	g.broadcastPresence(req.GroupID, c, "userLeft", u)
}

func (g *Gateway) handleSendMessage(c *Client, u *user.User, data json.RawMessage) {
	var req sendMessagePayload
	if err := json.Unmarshal(data, &req); err != nil || req.GroupID == 0 || req.Content == "" {
		g.sendError(c, "invalid sendMessage payload")
		return
	}

	ctx := context.Background()

	// Membership is re-checked on every send: a kick or ban takes effect
	// immediately even though the room subscription itself is lazy.
	grp, err := g.groups.GetByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			g.sendError(c, "group not found")
		} else {
			log.Printf("gateway: sendMessage lookup failed: %v", err)
			g.sendError(c, "internal error")
		}
		return
	}
	if !grp.HasMember(c.userID) {
		g.hub.Leave(req.GroupID, c)
		g.sendError(c, "not a member of this group")
		return
	}

	m, err := g.chats.Append(ctx, req.GroupID, c.userID, req.Content)
	if err != nil {
		log.Printf("gateway: message append failed: %v", err)
		g.sendError(c, "failed to send message")
		return
	}

	plaintext, err := g.dec.Decrypt(m.Content)
	if err != nil {
		log.Printf("gateway: message decrypt failed: %v", err)
		g.sendError(c, "failed to send message")
		return
	}

	payload := messagePayload{
		ID:         m.ID,
		GroupID:    m.GroupID,
		SenderID:   m.SenderID,
		SenderName: u.Username,
		Content:    plaintext,
		Timestamp:  m.Timestamp,
	}
	g.hub.Broadcast(req.GroupID, encodeEvent("newMessage", payload))
	metrics.MessagesSent.Inc()
}

func (g *Gateway) broadcastPresence(roomID int64, from *Client, event string, u *user.User) {
	payload := presencePayload{GroupID: roomID, UserID: u.ID, Username: u.Username}
	g.hub.BroadcastExcept(roomID, from, encodeEvent(event, payload))
}

func (g *Gateway) sendEvent(c *Client, event string, data any) {
	c.enqueue(encodeEvent(event, data))
}

func (g *Gateway) sendError(c *Client, message string) {
	g.sendEvent(c, "error", errorPayload{Message: message})
}

func encodeEvent(event string, data any) []byte {
	payload, err := json.Marshal(Event{Event: event, Data: mustMarshal(data)})
	if err != nil {
		log.Printf("gateway: encode %s event failed: %v", event, err)
		return nil
	}
	return payload
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
