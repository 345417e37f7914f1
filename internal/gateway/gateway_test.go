package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/youssefm/groupchat/internal/chat"
	"github.com/youssefm/groupchat/internal/group"
	"github.com/youssefm/groupchat/internal/user"
)

// fakeVerifier accepts tokens of the form "token-<userID>"
func fakeVerifier(tokens map[string]int64) TokenVerifier {
	return func(token string) (int64, error) {
		id, ok := tokens[token]
		if !ok {
			return 0, errors.New("invalid token")
		}
		return id, nil
	}
}

type fakeGroups struct {
	mu      sync.Mutex
	members map[int64][]int64
}

func (f *fakeGroups) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids, ok := f.members[id]
	if !ok {
		return nil, group.ErrGroupNotFound
	}
	g := &group.Group{ID: id, Name: "room", Type: group.TypePublic}
	for _, uid := range ids {
		g.Members = append(g.Members, &user.User{ID: uid})
	}
	return g, nil
}

func (f *fakeGroups) setMembers(groupID int64, userIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[groupID] = userIDs
}

// fakeChats stores messages with a reversible marker in place of real
// encryption
type fakeChats struct {
	mu       sync.Mutex
	nextID   int64
	messages []*chat.Message
}

func (f *fakeChats) Append(ctx context.Context, groupID, senderID int64, plaintext string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := &chat.Message{
		ID:        f.nextID,
		GroupID:   groupID,
		SenderID:  senderID,
		Content:   "enc:" + plaintext,
		Timestamp: time.Now(),
	}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeChats) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type markerDecryptor struct{}

func (markerDecryptor) Decrypt(text string) (string, error) {
	if !strings.HasPrefix(text, "enc:") {
		return "", errors.New("not a ciphertext")
	}
	return strings.TrimPrefix(text, "enc:"), nil
}

type fakeUsers struct {
	users map[int64]*user.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return f.users[id], nil
}

type testEnv struct {
	server *httptest.Server
	groups *fakeGroups
	chats  *fakeChats
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	groups := &fakeGroups{members: map[int64][]int64{}}
	chats := &fakeChats{}
	users := &fakeUsers{users: map[int64]*user.User{
		1: {ID: 1, Username: "alice"},
		2: {ID: 2, Username: "bob"},
		3: {ID: 3, Username: "carol"},
	}}
	verify := fakeVerifier(map[string]int64{
		"token-1": 1,
		"token-2": 2,
		"token-3": 3,
	})

	gw := New(verify, groups, chats, users, markerDecryptor{})
	server := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	t.Cleanup(server.Close)
	return &testEnv{server: server, groups: groups, chats: chats}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http")
}

// dial connects with the token in the Authorization header and waits for
// the connected event
func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ev, data := readEvent(t, conn)
	if ev != "connected" {
		t.Fatalf("first event = %q, want connected", ev)
	}
	var payload struct {
		UserID int64 `json:"userId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode connected payload: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev.Event, ev.Data
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	payload, _ := json.Marshal(Event{Event: event, Data: raw})
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func expectError(t *testing.T, conn *websocket.Conn, substr string) {
	t.Helper()
	ev, data := readEvent(t, conn)
	if ev != "error" {
		t.Fatalf("event = %q, want error", ev)
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if !strings.Contains(payload.Message, substr) {
		t.Fatalf("error = %q, want it to contain %q", payload.Message, substr)
	}
}

func TestConnectTokenSources(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header http.Header
		url    string
	}{
		{
			name:   "authorization header",
			header: http.Header{"Authorization": []string{"Bearer token-1"}},
			url:    env.wsURL(),
		},
		{
			name: "query parameter",
			url:  env.wsURL() + "?token=token-1",
		},
		{
			name:   "websocket subprotocol",
			header: http.Header{"Sec-WebSocket-Protocol": []string{"token-1"}},
			url:    env.wsURL(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(tt.url, tt.header)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer conn.Close()

			ev, data := readEvent(t, conn)
			if ev != "connected" {
				t.Fatalf("event = %q, want connected", ev)
			}
			var payload struct {
				UserID int64 `json:"userId"`
			}
			if err := json.Unmarshal(data, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload.UserID != 1 {
				t.Errorf("userId = %d, want 1", payload.UserID)
			}
		})
	}
}

func TestConnectHeaderBeatsQueryParam(t *testing.T) {
	env := newTestEnv(t)
	header := http.Header{"Authorization": []string{"Bearer token-2"}}
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL()+"?token=token-1", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, data := readEvent(t, conn)
	var payload struct {
		UserID int64 `json:"userId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.UserID != 2 {
		t.Errorf("userId = %d, want 2 (header token wins)", payload.UserID)
	}
}

func TestConnectInvalidToken(t *testing.T) {
	env := newTestEnv(t)
	header := http.Header{"Authorization": []string{"Bearer bogus"}}
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	expectError(t, conn, "unauthorized")

	// The connection is then closed by the server.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed after rejection")
	}
}

func TestJoinRoomRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	env.groups.setMembers(7, 1)

	conn := env.dial(t, "token-2")
	send(t, conn, "joinRoom", map[string]any{"groupId": 7})
	expectError(t, conn, "not a member")

	// Scoped errors keep the session usable.
	env.groups.setMembers(7, 1, 2)
	send(t, conn, "joinRoom", map[string]any{"groupId": 7})
	ev, _ := readEvent(t, conn)
	if ev != "joinedRoom" {
		t.Fatalf("event = %q, want joinedRoom", ev)
	}
}

func TestJoinRoomUnknownGroup(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "token-1")
	send(t, conn, "joinRoom", map[string]any{"groupId": 42})
	expectError(t, conn, "group not found")
}

func TestMessageBroadcast(t *testing.T) {
	env := newTestEnv(t)
	env.groups.setMembers(7, 1, 2)

	alice := env.dial(t, "token-1")
	bob := env.dial(t, "token-2")

	send(t, alice, "joinRoom", map[string]any{"groupId": 7})
	if ev, _ := readEvent(t, alice); ev != "joinedRoom" {
		t.Fatalf("event = %q, want joinedRoom", ev)
	}

	send(t, bob, "joinRoom", map[string]any{"groupId": 7})
	if ev, _ := readEvent(t, bob); ev != "joinedRoom" {
		t.Fatalf("event = %q, want joinedRoom", ev)
	}
	// Alice sees bob arrive.
	if ev, _ := readEvent(t, alice); ev != "userJoined" {
		t.Fatalf("event = %q, want userJoined", ev)
	}

	send(t, alice, "sendMessage", map[string]any{"groupId": 7, "content": "hi all"})

	var got struct {
		ID         int64  `json:"id"`
		GroupID    int64  `json:"groupId"`
		SenderID   int64  `json:"senderId"`
		SenderName string `json:"senderName"`
		Content    string `json:"content"`
	}
	for _, conn := range []*websocket.Conn{alice, bob} {
		ev, data := readEvent(t, conn)
		if ev != "newMessage" {
			t.Fatalf("event = %q, want newMessage", ev)
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if got.Content != "hi all" {
			t.Errorf("content = %q, want %q (delivered plaintext)", got.Content, "hi all")
		}
		if got.SenderID != 1 || got.SenderName != "alice" {
			t.Errorf("sender = %d/%q, want 1/alice", got.SenderID, got.SenderName)
		}
		if got.GroupID != 7 {
			t.Errorf("groupId = %d, want 7", got.GroupID)
		}
	}

	// The message was persisted through the log, not just broadcast.
	if env.chats.count() != 1 {
		t.Errorf("stored messages = %d, want 1", env.chats.count())
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	env.groups.setMembers(7, 1, 2)

	bob := env.dial(t, "token-2")
	send(t, bob, "joinRoom", map[string]any{"groupId": 7})
	if ev, _ := readEvent(t, bob); ev != "joinedRoom" {
		t.Fatalf("event = %q, want joinedRoom", ev)
	}

	// Bob is removed from the group while still subscribed to the room.
	env.groups.setMembers(7, 1)

	send(t, bob, "sendMessage", map[string]any{"groupId": 7, "content": "still here?"})
	expectError(t, bob, "not a member")

	if env.chats.count() != 0 {
		t.Errorf("stored messages = %d, want 0", env.chats.count())
	}
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	env := newTestEnv(t)
	env.groups.setMembers(7, 1, 2)

	alice := env.dial(t, "token-1")
	bob := env.dial(t, "token-2")

	for _, conn := range []*websocket.Conn{alice, bob} {
		send(t, conn, "joinRoom", map[string]any{"groupId": 7})
		if ev, _ := readEvent(t, conn); ev != "joinedRoom" {
			t.Fatalf("event = %q, want joinedRoom", ev)
		}
	}
	if ev, _ := readEvent(t, alice); ev != "userJoined" {
		t.Fatalf("event = %q, want userJoined", ev)
	}

	send(t, bob, "leaveRoom", map[string]any{"groupId": 7})
	if ev, _ := readEvent(t, bob); ev != "leftRoom" {
		t.Fatalf("event = %q, want leftRoom", ev)
	}
	if ev, _ := readEvent(t, alice); ev != "userLeft" {
		t.Fatalf("event = %q, want userLeft", ev)
	}

	send(t, alice, "sendMessage", map[string]any{"groupId": 7, "content": "anyone?"})
	if ev, _ := readEvent(t, alice); ev != "newMessage" {
		t.Fatalf("event = %q, want newMessage", ev)
	}

	// Bob gets nothing further.
	bob.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Error("expected no delivery after leaving the room")
	}
}

func TestDisconnectNotifiesRooms(t *testing.T) {
	env := newTestEnv(t)
	env.groups.setMembers(7, 1, 2)

	alice := env.dial(t, "token-1")
	bob := env.dial(t, "token-2")

	for _, conn := range []*websocket.Conn{alice, bob} {
		send(t, conn, "joinRoom", map[string]any{"groupId": 7})
		if ev, _ := readEvent(t, conn); ev != "joinedRoom" {
			t.Fatalf("event = %q, want joinedRoom", ev)
		}
	}
	if ev, _ := readEvent(t, alice); ev != "userJoined" {
		t.Fatalf("event = %q, want userJoined", ev)
	}

	bob.Close()

	ev, data := readEvent(t, alice)
	if ev != "userLeft" {
		t.Fatalf("event = %q, want userLeft", ev)
	}
	var payload struct {
		UserID int64 `json:"userId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.UserID != 2 {
		t.Errorf("userId = %d, want 2", payload.UserID)
	}
}

func TestUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "token-1")
	send(t, conn, "dance", map[string]any{})
	expectError(t, conn, "unknown event")
}
