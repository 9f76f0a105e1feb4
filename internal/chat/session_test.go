package chat

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

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"libchat/internal/api"
	"libchat/internal/model"
	"libchat/internal/token"
)

// fakeBackend serves the REST endpoints and the live channel the session
// talks to, recording everything the client sends.
type fakeBackend struct {
	t       *testing.T
	srv     *httptest.Server
	history []model.ChatMessage

	mu     sync.Mutex
	frames []clientFrame
	posts  int
	conn   *websocket.Conn

	ready chan struct{}
}

var testUpgrader = websocket.Upgrader{}

func newBackend(t *testing.T, history []model.ChatMessage) *fakeBackend {
	b := &fakeBackend{t: t, history: history, ready: make(chan struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			b.mu.Lock()
			b.posts++
			b.mu.Unlock()
			json.NewEncoder(w).Encode(model.ChatMessage{ID: 99})
			return
		}
		json.NewEncoder(w).Encode(b.history)
	})
	mux.HandleFunc("/ws", b.serveWS)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	close(b.ready)

	for {
		var f clientFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		// Record and reply under one lock hold so that once a test observes
		// the frame, the chat_history reply is already ahead of any push on
		// the wire.
		b.mu.Lock()
		b.frames = append(b.frames, f)
		if f.Type == TypeGetHistory {
			if err := conn.WriteJSON(serverFrame{Type: TypeChatHistory, Messages: b.history}); err != nil {
				b.t.Logf("backend write: %v", err)
			}
		}
		b.mu.Unlock()
	}
}

// push writes a server frame; the mutex serializes it against the read
// loop's replies on the shared connection.
func (b *fakeBackend) push(frame serverFrame) {
	<-b.ready
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.WriteJSON(frame); err != nil {
		b.t.Logf("backend write: %v", err)
	}
}

func (b *fakeBackend) pushRaw(data []byte) {
	<-b.ready
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		b.t.Logf("backend write: %v", err)
	}
}

func (b *fakeBackend) closeConn() {
	<-b.ready
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn.Close()
}

func (b *fakeBackend) countFrames(typ string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, f := range b.frames {
		if f.Type == typ {
			n++
		}
	}
	return n
}

func (b *fakeBackend) lastFrame(typ string) (clientFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.frames) - 1; i >= 0; i-- {
		if b.frames[i].Type == typ {
			return b.frames[i], true
		}
	}
	return clientFrame{}, false
}

func (b *fakeBackend) postCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.posts
}

func (b *fakeBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
}

func signClaims(t *testing.T, userID int, email, role string) string {
	t.Helper()
	claims := token.Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func newTestSession(t *testing.T, b *fakeBackend, access string) (*Session, token.Store) {
	t.Helper()
	store := token.NewMemoryStore()
	store.Save(access, "r1")
	refresher := token.NewRefresher(b.srv.URL, b.srv.Client(), store)
	client := api.New(b.srv.URL, b.srv.Client(), store, refresher)

	s := New(Options{
		WSURL:        b.wsURL(),
		Store:        store,
		Refresher:    refresher,
		API:          client,
		HistoryDelay: 20 * time.Millisecond,
		TypingDelay:  50 * time.Millisecond,
	})
	t.Cleanup(func() { s.Close() })
	return s, store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_ConnectAndSend(t *testing.T) {
	history := []model.ChatMessage{
		{ID: 1, UserID: 3, Message: "hi", CreatedAt: time.Now()},
		{ID: 2, Message: "hello, how can I help?", IsAdmin: 1, CreatedAt: time.Now()},
	}
	b := newBackend(t, history)
	s, _ := newTestSession(t, b, signClaims(t, 3, "reader@example.com", "user"))

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.Connected() {
		t.Fatalf("state = %s, want active", s.State())
	}
	if got := s.Viewer(); got.UserID != 3 || got.Admin {
		t.Fatalf("viewer = %+v", got)
	}

	// The REST backlog lands before Connect returns.
	if got := len(s.Entries()); got != 2 {
		t.Fatalf("entries after connect = %d, want 2", got)
	}

	// First frame on the channel is auth with the access token.
	waitFor(t, "auth frame", func() bool { return b.countFrames(TypeAuth) == 1 })
	if f, _ := b.lastFrame(TypeAuth); f.Token == "" {
		t.Fatalf("auth frame missing token")
	}

	// get_history follows after the delay; the chat_history reply replaces
	// the log with the same two messages.
	waitFor(t, "get_history frame", func() bool { return b.countFrames(TypeGetHistory) == 1 })
	waitFor(t, "history reconciliation", func() bool { return len(s.Entries()) == 2 })

	if err := s.Send(ctx, "it is about my loan"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Optimistic echo is visible immediately.
	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries after send = %d, want 3", len(entries))
	}
	echo := entries[2]
	if echo.Text != "it is about my loan" || echo.UserID != 3 || echo.Admin || echo.ID == 0 {
		t.Fatalf("unexpected echo: %+v", echo)
	}

	waitFor(t, "channel message frame", func() bool { return b.countFrames(TypeMessage) == 1 })
	waitFor(t, "REST persistence", func() bool { return b.postCount() == 1 })
}

func TestSession_TypingStopFiresOnce(t *testing.T) {
	b := newBackend(t, nil)
	s, _ := newTestSession(t, b, signClaims(t, 3, "reader@example.com", "user"))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Each input re-arms the stop timer, so a burst yields starts per input
	// but exactly one stop after the burst ends.
	for i := 0; i < 5; i++ {
		s.TypingInput()
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, "typing_stop", func() bool { return b.countFrames(TypeTypingStop) == 1 })
	time.Sleep(100 * time.Millisecond)

	if got := b.countFrames(TypeTypingStart); got != 5 {
		t.Fatalf("typing_start frames = %d, want 5", got)
	}
	if got := b.countFrames(TypeTypingStop); got != 1 {
		t.Fatalf("typing_stop frames = %d, want exactly 1", got)
	}
}

func TestSession_AdminReplyTargetsLastSender(t *testing.T) {
	history := []model.ChatMessage{
		{ID: 1, UserID: 3, Message: "first", CreatedAt: time.Now()},
		{ID: 2, UserID: 5, Message: "second", CreatedAt: time.Now()},
		{ID: 3, UserID: 3, Message: "third", CreatedAt: time.Now()},
		{ID: 4, Message: "noted", IsAdmin: 1, CreatedAt: time.Now()},
	}
	b := newBackend(t, history)
	s, _ := newTestSession(t, b, signClaims(t, 1, "admin@example.com", "admin"))

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := s.Viewer(); !got.Admin {
		t.Fatalf("viewer = %+v, want admin", got)
	}

	if err := s.Send(ctx, "replying now"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, "admin_message frame", func() bool { return b.countFrames(TypeAdminMessage) == 1 })
	f, _ := b.lastFrame(TypeAdminMessage)
	if f.TargetUserID == nil || *f.TargetUserID != 3 {
		t.Fatalf("target = %v, want 3 (most recent non-admin sender)", f.TargetUserID)
	}

	// Admin sends are not echoed locally and not persisted over REST; the
	// server broadcasts them back.
	if got := len(s.Entries()); got != 4 {
		t.Fatalf("entries = %d, want 4 (no local echo)", got)
	}
	if got := b.postCount(); got != 0 {
		t.Fatalf("REST posts = %d, want 0", got)
	}
}

func TestSession_LiveMessagesAppend(t *testing.T) {
	b := newBackend(t, nil)
	s, _ := newTestSession(t, b, signClaims(t, 3, "reader@example.com", "user"))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, "history round trip", func() bool { return b.countFrames(TypeGetHistory) == 1 })

	b.push(serverFrame{
		Type:      TypeAdminMessage,
		MessageID: 42,
		Message:   "hello from support",
		Timestamp: time.Now().Format(time.RFC3339),
	})
	waitFor(t, "admin message", func() bool { return len(s.Entries()) == 1 })

	// No id on the frame: a provisional time-derived id is assigned.
	b.push(serverFrame{Type: TypeUserMessage, UserID: 5, Message: "me too"})
	waitFor(t, "user message", func() bool { return len(s.Entries()) == 2 })

	entries := s.Entries()
	if entries[0].ID != 42 || !entries[0].Admin {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].ID == 0 || entries[1].Admin {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestSession_PeerTyping(t *testing.T) {
	b := newBackend(t, nil)
	s, _ := newTestSession(t, b, signClaims(t, 3, "reader@example.com", "user"))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	b.push(serverFrame{Type: TypeTypingStart})
	waitFor(t, "peer typing on", func() bool { return s.PeerTyping() })
	b.push(serverFrame{Type: TypeTypingStop})
	waitFor(t, "peer typing off", func() bool { return !s.PeerTyping() })
}

func TestSession_AuthErrorForcesLogout(t *testing.T) {
	b := newBackend(t, nil)
	s, store := newTestSession(t, b, signClaims(t, 3, "reader@example.com", "user"))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	b.push(serverFrame{Type: TypeAuthError, Message: "token revoked"})

	waitFor(t, "forced logout", func() bool { return s.LoggedOut() })
	if s.Connected() {
		t.Fatalf("session still active after auth_error")
	}
	if _, ok := store.Load(); ok {
		t.Fatalf("credentials survived auth_error")
	}
}

func TestSession_MalformedFrameDropped(t *testing.T) {
	b := newBackend(t, nil)
	s, _ := newTestSession(t, b, signClaims(t, 3, "reader@example.com", "user"))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, "history round trip", func() bool { return b.countFrames(TypeGetHistory) == 1 })

	b.pushRaw([]byte(`{"type": "user_message", "message":`))

	// The channel survives; a valid frame afterwards still lands.
	b.push(serverFrame{Type: TypeUserMessage, UserID: 5, Message: "still here"})
	waitFor(t, "frame after malformed input", func() bool { return len(s.Entries()) == 1 })
	if !s.Connected() {
		t.Fatalf("malformed frame tore down the channel")
	}
}

func TestSession_DisconnectIsTerminal(t *testing.T) {
	b := newBackend(t, nil)
	s, _ := newTestSession(t, b, signClaims(t, 3, "reader@example.com", "user"))

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	b.closeConn()
	waitFor(t, "disconnect", func() bool { return !s.Connected() })

	if err := s.Send(ctx, "too late"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send after disconnect: %v, want ErrNotConnected", err)
	}
	if err := s.Connect(ctx); err == nil {
		t.Fatalf("reconnect on a used session must fail")
	}
}

func TestSession_NoCredentials(t *testing.T) {
	b := newBackend(t, nil)
	store := token.NewMemoryStore()
	refresher := token.NewRefresher(b.srv.URL, b.srv.Client(), store)
	client := api.New(b.srv.URL, b.srv.Client(), store, refresher)

	s := New(Options{WSURL: b.wsURL(), Store: store, Refresher: refresher, API: client})
	if err := s.Connect(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Connect = %v, want ErrAuthRequired", err)
	}
}
