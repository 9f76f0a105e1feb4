package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"libchat/internal/api"
	"libchat/internal/token"
)

var (
	// ErrAuthRequired means no valid or refreshable credential exists; the
	// channel is never dialed.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotConnected means the session is not in the active state.
	ErrNotConnected = errors.New("chat session not connected")
)

// State is the session's connection state. Disconnected is terminal for an
// instance; a remount creates a new session.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Active
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Active:
		return "active"
	default:
		return "disconnected"
	}
}

const (
	defaultHistoryDelay = 500 * time.Millisecond
	defaultTypingDelay  = 1000 * time.Millisecond
	defaultHistoryLimit = 50
)

// Options configures a Session. Zero delays fall back to the protocol
// defaults (500ms history request, 1s typing stop).
type Options struct {
	WSURL     string
	Store     token.Store
	Refresher *token.Refresher
	API       *api.Client

	HistoryDelay time.Duration
	TypingDelay  time.Duration
	HistoryLimit int

	// OnUpdate, when set, is invoked after the view or connection state
	// changes. Called without the session lock held.
	OnUpdate func()
}

// Session owns one live chat channel: it authenticates on open, requests the
// backlog, dispatches typed events into the view, and sends outgoing frames.
// All mutation is serialized by mu; the read loop, the two timers, and the
// caller-facing API all take it.
type Session struct {
	opts   Options
	viewer Viewer

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	view         *View
	peerTyping   bool
	loggedOut    bool
	historyTimer *time.Timer
	typingTimer  *time.Timer
	closed       bool
}

func New(opts Options) *Session {
	if opts.HistoryDelay == 0 {
		opts.HistoryDelay = defaultHistoryDelay
	}
	if opts.TypingDelay == 0 {
		opts.TypingDelay = defaultTypingDelay
	}
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	return &Session{opts: opts, view: NewView()}
}

// Connect takes the session from Disconnected to Active: credential check,
// REST history snapshot, dial, auth frame, delayed get_history, read loop.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.state != Disconnected {
		s.mu.Unlock()
		return fmt.Errorf("connect: session already used (state %s)", s.state)
	}

	pair, ok := s.opts.Store.Load()
	if !ok || pair.Access == "" {
		s.mu.Unlock()
		return ErrAuthRequired
	}
	access := pair.Access
	s.state = Connecting
	s.mu.Unlock()

	if token.Expired(access) {
		fresh, err := s.opts.Refresher.Refresh(ctx)
		if err != nil {
			s.fail()
			return fmt.Errorf("%w: %v", ErrAuthRequired, err)
		}
		access = fresh
	}

	// Claim decode failure degrades to an anonymous plain user rather than
	// blocking the channel; the server remains the authority.
	claims, err := token.DecodeClaims(access)
	if err == nil {
		s.viewer = Viewer{UserID: claims.UserID, Email: claims.Email, Admin: claims.Role == "admin"}
	} else {
		s.viewer = Viewer{}
	}

	// The live channel does not persist user messages for the sender, so the
	// REST backlog is fetched up front. The chat_history event replaces it
	// later regardless of which arrives first.
	if history, err := s.opts.API.ChatHistory(ctx, s.opts.HistoryLimit); err != nil {
		log.Printf("chat: history fetch failed: %v", err)
	} else {
		s.mu.Lock()
		s.view.SetHistory(history)
		s.mu.Unlock()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.opts.WSURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.fail()
		return fmt.Errorf("dial %s: %w", s.opts.WSURL, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("connect: session closed")
	}
	s.conn = conn
	s.state = Authenticating
	_ = conn.WriteJSON(clientFrame{Type: TypeAuth, Token: access})
	s.historyTimer = time.AfterFunc(s.opts.HistoryDelay, s.requestHistory)
	s.state = Active
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

func (s *Session) notify() {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate()
	}
}

func (s *Session) fail() {
	s.mu.Lock()
	s.state = Disconnected
	s.mu.Unlock()
}

func (s *Session) requestHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active || s.conn == nil {
		return
	}
	_ = s.conn.WriteJSON(clientFrame{Type: TypeGetHistory, Token: s.accessLocked()})
}

// accessLocked reads the current access token for an outgoing frame. A
// cleared store yields an empty token; the server answers with auth_error.
func (s *Session) accessLocked() string {
	pair, ok := s.opts.Store.Load()
	if !ok {
		return ""
	}
	return pair.Access
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleChannelClosed()
			return
		}
		s.handleFrame(data)
	}
}

// handleChannelClosed transitions to the terminal state. No reconnect is
// attempted; the surrounding UI shows a disconnected indicator until remount.
func (s *Session) handleChannelClosed() {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	s.peerTyping = false
	s.stopTimersLocked()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) stopTimersLocked() {
	if s.historyTimer != nil {
		s.historyTimer.Stop()
		s.historyTimer = nil
	}
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *Session) handleFrame(data []byte) {
	var f serverFrame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("chat: dropping malformed frame: %v", err)
		return
	}

	switch f.Type {
	case TypeUserMessage:
		s.appendLive(f, false)
	case TypeAdminMessage:
		s.appendLive(f, true)
	case TypeChatHistory:
		s.mu.Lock()
		s.view.SetHistory(f.Messages)
		s.mu.Unlock()
		s.notify()
	case TypeMessageSent:
		log.Printf("chat: message %d delivered", f.MessageID)
	case TypeUserConnect:
		log.Printf("chat: user %d connected", f.UserID)
	case TypeTypingStart:
		s.setPeerTyping(true)
	case TypeTypingStop:
		s.setPeerTyping(false)
	case TypeAuthError:
		log.Printf("chat: channel auth rejected: %s", f.Message)
		s.forceLogout()
	case TypeAuthSuccess, TypeConnEstab:
		log.Printf("chat: %s: %s", f.Type, f.Message)
	case TypeServerError:
		log.Printf("chat: server error: %s", f.Message)
	default:
		log.Printf("chat: dropping unknown frame type %q", f.Type)
	}
}

func (s *Session) appendLive(f serverFrame, admin bool) {
	now := time.Now()
	id := f.MessageID
	if id == 0 {
		id = now.UnixMilli()
	}
	created := now
	if f.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, f.Timestamp); err == nil {
			created = t
		}
	}
	s.mu.Lock()
	s.view.Append(Entry{
		ID:        id,
		UserID:    f.UserID,
		Text:      f.Message,
		Admin:     admin,
		CreatedAt: created,
		Email:     f.Email,
	})
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setPeerTyping(active bool) {
	s.mu.Lock()
	s.peerTyping = active
	s.mu.Unlock()
	s.notify()
}

// forceLogout handles the server's auth_error: all credential slots are
// cleared and the session ends.
func (s *Session) forceLogout() {
	_ = s.opts.Store.Clear()
	s.mu.Lock()
	s.loggedOut = true
	s.state = Disconnected
	s.stopTimersLocked()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
	s.notify()
}

// Send delivers one outgoing message. Admin viewers reply over the channel
// to the most recent non-admin sender; plain users send over the channel,
// get an immediate optimistic echo, and are additionally persisted over REST.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.state != Active || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}

	if s.viewer.Admin {
		f := clientFrame{Type: TypeAdminMessage, Token: s.accessLocked(), Message: text}
		if id, ok := s.view.LastUserID(); ok {
			f.TargetUserID = &id
		}
		err := s.conn.WriteJSON(f)
		s.mu.Unlock()
		return err
	}

	if err := s.conn.WriteJSON(clientFrame{Type: TypeMessage, Token: s.accessLocked(), Message: text}); err != nil {
		s.mu.Unlock()
		return err
	}
	now := time.Now()
	s.view.Append(Entry{
		ID:        now.UnixMilli(),
		UserID:    s.viewer.UserID,
		Text:      text,
		CreatedAt: now,
		Email:     s.viewer.Email,
	})
	s.mu.Unlock()
	s.notify()

	if _, err := s.opts.API.SendChatMessage(ctx, text); err != nil {
		log.Printf("chat: persisting message over REST failed: %v", err)
	}
	return nil
}

// TypingInput signals local typing. Every call sends typing_start
// (at-least-once is fine) and re-arms the single stop timer, so exactly one
// typing_stop follows the last input by the typing delay.
func (s *Session) TypingInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active || s.conn == nil {
		return
	}
	_ = s.conn.WriteJSON(clientFrame{Type: TypeTypingStart, Token: s.accessLocked()})
	if s.typingTimer != nil {
		s.typingTimer.Reset(s.opts.TypingDelay)
		return
	}
	s.typingTimer = time.AfterFunc(s.opts.TypingDelay, s.sendTypingStop)
}

func (s *Session) sendTypingStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typingTimer = nil
	if s.state != Active || s.conn == nil {
		return
	}
	_ = s.conn.WriteJSON(clientFrame{Type: TypeTypingStop, Token: s.accessLocked()})
}

// Close tears the session down. Safe to call more than once; events arriving
// afterwards are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.state = Disconnected
	s.peerTyping = false
	s.stopTimersLocked()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Connected() bool {
	return s.State() == Active
}

func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

// LoggedOut reports whether the server forced a logout via auth_error.
func (s *Session) LoggedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedOut
}

func (s *Session) Viewer() Viewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewer
}

// Entries returns the reconciled log.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Entries()
}

// Groups returns the reconciled log grouped by calendar date.
func (s *Session) Groups() []DateGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Groups()
}
