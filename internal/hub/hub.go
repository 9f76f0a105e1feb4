package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one authenticated channel. ID distinguishes multiple
// connections from the same user.
type Connection struct {
	ID     string
	UserID int
	Admin  bool
	Writer Writer
}

// Hub tracks authenticated chat connections: a per-user map for targeted
// delivery and an admin set for fanout of user messages.
type Hub struct {
	mu     sync.RWMutex
	users  map[int]map[*Connection]struct{}
	admins map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{
		users:  make(map[int]map[*Connection]struct{}),
		admins: make(map[*Connection]struct{}),
	}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.Admin {
		h.admins[conn] = struct{}{}
		return
	}
	if h.users[conn.UserID] == nil {
		h.users[conn.UserID] = make(map[*Connection]struct{})
	}
	h.users[conn.UserID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.Admin {
		delete(h.admins, conn)
		return
	}
	set := h.users[conn.UserID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.users, conn.UserID)
	}
}

// SendToUser delivers to every connection of one user. Returns whether at
// least one delivery succeeded.
func (h *Hub) SendToUser(userID int, message []byte) bool {
	h.mu.RLock()
	set := h.users[userID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	failed := h.write(conns, message)
	for _, c := range failed {
		h.Unregister(c)
	}
	return len(conns) > len(failed)
}

// BroadcastAdmins delivers to every connected administrator.
func (h *Hub) BroadcastAdmins(message []byte) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.admins))
	for c := range h.admins {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range h.write(conns, message) {
		h.Unregister(c)
	}
}

// write sends to each connection and returns the ones that failed; failed
// connections are closed.
func (h *Hub) write(conns []*Connection, message []byte) []*Connection {
	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			_ = c.Writer.Close()
			failed = append(failed, c)
		}
	}
	return failed
}
