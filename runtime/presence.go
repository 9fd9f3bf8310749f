package runtime

import (
	"sort"
	"sync"
)

// PresenceRegistry maps an online username to its connection.
// At most one connection per username, last registration wins.
type PresenceRegistry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{connections: make(map[string]*Connection)}
}

// Register binds username to conn, superseding any other connection for that username.
// If conn was registered under another name, that name is released when it still points to conn.
// An empty username or a nil connection is a no-op.
func (r *PresenceRegistry) Register(username string, conn *Connection) {
	if username == "" || conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := conn.bind(username)
	if previous != "" && previous != username && r.connections[previous] == conn {
		delete(r.connections, previous)
	}
	r.connections[username] = conn
}

// Lookup returns the connection currently registered for username.
func (r *PresenceRegistry) Lookup(username string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[username]
	return conn, ok
}

// Unregister removes the mapping captured by conn at registration time.
// A mapping that has since been taken over by another connection is left untouched.
func (r *PresenceRegistry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	username := conn.Username()
	if username == "" {
		return
	}
	if r.connections[username] == conn {
		delete(r.connections, username)
	}
}

func (r *PresenceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Usernames returns the online usernames, sorted.
func (r *PresenceRegistry) Usernames() []string {
	r.mu.RLock()
	usernames := make([]string, 0, len(r.connections))
	for username := range r.connections {
		usernames = append(usernames, username)
	}
	r.mu.RUnlock()
	sort.Strings(usernames)
	return usernames
}

// Connections returns a snapshot of the registered connections.
func (r *PresenceRegistry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}
