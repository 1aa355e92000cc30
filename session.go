package chainnet

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNoSession is returned when a node has no tracked session
	ErrNoSession = errors.New("no session for node")
	// ErrSessionExists is returned when a node already has a tracked session
	ErrSessionExists = errors.New("session already open for node")
)

// Stream identifies which remote output stream a line came from
type Stream int

// Remote output streams
const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

type (
	// OutputFunc receives remote output one line at a time. It may be called
	// concurrently for the two streams.
	OutputFunc func(Stream, string)

	// Session is an open remote shell on a single node
	Session interface {
		// Exec runs command and blocks until it exits. A command that exits
		// non-zero is an error.
		Exec(ctx context.Context, command string, out OutputFunc) error
		Close() error
	}

	// Dialer opens sessions to nodes
	Dialer interface {
		Dial(context.Context, *Node) (Session, error)
	}

	// Sessions tracks the open session of each node, keyed by node id. It is
	// safe for concurrent use.
	Sessions struct {
		mu       sync.RWMutex
		sessions map[string]Session
	}
)

// NewSessions creates an empty session table
func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]Session),
	}
}

// Add tracks s for the node. A node may only have one session.
func (t *Sessions) Add(nodeID string, s Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[nodeID]; ok {
		return ErrSessionExists
	}
	t.sessions[nodeID] = s
	return nil
}

// Get returns the session for the node
func (t *Sessions) Get(nodeID string) (Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[nodeID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Remove untracks and returns the session for the node. The session is not
// closed.
func (t *Sessions) Remove(nodeID string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[nodeID]
	if !ok {
		return nil, ErrNoSession
	}
	delete(t.sessions, nodeID)
	return s, nil
}

// Len is the number of tracked sessions
func (t *Sessions) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// IDs returns the sorted ids of nodes with a tracked session
func (t *Sessions) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
