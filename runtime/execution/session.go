package execution

import (
	"sync"
	"time"

	"github.com/arcflow/arcflow/internal/clock"
	"github.com/arcflow/arcflow/internal/idgen"
)

// HistoryEntry records one executed node in session order.
type HistoryEntry struct {
	Node    string       `json:"node"`
	Status  ResultStatus `json:"status"`
	Summary string       `json:"summary,omitempty"`
	At      time.Time    `json:"at"`
}

// Session is the unit of stateful execution over a graph: its memory, its
// ordered history, the lifecycle status and, when paused, the entry point a
// resume must name.
type Session struct {
	ID          string
	GraphID     string
	Status      Status
	CurrentNode string
	// PendingResume names the only entry point accepted by a resume while
	// the session is paused.
	PendingResume string
	Memory        *Memory
	History       []HistoryEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// LastErr holds the typed error of the most recent failed node result so
	// callers can match it with errors.As.  It is process local and not part
	// of the persisted snapshot.
	LastErr error

	mux    sync.Mutex
	active bool
}

// NewSession creates a running session positioned at the given entry node.
func NewSession(graphID, entryNode string) *Session {
	now := clock.Now()
	return &Session{
		ID:          idgen.New(),
		GraphID:     graphID,
		Status:      StatusRunning,
		CurrentNode: entryNode,
		Memory:      NewMemory(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Acquire claims the session for a single run loop.  It returns false when
// another invocation is already driving the session.
func (s *Session) Acquire() bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.active {
		return false
	}
	s.active = true
	return true
}

// Release returns the session to the idle state.
func (s *Session) Release() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.active = false
}

// Record appends a history entry for an executed node and bumps UpdatedAt.
// A failed result is remembered in LastErr until a later result succeeds.
func (s *Session) Record(result *NodeResult) {
	s.History = append(s.History, HistoryEntry{
		Node:    result.Node,
		Status:  result.Status,
		Summary: result.Summary(),
		At:      clock.Now(),
	})
	s.LastErr = result.Err
	s.UpdatedAt = clock.Now()
}

// Pause suspends the session at the given node and records the entry point a
// resume must present.
func (s *Session) Pause(node, resumeEntry string) {
	s.Status = StatusPaused
	s.CurrentNode = node
	s.PendingResume = resumeEntry
	s.UpdatedAt = clock.Now()
}

// Complete marks the session terminal after a terminal node succeeded.
func (s *Session) Complete(node string) {
	s.Status = StatusCompleted
	s.CurrentNode = node
	s.PendingResume = ""
	s.UpdatedAt = clock.Now()
}

// Fail marks the session terminal after an unrecoverable failure.
func (s *Session) Fail(node string) {
	s.Status = StatusFailed
	s.CurrentNode = node
	s.PendingResume = ""
	s.UpdatedAt = clock.Now()
}

// Snapshot is the serializable form of a session persisted by the DAO layer
// and exchanged with external stores.
type Snapshot struct {
	ID            string                 `json:"id"`
	GraphID       string                 `json:"graphId"`
	Status        Status                 `json:"status"`
	CurrentNode   string                 `json:"currentNode,omitempty"`
	PendingResume string                 `json:"pendingResume,omitempty"`
	Memory        map[string]interface{} `json:"memory,omitempty"`
	History       []HistoryEntry         `json:"history,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// Snapshot captures the session state for persistence.
func (s *Session) Snapshot() *Snapshot {
	return &Snapshot{
		ID:            s.ID,
		GraphID:       s.GraphID,
		Status:        s.Status,
		CurrentNode:   s.CurrentNode,
		PendingResume: s.PendingResume,
		Memory:        s.Memory.Snapshot(),
		History:       append([]HistoryEntry(nil), s.History...),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// Restore rebuilds a live session from a persisted snapshot.
func Restore(snapshot *Snapshot) *Session {
	session := &Session{
		ID:            snapshot.ID,
		GraphID:       snapshot.GraphID,
		Status:        snapshot.Status,
		CurrentNode:   snapshot.CurrentNode,
		PendingResume: snapshot.PendingResume,
		Memory:        NewMemory(),
		History:       append([]HistoryEntry(nil), snapshot.History...),
		CreatedAt:     snapshot.CreatedAt,
		UpdatedAt:     snapshot.UpdatedAt,
	}
	session.Memory.Restore(snapshot.Memory)
	return session
}
