// Package registry tracks live sessions in-process and backs them with a
// persistent snapshot store, so a session can be looked up by id after a
// pause, across invocations, or after a restart.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/dao"
	"github.com/arcflow/arcflow/service/dao/session/memory"
)

// Service indexes live sessions and restores evicted ones from the store.
type Service struct {
	store dao.Service[string, execution.Snapshot]
	mux   sync.RWMutex
	live  map[string]*execution.Session
}

// New creates a registry over the given snapshot store.  A nil store falls
// back to in-memory persistence.
func New(store dao.Service[string, execution.Snapshot]) *Service {
	if store == nil {
		store = memory.New()
	}
	return &Service{store: store, live: map[string]*execution.Session{}}
}

// Store exposes the underlying snapshot store.
func (s *Service) Store() dao.Service[string, execution.Snapshot] {
	return s.store
}

// Add registers a live session.
func (s *Service) Add(session *execution.Session) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.live[session.ID] = session
}

// Lookup returns a session by id, restoring it from the store when it is not
// live in this process.
func (s *Service) Lookup(ctx context.Context, id string) (*execution.Session, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	session, ok := s.live[id]
	s.mux.RUnlock()
	if ok {
		return session, nil
	}
	snapshot, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	session = execution.Restore(snapshot)
	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok := s.live[id]; ok {
		return existing, nil
	}
	s.live[id] = session
	return session, nil
}

// Persist saves the session snapshot to the store.
func (s *Service) Persist(ctx context.Context, session *execution.Session) error {
	return s.store.Save(ctx, session.Snapshot())
}

// List returns stored session snapshots, optionally filtered by status.
func (s *Service) List(ctx context.Context, statuses ...execution.Status) ([]*execution.Snapshot, error) {
	var parameters []*dao.Parameter
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		parameters = append(parameters, dao.NewParameter("Status", values...))
	}
	return s.store.List(ctx, parameters...)
}

// Archive drops a terminal session from the live index and the store.
// Archiving is explicit; completing a session never removes its record.
func (s *Service) Archive(ctx context.Context, id string) error {
	s.mux.Lock()
	delete(s.live, id)
	s.mux.Unlock()
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, dao.ErrNotFound) {
		return err
	}
	return nil
}
