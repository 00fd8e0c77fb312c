package memory

import (
	"context"
	"sync"

	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/dao"
	"github.com/arcflow/arcflow/service/dao/criteria"
)

// Service implements an in-memory, thread-safe session snapshot store.
type Service struct {
	snapshots map[string]*execution.Snapshot
	mux       sync.RWMutex
}

var _ dao.Service[string, execution.Snapshot] = (*Service)(nil)

func (s *Service) Save(_ context.Context, snapshot *execution.Snapshot) error {
	if snapshot == nil {
		return dao.ErrNilEntity
	}
	if snapshot.ID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.snapshots[snapshot.ID] = snapshot
	return nil
}

func (s *Service) Load(_ context.Context, id string) (*execution.Snapshot, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	snapshot, ok := s.snapshots[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return snapshot, nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.snapshots[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.snapshots, id)
	return nil
}

func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*execution.Snapshot, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*execution.Snapshot, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		if !criteria.FilterByStatus(string(snapshot.Status), parameters) {
			continue
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func New() *Service {
	return &Service{snapshots: map[string]*execution.Snapshot{}}
}
