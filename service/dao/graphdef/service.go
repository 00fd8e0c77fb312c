// Package graphdef loads graph definitions from YAML documents.  Definitions
// are addressed by URL through the afs abstraction, validated on load and
// cached by graph id.
package graphdef

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/service/dao"
)

// Service loads, validates and caches graph definitions.
type Service struct {
	fs    afs.Service
	mux   sync.RWMutex
	cache map[string]*graph.Graph
}

// New creates a graph definition service.
func New() *Service {
	return &Service{fs: afs.New(), cache: map[string]*graph.Graph{}}
}

// DecodeYAML decodes and validates a graph definition.
func (s *Service) DecodeYAML(encoded []byte) (*graph.Graph, error) {
	g := &graph.Graph{}
	if err := yaml.Unmarshal(encoded, g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	if result := g.Validate(); !result.Valid() {
		return nil, result.Err(g.ID)
	}
	return g, nil
}

// Load reads a graph definition from the URL, validates it and caches it by
// graph id.
func (s *Service) Load(ctx context.Context, URL string) (*graph.Graph, error) {
	if filepath.Ext(URL) == "" {
		URL += ".yaml"
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph from %s: %w", URL, err)
	}
	g, err := s.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("invalid graph at %s: %w", URL, err)
	}
	if g.ID == "" {
		g.ID = nameFromURL(URL)
	}
	if err := s.Upsert(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Upsert validates and caches a programmatically built graph.
func (s *Service) Upsert(g *graph.Graph) error {
	if g == nil {
		return dao.ErrNilEntity
	}
	if g.ID == "" {
		return dao.ErrInvalidID
	}
	if result := g.Validate(); !result.Valid() {
		return result.Err(g.ID)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.cache[g.ID] = g
	return nil
}

// Lookup returns a cached graph by id.
func (s *Service) Lookup(id string) (*graph.Graph, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	g, ok := s.cache[id]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return g, nil
}

// Refresh reloads a previously loaded definition from its URL and replaces
// the cached copy.
func (s *Service) Refresh(ctx context.Context, URL string) (*graph.Graph, error) {
	return s.Load(ctx, URL)
}

// IDs lists the cached graph ids.
func (s *Service) IDs() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	return ids
}

func nameFromURL(URL string) string {
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
