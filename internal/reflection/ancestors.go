package reflection

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dominikbraun/graph"
	"golang.org/x/sync/singleflight"
)

// AncestorLookup is the authoritative introspection facility consulted when
// parsed facts cannot answer an ancestry question. It is only ever asked
// about ancestors, never about the subject being reflected.
//
// Implementations return ErrUnknownClass when they know nothing about name.
type AncestorLookup interface {
	// Parents returns the classes name directly extends.
	Parents(ctx context.Context, name string) ([]string, error)
	// Interfaces returns the interfaces name directly implements, or for an
	// interface, the interfaces it directly extends.
	Interfaces(ctx context.Context, name string) ([]string, error)
}

// AncestorSet is the transitive ancestry of one class.
type AncestorSet struct {
	Parents    map[string]struct{}
	Interfaces map[string]struct{}
}

func newAncestorSet() *AncestorSet {
	return &AncestorSet{
		Parents:    map[string]struct{}{},
		Interfaces: map[string]struct{}{},
	}
}

// Has reports whether name is a parent class or an interface.
func (s *AncestorSet) Has(name string) bool {
	if _, ok := s.Parents[name]; ok {
		return true
	}
	return s.HasInterface(name)
}

// HasInterface reports whether name is one of the interfaces.
func (s *AncestorSet) HasInterface(name string) bool {
	_, ok := s.Interfaces[name]
	return ok
}

// Names returns parents and interfaces, sorted.
func (s *AncestorSet) Names() []string {
	names := make([]string, 0, len(s.Parents)+len(s.Interfaces))
	for name := range s.Parents {
		names = append(names, name)
	}
	for name := range s.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return slices.Compact(names)
}

// Edge attributes distinguish "extends" edges from "implements" edges.
const (
	edgeKind      = "kind"
	edgeParent    = "parent"
	edgeInterface = "interface"
)

// AncestorCache memoizes transitive ancestor sets per ancestor name for the
// lifetime of the cache. Entries are never invalidated. It is safe for
// concurrent use; concurrent misses for one name share a single lookup.
//
// Every oracle answer becomes a set of edges in one directed graph shared by
// all roots, so a subgraph discovered while resolving one class is traversed
// again, not looked up again, for the next.
type AncestorCache struct {
	lookup AncestorLookup

	graphMu  sync.RWMutex
	edges    graph.Graph[string, string]
	expanded map[string]struct{}

	mu      sync.RWMutex
	entries map[string]*AncestorSet

	group     singleflight.Group
	expansion singleflight.Group
	lookups   atomic.Int64
}

// NewAncestorCache creates a cache that consults lookup on misses.
func NewAncestorCache(lookup AncestorLookup) *AncestorCache {
	return &AncestorCache{
		lookup:   lookup,
		edges:    graph.New(graph.StringHash, graph.Directed()),
		expanded: make(map[string]struct{}),
		entries:  make(map[string]*AncestorSet),
	}
}

// Lookups returns how many times the underlying lookup was called.
func (c *AncestorCache) Lookups() int64 {
	return c.lookups.Load()
}

// Len returns the number of cached ancestor sets.
func (c *AncestorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Known returns the number of classes whose direct ancestors are recorded.
func (c *AncestorCache) Known() int {
	c.graphMu.RLock()
	defer c.graphMu.RUnlock()
	return len(c.expanded)
}

// Ancestors returns the transitive parents and interfaces of name. The
// returned set is shared and must not be modified.
func (c *AncestorCache) Ancestors(ctx context.Context, name string) (*AncestorSet, error) {
	c.mu.RLock()
	set, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		return set, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.RLock()
		set, ok := c.entries[name]
		c.mu.RUnlock()
		if ok {
			return set, nil
		}

		set, err := c.resolve(ctx, name)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[name] = set
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AncestorSet), nil
}

// resolve traverses the graph from root, asking the oracle about every
// reachable class it has not answered yet, until the reachable part of the
// graph is complete.
func (c *AncestorCache) resolve(ctx context.Context, root string) (*AncestorSet, error) {
	c.graphMu.Lock()
	err := c.edges.AddVertex(root)
	c.graphMu.Unlock()
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return nil, err
	}

	for {
		set, pending, err := c.walk(root)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			return set, nil
		}
		for _, name := range pending {
			if err := c.expand(ctx, name); err != nil {
				return nil, err
			}
		}
	}
}

// walk collects everything reachable from root, classified by the kind of
// edge that reaches it, and the reachable classes not yet expanded.
func (c *AncestorCache) walk(root string) (*AncestorSet, []string, error) {
	c.graphMu.RLock()
	defer c.graphMu.RUnlock()

	adjacency, err := c.edges.AdjacencyMap()
	if err != nil {
		return nil, nil, err
	}

	set := newAncestorSet()
	var pending []string
	err = graph.BFS(c.edges, root, func(name string) bool {
		if _, ok := c.expanded[name]; !ok {
			pending = append(pending, name)
		}
		for next, edge := range adjacency[name] {
			if edge.Properties.Attributes[edgeKind] == edgeInterface {
				set.Interfaces[next] = struct{}{}
			} else {
				set.Parents[next] = struct{}{}
			}
		}
		return false
	})
	if err != nil {
		return nil, nil, err
	}

	for name := range set.Interfaces {
		delete(set.Parents, name)
	}
	delete(set.Parents, root)
	delete(set.Interfaces, root)
	return set, pending, nil
}

// expand asks the oracle about name once and records the answer as edges.
func (c *AncestorCache) expand(ctx context.Context, name string) error {
	_, err, _ := c.expansion.Do(name, func() (any, error) {
		c.graphMu.RLock()
		_, done := c.expanded[name]
		c.graphMu.RUnlock()
		if done {
			return nil, nil
		}

		var parents, interfaces []string
		if c.lookup != nil {
			var err error
			if parents, err = c.call(ctx, name, c.lookup.Parents); err != nil {
				return nil, err
			}
			if interfaces, err = c.call(ctx, name, c.lookup.Interfaces); err != nil {
				return nil, err
			}
		}

		c.graphMu.Lock()
		defer c.graphMu.Unlock()
		if err := c.addEdges(name, parents, edgeParent); err != nil {
			return nil, err
		}
		if err := c.addEdges(name, interfaces, edgeInterface); err != nil {
			return nil, err
		}
		c.expanded[name] = struct{}{}
		return nil, nil
	})
	return err
}

// addEdges must be called with graphMu held.
func (c *AncestorCache) addEdges(from string, to []string, kind string) error {
	for _, next := range to {
		if err := c.edges.AddVertex(next); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return err
		}
		err := c.edges.AddEdge(from, next, graph.EdgeAttribute(edgeKind, kind))
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return err
		}
	}
	return nil
}

func (c *AncestorCache) call(ctx context.Context, name string, fn func(context.Context, string) ([]string, error)) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.lookups.Add(1)
	names, err := fn(ctx, name)
	if errors.Is(err, ErrUnknownClass) {
		return nil, nil
	}
	if err != nil {
		return nil, &OracleError{Name: name, Err: err}
	}
	return names, nil
}
