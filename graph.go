package servicegraph

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

// Builder collects service declarations and builds an immutable Graph.
type Builder struct {
	services []Service
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddService declares a service. Validation is deferred to Build.
func (b *Builder) AddService(s Service) *Builder {
	s.Requires = append([]string(nil), s.Requires...)
	s.RequiredBy = append([]string(nil), s.RequiredBy...)
	b.services = append(b.services, s)
	return b
}

// Build validates the declarations and returns the graph. All unknown,
// duplicate and empty ids are reported together; the cycle check runs only on
// an otherwise valid declaration set. No graph is returned on error.
func (b *Builder) Build() (*Graph, error) {
	var errs *multierror.Error

	declared := make(map[string]int, len(b.services))
	for i, s := range b.services {
		if s.ID == "" {
			errs = multierror.Append(errs, errors.New("service id cannot be empty"))
			continue
		}
		if _, ok := declared[s.ID]; ok {
			errs = multierror.Append(errs, &DuplicateServiceError{ID: s.ID})
			continue
		}
		declared[s.ID] = i
	}

	requires := make(map[string][]string, len(declared))
	addEdge := func(dependent, prerequisite string) {
		for _, r := range requires[dependent] {
			if r == prerequisite {
				return
			}
		}
		requires[dependent] = append(requires[dependent], prerequisite)
	}
	for i, s := range b.services {
		if declared[s.ID] != i || s.ID == "" {
			continue
		}
		for _, r := range s.Requires {
			if _, ok := declared[r]; !ok {
				errs = multierror.Append(errs,
					&UnknownServiceError{ID: r, Referrer: s.ID})
				continue
			}
			addEdge(s.ID, r)
		}
		for _, d := range s.RequiredBy {
			if _, ok := declared[d]; !ok {
				errs = multierror.Append(errs,
					&UnknownServiceError{ID: d, Referrer: s.ID})
				continue
			}
			addEdge(d, s.ID)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	order, err := b.topologicalOrder(declared, requires)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		nodes: make([]node, len(order)),
		index: make(map[string]int, len(order)),
	}
	for i, id := range order {
		s := b.services[declared[id]]
		g.nodes[i] = node{
			id:       id,
			requires: requires[id],
			start:    s.Start,
			stop:     s.Stop,
		}
		g.index[id] = i
	}
	// Dependents are appended in topological order.
	for i := range g.nodes {
		for _, r := range g.nodes[i].requires {
			p := g.index[r]
			g.nodes[p].requiredBy = append(g.nodes[p].requiredBy, g.nodes[i].id)
		}
	}
	return g, nil
}

// topologicalOrder runs a depth-first search over the requires relation in
// declaration order, tracking the in-progress path to report cycles. The post
// order places prerequisites before their dependents.
func (b *Builder) topologicalOrder(declared map[string]int,
	requires map[string][]string) ([]string, error) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(declared))
	order := make([]string, 0, len(declared))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case inProgress:
			for i, p := range path {
				if p == id {
					cycle := append(append([]string(nil), path[i:]...), id)
					return &CyclicDependencyError{Cycle: cycle}
				}
			}
		}
		state[id] = inProgress
		path = append(path, id)
		for _, r := range requires[id] {
			if err := visit(r); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		order = append(order, id)
		return nil
	}

	for i, s := range b.services {
		if s.ID == "" || declared[s.ID] != i {
			continue
		}
		if err := visit(s.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// node is the static part of a service inside a built graph. Edges are kept as
// ids resolved through the graph index, never as pointers.
type node struct {
	id         string
	requires   []string
	requiredBy []string
	start      Action
	stop       Action
}

// Graph is an immutable, acyclic dependency graph of services. Services are
// stored in topological order: prerequisites first, ties broken by
// declaration order.
type Graph struct {
	nodes []node
	index map[string]int
}

// Len returns the number of services.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns the service ids in topological order.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.id
	}
	return ids
}

// Requires returns the prerequisites of a service.
func (g *Graph) Requires(id string) ([]string, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, &UnknownServiceError{ID: id}
	}
	return append([]string(nil), g.nodes[i].requires...), nil
}

// RequiredBy returns the dependents of a service.
func (g *Graph) RequiredBy(id string) ([]string, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, &UnknownServiceError{ID: id}
	}
	return append([]string(nil), g.nodes[i].requiredBy...), nil
}

func (g *Graph) lookup(id string) (int, error) {
	i, ok := g.index[id]
	if !ok {
		return -1, &UnknownServiceError{ID: id}
	}
	return i, nil
}
