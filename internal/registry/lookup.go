package registry

import (
	"context"
	"errors"

	"github.com/mvp-joe/static-reflection/internal/reflection"
)

// StaticLookup answers ancestor queries by parsing the ancestor's own
// header, located through the registry's autoload rules.
type StaticLookup struct {
	registry *Registry
}

// NewStaticLookup creates a lookup backed by r.
func NewStaticLookup(r *Registry) *StaticLookup {
	return &StaticLookup{registry: r}
}

func (l *StaticLookup) Parents(ctx context.Context, name string) ([]string, error) {
	facts, err := l.facts(ctx, name)
	if err != nil {
		return nil, err
	}
	return facts.DirectParents(), nil
}

func (l *StaticLookup) Interfaces(ctx context.Context, name string) ([]string, error) {
	facts, err := l.facts(ctx, name)
	if err != nil {
		return nil, err
	}
	return facts.DirectInterfaces(), nil
}

func (l *StaticLookup) facts(ctx context.Context, name string) (*reflection.FactRecord, error) {
	facts, err := l.registry.Facts(ctx, name)
	if errors.Is(err, ErrClassNotFound) {
		return nil, reflection.ErrUnknownClass
	}
	if err != nil {
		return nil, err
	}
	if !facts.Found() {
		return nil, reflection.ErrUnknownClass
	}
	return facts, nil
}

// ChainLookup asks each lookup in order; the first that knows a class
// answers for it.
type ChainLookup struct {
	lookups []reflection.AncestorLookup
}

// NewChainLookup creates a chain over lookups. Nil lookups are skipped.
func NewChainLookup(lookups ...reflection.AncestorLookup) *ChainLookup {
	c := &ChainLookup{}
	for _, l := range lookups {
		if l != nil {
			c.lookups = append(c.lookups, l)
		}
	}
	return c
}

func (c *ChainLookup) Parents(ctx context.Context, name string) ([]string, error) {
	return c.first(ctx, name, reflection.AncestorLookup.Parents)
}

func (c *ChainLookup) Interfaces(ctx context.Context, name string) ([]string, error) {
	return c.first(ctx, name, reflection.AncestorLookup.Interfaces)
}

func (c *ChainLookup) first(ctx context.Context, name string, ask func(reflection.AncestorLookup, context.Context, string) ([]string, error)) ([]string, error) {
	for _, l := range c.lookups {
		names, err := ask(l, ctx, name)
		if errors.Is(err, reflection.ErrUnknownClass) {
			continue
		}
		return names, err
	}
	return nil, reflection.ErrUnknownClass
}
