package reflection

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/mvp-joe/static-reflection/internal/doccomment"
)

var defaultLexer = sync.OnceValue(NewLexer)

// Class reflects a single class-like declaration from its file header. The
// header is read and parsed on first use and the result is reused for every
// later query.
type Class struct {
	name      string
	path      string
	source    io.Reader
	lexer     Lexer
	ancestors *AncestorCache

	mu     sync.Mutex
	header *string
	loaded bool
	facts  *FactRecord
	err    error
}

// Option configures a Class.
type Option func(*Class)

// WithLexer overrides the tree-sitter lexer.
func WithLexer(lexer Lexer) Option {
	return func(c *Class) {
		c.lexer = lexer
	}
}

// WithAncestorCache enables escalation for ancestry queries that parsed
// facts cannot answer. Without it such queries report false.
func WithAncestorCache(cache *AncestorCache) Option {
	return func(c *Class) {
		c.ancestors = cache
	}
}

// WithSource reads the header from r instead of opening the path.
func WithSource(r io.Reader) Option {
	return func(c *Class) {
		c.source = r
	}
}

// WithFacts seeds the reflector with a record parsed earlier, for example
// one restored from a fact store. The consistency check still applies.
func WithFacts(facts *FactRecord) Option {
	return func(c *Class) {
		c.facts = facts
	}
}

// NewClass creates a reflector for the class expected to be declared as name
// in the file at path. Nothing is read until a query needs it.
func NewClass(name, path string, opts ...Option) *Class {
	c := &Class{
		name: strings.TrimPrefix(name, NamespaceSeparator),
		path: path,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Facts returns the parsed record, reading and parsing the header on the
// first call. A *ConsistencyError is returned when the file declares a
// different name than expected; a header without a declaration is not an
// error and yields a KindUnknown record.
func (c *Class) Facts(ctx context.Context) (*FactRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.facts, c.err
	}

	facts := c.facts
	if facts == nil {
		var err error
		facts, err = c.parse(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.loaded, c.err = true, err
			return nil, err
		}
	}

	if facts.FQCN != "" && c.name != "" && facts.FQCN != c.name {
		c.loaded = true
		c.err = &ConsistencyError{Expected: c.name, Actual: facts.FQCN, Path: c.path}
		return nil, c.err
	}

	c.loaded, c.facts = true, facts
	return c.facts, nil
}

// parse reads the header at most once, so a parse interrupted by ctx can be
// retried even when the source is a one-shot reader. Must be called with mu
// held.
func (c *Class) parse(ctx context.Context) (*FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.header == nil {
		header, err := c.readHeader()
		if err != nil {
			return nil, err
		}
		c.header = &header
	}

	lexer := c.lexer
	if lexer == nil {
		lexer = defaultLexer()
	}
	return ParseContent(ctx, lexer, *c.header)
}

func (c *Class) readHeader() (string, error) {
	if c.source == nil {
		return ReadHeaderFile(c.path)
	}
	header, err := ReadHeader(c.source)
	if err != nil {
		return "", &IOError{Path: c.path, Op: "read", Err: err}
	}
	return header, nil
}

// Name returns the fully-qualified name the reflector was created for.
func (c *Class) Name() string {
	return c.name
}

// ShortName returns the name without its namespace.
func (c *Class) ShortName() string {
	return basename(c.name)
}

// FileName returns the path of the declaring file.
func (c *Class) FileName() string {
	return c.path
}

// IsInternal is always false: statically reflected classes come from source.
func (c *Class) IsInternal() bool {
	return false
}

// IsUserDefined is always true.
func (c *Class) IsUserDefined() bool {
	return true
}

func (c *Class) NamespaceName(ctx context.Context) (string, error) {
	f, err := c.Facts(ctx)
	if err != nil {
		return "", err
	}
	return f.Namespace, nil
}

// DocComment returns the raw doc comment of the declaration, or "".
func (c *Class) DocComment(ctx context.Context) (string, error) {
	f, err := c.Facts(ctx)
	if err != nil {
		return "", err
	}
	return f.DocComment, nil
}

// Doc returns the declaration's doc comment for summary and tag parsing.
func (c *Class) Doc(ctx context.Context) (*doccomment.Comment, error) {
	raw, err := c.DocComment(ctx)
	if err != nil {
		return nil, err
	}
	return doccomment.New(raw), nil
}

func (c *Class) Summary(ctx context.Context) (string, error) {
	doc, err := c.Doc(ctx)
	if err != nil {
		return "", err
	}
	return doc.Summary(), nil
}

func (c *Class) Annotations(ctx context.Context) (doccomment.Annotations, error) {
	doc, err := c.Doc(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Annotations(), nil
}

// Imports returns the header's import table, alias to target.
func (c *Class) Imports(ctx context.Context) (map[string]string, error) {
	f, err := c.Facts(ctx)
	if err != nil {
		return nil, err
	}
	return f.Clone().Imports, nil
}

// ParentNames returns the resolved names listed after "extends".
func (c *Class) ParentNames(ctx context.Context) ([]string, error) {
	f, err := c.Facts(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.Extends), nil
}

// InterfaceNames returns the resolved names listed after "implements".
func (c *Class) InterfaceNames(ctx context.Context) ([]string, error) {
	f, err := c.Facts(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.Implements), nil
}

func (c *Class) IsAbstract(ctx context.Context) (bool, error) {
	return c.check(ctx, func(f *FactRecord) bool { return f.Abstract })
}

func (c *Class) IsFinal(ctx context.Context) (bool, error) {
	return c.check(ctx, func(f *FactRecord) bool { return f.Final })
}

func (c *Class) IsClass(ctx context.Context) (bool, error) {
	return c.check(ctx, (*FactRecord).IsClass)
}

func (c *Class) IsInterface(ctx context.Context) (bool, error) {
	return c.check(ctx, (*FactRecord).IsInterface)
}

func (c *Class) IsTrait(ctx context.Context) (bool, error) {
	return c.check(ctx, (*FactRecord).IsTrait)
}

// IsInstantiable reports whether the declaration is a non-abstract class.
func (c *Class) IsInstantiable(ctx context.Context) (bool, error) {
	return c.check(ctx, (*FactRecord).IsInstantiable)
}

func (c *Class) check(ctx context.Context, pred func(*FactRecord) bool) (bool, error) {
	f, err := c.Facts(ctx)
	if err != nil {
		return false, err
	}
	return pred(f), nil
}

// IsSubclassOfAny reports whether any of names is a direct parent or
// interface. It never consults the ancestor cache, so it is a cheap filter
// ahead of IsSubclassOf.
func (c *Class) IsSubclassOfAny(ctx context.Context, names []string) (bool, error) {
	f, err := c.Facts(ctx)
	if err != nil {
		return false, err
	}
	trimmed := make([]string, len(names))
	for i, name := range names {
		trimmed[i] = strings.TrimPrefix(name, NamespaceSeparator)
	}
	return f.IsSubclassOfAny(trimmed), nil
}

// IsSubclassOf reports whether name is an ancestor. Direct facts are
// checked first; only then are the named ancestors looked up, parents before
// interfaces. A class is never its own subclass.
func (c *Class) IsSubclassOf(ctx context.Context, name string) (bool, error) {
	name = strings.TrimPrefix(name, NamespaceSeparator)
	f, err := c.Facts(ctx)
	if err != nil {
		return false, err
	}

	if name == "" || name == f.FQCN || name == c.name {
		return false, nil
	}
	if len(f.Extends) == 0 && len(f.Implements) == 0 {
		return false, nil
	}
	if f.HasDirectAncestor(name) {
		return true, nil
	}

	found, err := c.escalate(ctx, f.Extends, name, false)
	if err != nil || found {
		return found, err
	}
	return c.escalate(ctx, f.Implements, name, false)
}

// ImplementsInterface reports whether the declaration implements the
// interface name. An interface implements itself.
func (c *Class) ImplementsInterface(ctx context.Context, name string) (bool, error) {
	name = strings.TrimPrefix(name, NamespaceSeparator)
	f, err := c.Facts(ctx)
	if err != nil {
		return false, err
	}

	if f.IsInterface() {
		if name == f.FQCN || slices.Contains(f.Extends, name) {
			return true, nil
		}
		return c.escalate(ctx, f.Extends, name, true)
	}

	if slices.Contains(f.Implements, name) {
		return true, nil
	}
	found, err := c.escalate(ctx, f.Implements, name, true)
	if err != nil || found {
		return found, err
	}
	return c.escalate(ctx, f.Extends, name, true)
}

// escalate looks up the transitive ancestry of each of via in turn and
// reports whether target is among them.
func (c *Class) escalate(ctx context.Context, via []string, target string, interfacesOnly bool) (bool, error) {
	if c.ancestors == nil {
		return false, nil
	}
	for _, ancestor := range via {
		set, err := c.ancestors.Ancestors(ctx, ancestor)
		if err != nil {
			return false, err
		}
		if interfacesOnly && set.HasInterface(target) || !interfacesOnly && set.Has(target) {
			return true, nil
		}
	}
	return false, nil
}
