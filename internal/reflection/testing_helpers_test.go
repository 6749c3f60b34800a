package reflection

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixturesNS = `Acme\Reflection\Fixtures`

func fixturePath(parts ...string) string {
	return filepath.Join(append([]string{"..", "..", "testdata", "php", "Fixtures"}, parts...)...)
}

// parseHeader lexes and parses text with the tree-sitter lexer.
func parseHeader(t *testing.T, text string) *FactRecord {
	t.Helper()
	rec, err := ParseContent(context.Background(), NewLexer(), text)
	require.NoError(t, err)
	return rec
}

// stubLookup is an AncestorLookup over a fixed table that counts calls.
type stubLookup struct {
	mu         sync.Mutex
	parents    map[string][]string
	interfaces map[string][]string
	calls      map[string]int
	err        error
}

func newStubLookup() *stubLookup {
	return &stubLookup{
		parents:    map[string][]string{},
		interfaces: map[string][]string{},
		calls:      map[string]int{},
	}
}

func (s *stubLookup) Parents(ctx context.Context, name string) ([]string, error) {
	return s.answer(name, s.parents)
}

func (s *stubLookup) Interfaces(ctx context.Context, name string) ([]string, error) {
	return s.answer(name, s.interfaces)
}

func (s *stubLookup) answer(name string, table map[string][]string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	if s.err != nil {
		return nil, s.err
	}
	_, isParent := s.parents[name]
	_, isInterface := s.interfaces[name]
	if !isParent && !isInterface {
		return nil, ErrUnknownClass
	}
	return table[name], nil
}

func (s *stubLookup) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// fixtureLookup describes the ancestry of the testdata fixtures.
func fixtureLookup() *stubLookup {
	s := newStubLookup()
	s.parents[fixturesNS+`\Base\Example`] = []string{fixturesNS + `\Base\Root`}
	s.parents[fixturesNS+`\Base\Root`] = nil
	s.interfaces[fixturesNS+`\Example1Interface`] = nil
	s.interfaces[fixturesNS+`\Base\Example2Interface`] = []string{fixturesNS + `\Base\InvisibleInterface`}
	s.interfaces[fixturesNS+`\Base\InvisibleInterface`] = nil
	s.interfaces[fixturesNS+`\Base\ImportedInterface`] = nil
	s.interfaces["Countable"] = nil
	return s
}
