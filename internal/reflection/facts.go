// Package reflection extracts structural facts about a PHP class-like
// declaration from the header of its source file, without executing it.
package reflection

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// NamespaceSeparator separates namespace segments in fully-qualified names.
const NamespaceSeparator = `\`

// Kind identifies which class-like declaration a header contains.
type Kind int

const (
	KindUnknown Kind = iota
	KindClass
	KindInterface
	KindTrait
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindClass:     "class",
	KindInterface: "interface",
	KindTrait:     "trait",
}

// String returns the PHP keyword for the kind, or "unknown".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown declaration kind: %q", string(text))
}

// FactRecord holds everything the header parser learned about one
// declaration. It is immutable once returned by the parser.
type FactRecord struct {
	FQCN       string            `json:"fqcn"`
	Namespace  string            `json:"namespace"`
	ShortName  string            `json:"short_name"`
	Kind       Kind              `json:"kind"`
	Abstract   bool              `json:"abstract"`
	Final      bool              `json:"final"`
	Extends    []string          `json:"extends"`
	Implements []string          `json:"implements"`
	Imports    map[string]string `json:"imports"`
	DocComment string            `json:"doc_comment"`
}

// newFactRecord returns an empty record with non-nil collections.
func newFactRecord() *FactRecord {
	return &FactRecord{
		Extends:    []string{},
		Implements: []string{},
		Imports:    map[string]string{},
	}
}

// Found reports whether the header contained a class, interface or trait.
func (f *FactRecord) Found() bool {
	return f.Kind != KindUnknown
}

func (f *FactRecord) IsClass() bool     { return f.Kind == KindClass }
func (f *FactRecord) IsInterface() bool { return f.Kind == KindInterface }
func (f *FactRecord) IsTrait() bool     { return f.Kind == KindTrait }

// IsInstantiable reports whether the declaration is a concrete class.
func (f *FactRecord) IsInstantiable() bool {
	return f.Kind == KindClass && !f.Abstract
}

// HasDirectAncestor reports whether name is listed in extends or implements.
func (f *FactRecord) HasDirectAncestor(name string) bool {
	return slices.Contains(f.Extends, name) || slices.Contains(f.Implements, name)
}

// IsSubclassOfAny reports whether any of names is a direct ancestor. It only
// consults parsed facts and never escalates to an ancestor lookup.
func (f *FactRecord) IsSubclassOfAny(names []string) bool {
	for _, name := range names {
		if f.HasDirectAncestor(name) {
			return true
		}
	}
	return false
}

// DirectParents returns the classes the declaration extends. Interfaces
// and traits have none.
func (f *FactRecord) DirectParents() []string {
	if f.Kind != KindClass {
		return nil
	}
	return slices.Clone(f.Extends)
}

// DirectInterfaces returns the interfaces a class implements or an
// interface extends.
func (f *FactRecord) DirectInterfaces() []string {
	switch f.Kind {
	case KindClass:
		return slices.Clone(f.Implements)
	case KindInterface:
		return slices.Clone(f.Extends)
	}
	return nil
}

// Clone returns a deep copy so callers can never mutate a cached record.
func (f *FactRecord) Clone() *FactRecord {
	c := *f
	c.Extends = slices.Clone(f.Extends)
	c.Implements = slices.Clone(f.Implements)
	c.Imports = make(map[string]string, len(f.Imports))
	for k, v := range f.Imports {
		c.Imports[k] = v
	}
	return &c
}

// MarshalJSON keeps empty lists as [] rather than null.
func (f *FactRecord) MarshalJSON() ([]byte, error) {
	type plain FactRecord
	c := plain(*f.normalized())
	return json.Marshal(&c)
}

func (f *FactRecord) normalized() *FactRecord {
	c := *f
	if c.Extends == nil {
		c.Extends = []string{}
	}
	if c.Implements == nil {
		c.Implements = []string{}
	}
	if c.Imports == nil {
		c.Imports = map[string]string{}
	}
	return &c
}

// joinName combines a namespace and a relative name.
func joinName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + NamespaceSeparator + name
}

// basename returns the trailing segment of a namespaced name.
func basename(name string) string {
	if i := strings.LastIndex(name, NamespaceSeparator); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ShortName returns the trailing segment of a fully-qualified name.
func ShortName(fqcn string) string {
	return basename(fqcn)
}
