package reflection

import "strings"

// ResolveName turns a name as written in a header into a fully-qualified
// name, using the header's namespace and import table.
//
// Resolution order:
//  1. a leading separator marks an already qualified name
//  2. an exact import alias, then an import alias matching the first segment
//  3. the global namespace leaves the name unchanged
//  4. otherwise the name is relative to namespace
func ResolveName(namespace, name string, imports map[string]string) string {
	if strings.HasPrefix(name, NamespaceSeparator) {
		return name[len(NamespaceSeparator):]
	}

	if len(imports) > 0 {
		if target, ok := imports[name]; ok {
			return strings.TrimPrefix(target, NamespaceSeparator)
		}
		head, rest, found := strings.Cut(name, NamespaceSeparator)
		if found {
			if target, ok := imports[head]; ok {
				return strings.TrimPrefix(target, NamespaceSeparator) + NamespaceSeparator + rest
			}
		}
	}

	return joinName(namespace, name)
}
