package reflection

import (
	"context"
	"fmt"
	"strings"
)

// captureSlot names the fact that incoming name tokens are appended to.
type captureSlot int

const (
	slotNone captureSlot = iota
	slotNamespace
	slotImport
	slotImportAlias
	slotSkipStatement
	slotKind
	slotExtends
	slotImplements
)

// factParser is a single left-to-right pass over header tokens. The open
// slot plus its accumulator replace the parse state; every other field is
// output.
type factParser struct {
	slot     captureSlot
	buf      strings.Builder
	prev     Token
	done     bool
	declSeen bool

	namespace  string
	kind       Kind
	name       string
	abstract   bool
	final      bool
	extends    []string
	implements []string
	imports    map[string]string
	docComment string

	importTarget string
	groupPrefix  string
	inGroup      bool
}

// ParseContent lexes text with lexer and parses the resulting tokens.
func ParseContent(ctx context.Context, lexer Lexer, text string) (*FactRecord, error) {
	tokens, err := lexer.Tokens(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize header: %w", err)
	}
	return ParseTokens(tokens), nil
}

// ParseTokens builds a FactRecord from a header token stream. Ancestor names
// in the result are fully resolved. A stream without a class, interface or
// trait yields a record of KindUnknown.
func ParseTokens(tokens []Token) *FactRecord {
	p := &factParser{imports: map[string]string{}}
	for i, tok := range tokens {
		if tok.Kind == TokenNamespace && p.relativeOperator(tokens[i+1:]) {
			tok = Token{Kind: TokenName, Text: relativeScope}
		}
		p.consume(tok)
		if p.done {
			break
		}
	}
	p.flush()
	return p.record()
}

func (p *factParser) consume(tok Token) {
	if tok.Kind == TokenComment {
		return
	}
	defer func() { p.prev = tok }()

	switch tok.Kind {
	case TokenDocComment:
		if !p.declSeen {
			p.docComment = tok.Text
		}
		p.flush()

	case TokenNamespace:
		p.open(slotNamespace)

	case TokenUse:
		p.open(slotImport)
		p.importTarget = ""
		p.groupPrefix = ""
		p.inGroup = false

	case TokenFunction, TokenConst:
		// "use function" and "use const" import non-class symbols.
		if p.slot == slotImport && !p.inGroup && p.buf.Len() == 0 {
			p.slot = slotSkipStatement
			return
		}
		p.appendText(tok.Text)

	case TokenAs:
		if p.slot == slotImport {
			p.importTarget = p.buf.String()
			p.buf.Reset()
			p.slot = slotImportAlias
			return
		}
		p.flush()

	case TokenAbstract:
		p.flush()
		p.abstract = true

	case TokenFinal:
		p.flush()
		p.final = true

	case TokenClass, TokenInterface, TokenTrait:
		if p.declSeen || p.prev.Kind == TokenNew || p.prev.Text == "::" {
			p.appendText(tok.Text)
			return
		}
		p.open(slotKind)
		p.declSeen = true
		p.kind = declarationKinds[tok.Kind]

	case TokenExtends:
		p.open(slotExtends)

	case TokenImplements:
		p.open(slotImplements)

	case TokenComma:
		p.nextElement()

	case TokenSemicolon:
		p.flush()

	case TokenOpenBrace:
		if p.slot == slotImport && !p.inGroup {
			p.groupPrefix = strings.TrimSuffix(p.buf.String(), NamespaceSeparator)
			p.inGroup = true
			p.buf.Reset()
			return
		}
		p.flush()
		if p.declSeen {
			p.done = true
		}

	case TokenCloseBrace:
		if p.inGroup && (p.slot == slotImport || p.slot == slotImportAlias) {
			p.commitCurrentImport()
			p.inGroup = false
			p.slot = slotImport
			return
		}
		p.flush()

	default:
		p.appendText(tok.Text)
	}
}

// relativeScope is the "namespace" operator that starts a namespace-relative
// name such as namespace\Sub\Bar.
const relativeScope = "namespace"

// relativeOperator reports whether a namespace keyword followed by rest is
// the relative-name operator rather than a namespace declaration.
func (p *factParser) relativeOperator(rest []Token) bool {
	if p.declSeen {
		return true
	}
	for _, next := range rest {
		if next.Kind == TokenComment {
			continue
		}
		return next.Kind == TokenSeparator
	}
	return false
}

var declarationKinds = map[TokenKind]Kind{
	TokenClass:     KindClass,
	TokenInterface: KindInterface,
	TokenTrait:     KindTrait,
}

// open closes the current slot and starts capturing into slot.
func (p *factParser) open(slot captureSlot) {
	p.flush()
	p.slot = slot
}

func (p *factParser) appendText(text string) {
	switch p.slot {
	case slotNone, slotSkipStatement:
		return
	}
	p.buf.WriteString(text)
}

// nextElement handles a comma: list slots and import statements start a new
// element, other slots are unaffected.
func (p *factParser) nextElement() {
	switch p.slot {
	case slotExtends:
		p.extends = appendName(p.extends, p.buf.String())
	case slotImplements:
		p.implements = appendName(p.implements, p.buf.String())
	case slotImport, slotImportAlias:
		p.commitCurrentImport()
		p.slot = slotImport
		return
	default:
		return
	}
	p.buf.Reset()
}

// flush stores the accumulated text into the open slot and closes it.
func (p *factParser) flush() {
	text := p.buf.String()
	switch p.slot {
	case slotNamespace:
		p.namespace = text
	case slotImport, slotImportAlias:
		p.commitCurrentImport()
	case slotKind:
		if text != "" {
			p.name = text
		}
	case slotExtends:
		p.extends = appendName(p.extends, text)
	case slotImplements:
		p.implements = appendName(p.implements, text)
	}
	p.buf.Reset()
	p.slot = slotNone
	p.inGroup = false
}

func (p *factParser) commitCurrentImport() {
	target, alias := p.buf.String(), ""
	if p.slot == slotImportAlias {
		target, alias = p.importTarget, p.buf.String()
	}
	p.buf.Reset()
	p.importTarget = ""
	p.addImport(target, alias)
}

// addImport records one import. Unaliased imports are keyed by the basename
// of their target; a repeated key replaces the earlier import.
func (p *factParser) addImport(target, alias string) {
	if target == "" {
		return
	}
	if p.inGroup && p.groupPrefix != "" {
		target = p.groupPrefix + NamespaceSeparator + target
	}
	target = strings.TrimPrefix(target, NamespaceSeparator)
	if target == "" {
		return
	}
	key := alias
	if key == "" {
		key = basename(target)
	}
	p.imports[key] = target
}

func (p *factParser) record() *FactRecord {
	rec := newFactRecord()
	rec.Namespace = strings.TrimPrefix(p.namespace, NamespaceSeparator)
	rec.Abstract = p.abstract
	rec.Final = p.final
	rec.DocComment = p.docComment
	for alias, target := range p.imports {
		rec.Imports[alias] = target
	}

	if p.kind == KindUnknown || p.name == "" {
		return rec
	}

	rec.Kind = p.kind
	rec.ShortName = p.name
	rec.FQCN = ResolveName(rec.Namespace, p.name, nil)
	for _, name := range p.extends {
		rec.Extends = append(rec.Extends, resolveAncestor(rec.Namespace, name, rec.Imports))
	}
	if rec.Kind != KindTrait {
		for _, name := range p.implements {
			rec.Implements = append(rec.Implements, resolveAncestor(rec.Namespace, name, rec.Imports))
		}
	}
	return rec
}

// resolveAncestor resolves an extends or implements entry. A
// namespace-relative name bypasses the import table.
func resolveAncestor(namespace, name string, imports map[string]string) string {
	head, rest, ok := strings.Cut(name, NamespaceSeparator)
	if ok && strings.EqualFold(head, relativeScope) {
		return joinName(namespace, rest)
	}
	return ResolveName(namespace, name, imports)
}

func appendName(names []string, name string) []string {
	if name == "" {
		return names
	}
	return append(names, name)
}
