package reflection

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// TokenKind classifies a header token.
type TokenKind int

const (
	TokenOther TokenKind = iota
	TokenName
	TokenSeparator
	TokenNamespace
	TokenUse
	TokenAs
	TokenFunction
	TokenConst
	TokenNew
	TokenClass
	TokenInterface
	TokenTrait
	TokenAbstract
	TokenFinal
	TokenExtends
	TokenImplements
	TokenDocComment
	TokenComment
	TokenComma
	TokenSemicolon
	TokenOpenBrace
	TokenCloseBrace
)

// Token is a single lexical element of a header.
type Token struct {
	Kind TokenKind
	Text string
}

// Lexer turns PHP source into the flat token stream the fact parser reads.
// Whitespace never appears in the stream.
type Lexer interface {
	Tokens(ctx context.Context, src []byte) ([]Token, error)
}

var keywordKinds = map[string]TokenKind{
	"namespace":  TokenNamespace,
	"use":        TokenUse,
	"as":         TokenAs,
	"function":   TokenFunction,
	"const":      TokenConst,
	"new":        TokenNew,
	"class":      TokenClass,
	"interface":  TokenInterface,
	"trait":      TokenTrait,
	"abstract":   TokenAbstract,
	"final":      TokenFinal,
	"extends":    TokenExtends,
	"implements": TokenImplements,
}

var punctuationKinds = map[string]TokenKind{
	`\`: TokenSeparator,
	",": TokenComma,
	";": TokenSemicolon,
	"{": TokenOpenBrace,
	"}": TokenCloseBrace,
}

// treeSitterLexer emits the leaves of a tree-sitter PHP parse tree.
type treeSitterLexer struct {
	language *sitter.Language
}

// NewLexer creates a Lexer backed by the tree-sitter PHP grammar.
func NewLexer() Lexer {
	return &treeSitterLexer{
		language: sitter.NewLanguage(php.LanguagePHP()),
	}
}

// Tokens parses src and returns its leaf tokens in document order.
func (l *treeSitterLexer) Tokens(ctx context.Context, src []byte) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source := completeHeader(string(src))

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(l.language); err != nil {
		return nil, fmt.Errorf("failed to set php language: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse php header")
	}
	defer tree.Close()

	var tokens []Token
	collectLeaves(tree.RootNode(), source, &tokens)
	return tokens, nil
}

// completeHeader makes a sliced header parseable on its own: headers have
// their declaration's braces stripped, and snippets may lack the open tag.
func completeHeader(text string) []byte {
	if !strings.Contains(text, "<?") {
		text = "<?php\n" + text
	}
	if !strings.HasSuffix(strings.TrimSpace(text), "}") {
		text += "\n{}"
	}
	return []byte(text)
}

// collectLeaves appends every non-empty leaf under node to tokens.
func collectLeaves(node *sitter.Node, source []byte, tokens *[]Token) {
	if node == nil || node.IsMissing() {
		return
	}

	count := node.ChildCount()
	if count == 0 {
		if node.StartByte() == node.EndByte() {
			return
		}
		*tokens = append(*tokens, classifyLeaf(node, source))
		return
	}

	for i := uint(0); i < count; i++ {
		collectLeaves(node.Child(i), source, tokens)
	}
}

func classifyLeaf(node *sitter.Node, source []byte) Token {
	text := node.Utf8Text(source)
	kind := node.Kind()

	switch {
	case kind == "comment":
		if isDocComment(text) {
			return Token{Kind: TokenDocComment, Text: text}
		}
		return Token{Kind: TokenComment, Text: text}
	case kind == "name":
		return Token{Kind: TokenName, Text: text}
	case !node.IsNamed() || strings.HasSuffix(kind, "_modifier"):
		if k, ok := keywordKinds[strings.ToLower(text)]; ok {
			return Token{Kind: k, Text: text}
		}
		if k, ok := punctuationKinds[text]; ok {
			return Token{Kind: k, Text: text}
		}
	}
	return Token{Kind: TokenOther, Text: text}
}

// isDocComment reports whether a comment is a "/**" block followed by
// whitespace, which PHP treats as a doc comment.
func isDocComment(text string) bool {
	if len(text) < 5 || !strings.HasPrefix(text, "/**") {
		return false
	}
	switch text[3] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
