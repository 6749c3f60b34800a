package reflection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the fact parser:
// - Parses the full example fixture header into the expected record
// - Regression headers: namespaced class, brace on own line, imports +
//   ancestors, bracketed namespace block
// - Aliased imports key on the alias, unaliased on the basename
// - Group imports expand their prefix; function/const imports are skipped
// - Interfaces may extend several interfaces
// - Traits report no implements list
// - The last doc comment before the declaration wins
// - Ordinary comments never leak into names
// - Headers without a declaration yield KindUnknown and empty lists
// - "Foo::class" and "new class" do not open a declaration
// - Parsing is idempotent
// - Token-level state machine behaviour independent of the lexer

func TestParseContent_ExampleFixture(t *testing.T) {
	t.Parallel()

	header, err := ReadHeaderFile(fixturePath("Example.php"))
	require.NoError(t, err)

	rec := parseHeader(t, header)

	assert.Equal(t, fixturesNS, rec.Namespace)
	assert.Equal(t, fixturesNS+`\Example`, rec.FQCN)
	assert.Equal(t, "Example", rec.ShortName)
	assert.Equal(t, KindClass, rec.Kind)
	assert.True(t, rec.Abstract)
	assert.False(t, rec.Final)
	assert.Equal(t, map[string]string{
		"Registry":          `Acme\Reflection\Support\Registry`,
		"ImportedInterface": fixturesNS + `\Base\ImportedInterface`,
		"FooAlias":          "Foo",
	}, rec.Imports)
	assert.Equal(t, []string{fixturesNS + `\Base\Example`}, rec.Extends)
	assert.Equal(t, []string{
		fixturesNS + `\Example1Interface`,
		fixturesNS + `\Base\Example2Interface`,
		fixturesNS + `\Base\ImportedInterface`,
		"Countable",
	}, rec.Implements)
	assert.Equal(t, `/**
 * PHPDoc summary line.
 * Summary may wrap.
 *
 * Description #1.
 *
 * @tag
 * @single parameter
 * @multiple type $param
 *
 * Description #2.
 *
 * @see Example1Interface
 */`, rec.DocComment)
}

func TestParseContent_Regressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		namespace  string
		fqcn       string
		imports    map[string]string
		extends    []string
		implements []string
	}{
		{
			name:      "namespaced class",
			content:   "<?php\nnamespace Foo\\Bar;\n\nclass Baz {\n}\n",
			namespace: `Foo\Bar`,
			fqcn:      `Foo\Bar\Baz`,
		},
		{
			name:      "brace on own line",
			content:   "<?php\nnamespace Psr;\n\nclass Two\n{\n}\n",
			namespace: "Psr",
			fqcn:      `Psr\Two`,
		},
		{
			name:       "imported parent and local interface",
			content:    "<?php\nnamespace White;\nuse Black\\Grey;\nclass Space\n  extends Grey\n  implements Dust\n{\n}\n",
			namespace:  "White",
			fqcn:       `White\Space`,
			imports:    map[string]string{"Grey": `Black\Grey`},
			extends:    []string{`Black\Grey`},
			implements: []string{`White\Dust`},
		},
		{
			name:      "bracketed namespace",
			content:   "<?php\nnamespace Foo\\Bar {\n\nclass Baz {\n}\n}\n",
			namespace: `Foo\Bar`,
			fqcn:      `Foo\Bar\Baz`,
		},
		{
			name:      "no open tag",
			content:   `namespace Foo\Bar; class Baz {}`,
			namespace: `Foo\Bar`,
			fqcn:      `Foo\Bar\Baz`,
		},
		{
			name:    "global namespace",
			content: "<?php\nclass Plain extends \\Exception {}\n",
			fqcn:    "Plain",
			extends: []string{"Exception"},
		},
		{
			name:      "aliased import",
			content:   "<?php\nnamespace App;\nuse Clash\\MyClass as Alias;\nclass Thing extends Alias {}\n",
			namespace: "App",
			fqcn:      `App\Thing`,
			imports:   map[string]string{"Alias": `Clash\MyClass`},
			extends:   []string{`Clash\MyClass`},
		},
		{
			name:      "group import",
			content:   "<?php\nnamespace App;\nuse Lib\\{One, Two as Deux};\nclass Thing extends One implements Deux {}\n",
			namespace: "App",
			fqcn:      `App\Thing`,
			imports:   map[string]string{"One": `Lib\One`, "Deux": `Lib\Two`},
			extends:   []string{`Lib\One`},
			implements: []string{
				`Lib\Two`,
			},
		},
		{
			name:      "function and const imports are skipped",
			content:   "<?php\nnamespace App;\nuse function Lib\\helper;\nuse const Lib\\LIMIT;\nuse Lib\\Base;\nclass Thing extends Base {}\n",
			namespace: "App",
			fqcn:      `App\Thing`,
			imports:   map[string]string{"Base": `Lib\Base`},
			extends:   []string{`Lib\Base`},
		},
		{
			name:      "comma separated imports",
			content:   "<?php\nnamespace App;\nuse Lib\\One, Lib\\Two;\nclass Thing implements One, Two {}\n",
			namespace: "App",
			fqcn:      `App\Thing`,
			imports:   map[string]string{"One": `Lib\One`, "Two": `Lib\Two`},
			implements: []string{
				`Lib\One`,
				`Lib\Two`,
			},
		},
		{
			name:      "partially qualified through import",
			content:   "<?php\nnamespace App;\nuse Vendor\\Package;\nclass Thing extends Package\\Base {}\n",
			namespace: "App",
			fqcn:      `App\Thing`,
			imports:   map[string]string{"Package": `Vendor\Package`},
			extends:   []string{`Vendor\Package\Base`},
		},
		{
			name:       "namespace-relative ancestors",
			content:    "<?php\nnamespace App;\nclass Foo extends namespace\\Sub\\Bar implements Q, namespace\\Contracts\\R {}\n",
			namespace:  "App",
			fqcn:       `App\Foo`,
			extends:    []string{`App\Sub\Bar`},
			implements: []string{`App\Q`, `App\Contracts\R`},
		},
		{
			name:      "namespace-relative call before declaration",
			content:   "<?php\nnamespace App;\nnamespace\\boot();\nclass Foo {}\n",
			namespace: "App",
			fqcn:      `App\Foo`,
		},
		{
			name:      "class constant before declaration",
			content:   "<?php\nnamespace App;\n$x = Other::class;\nclass Thing {}\n",
			namespace: "App",
			fqcn:      `App\Thing`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := parseHeader(t, tt.content)

			assert.Equal(t, tt.namespace, rec.Namespace)
			assert.Equal(t, tt.fqcn, rec.FQCN)
			assert.Equal(t, KindClass, rec.Kind)

			imports := tt.imports
			if imports == nil {
				imports = map[string]string{}
			}
			assert.Equal(t, imports, rec.Imports)
			assert.Equal(t, nonNil(tt.extends), rec.Extends)
			assert.Equal(t, nonNil(tt.implements), rec.Implements)
		})
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func TestParseContent_Kinds(t *testing.T) {
	t.Parallel()

	t.Run("interface extending several interfaces", func(t *testing.T) {
		t.Parallel()
		rec := parseHeader(t, "<?php\nnamespace Shapes;\ninterface Shape extends \\Countable, Drawable {}\n")
		assert.Equal(t, KindInterface, rec.Kind)
		assert.True(t, rec.IsInterface())
		assert.False(t, rec.IsInstantiable())
		assert.Equal(t, []string{"Countable", `Shapes\Drawable`}, rec.Extends)
		assert.Empty(t, rec.Implements)
	})

	t.Run("trait", func(t *testing.T) {
		t.Parallel()
		header, err := ReadHeaderFile(fixturePath("Base", "Timestamps.php"))
		require.NoError(t, err)
		rec := parseHeader(t, header)
		assert.Equal(t, KindTrait, rec.Kind)
		assert.True(t, rec.IsTrait())
		assert.Equal(t, fixturesNS+`\Base\Timestamps`, rec.FQCN)
		assert.Empty(t, rec.Implements)
		assert.Empty(t, rec.Extends)
	})

	t.Run("final class", func(t *testing.T) {
		t.Parallel()
		rec := parseHeader(t, "<?php\nfinal class Sealed {}\n")
		assert.True(t, rec.Final)
		assert.False(t, rec.Abstract)
		assert.True(t, rec.IsInstantiable())
	})

	t.Run("no declaration", func(t *testing.T) {
		t.Parallel()
		header, err := ReadHeaderFile(fixturePath("Functions.php"))
		require.NoError(t, err)
		rec := parseHeader(t, header)
		assert.Equal(t, KindUnknown, rec.Kind)
		assert.False(t, rec.Found())
		assert.Empty(t, rec.FQCN)
		assert.Empty(t, rec.Extends)
		assert.Empty(t, rec.Implements)
		assert.Equal(t, fixturesNS, rec.Namespace)
	})
}

func TestParseContent_DocComments(t *testing.T) {
	t.Parallel()

	t.Run("last doc comment wins", func(t *testing.T) {
		t.Parallel()
		rec := parseHeader(t, "<?php\n/**\n * File header.\n */\n\nnamespace A;\n\n/**\n * The class.\n */\nclass B {}\n")
		assert.Equal(t, "/**\n * The class.\n */", rec.DocComment)
	})

	t.Run("ordinary comments are not doc comments", func(t *testing.T) {
		t.Parallel()
		rec := parseHeader(t, "<?php\n/**\n * Doc.\n */\n/* plain */\n// line\nclass B {}\n")
		assert.Equal(t, "/**\n * Doc.\n */", rec.DocComment)
	})

	t.Run("no doc comment", func(t *testing.T) {
		t.Parallel()
		rec := parseHeader(t, "<?php\nclass B {}\n")
		assert.Empty(t, rec.DocComment)
	})
}

func TestParseContent_Idempotent(t *testing.T) {
	t.Parallel()

	header, err := ReadHeaderFile(fixturePath("Example.php"))
	require.NoError(t, err)

	lexer := NewLexer()
	first, err := ParseContent(context.Background(), lexer, header)
	require.NoError(t, err)
	second, err := ParseContent(context.Background(), lexer, header)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseTokens_StateMachine(t *testing.T) {
	t.Parallel()

	name := func(s string) Token { return Token{Kind: TokenName, Text: s} }
	sep := Token{Kind: TokenSeparator, Text: `\`}
	semi := Token{Kind: TokenSemicolon, Text: ";"}
	comma := Token{Kind: TokenComma, Text: ","}
	open := Token{Kind: TokenOpenBrace, Text: "{"}
	kw := func(k TokenKind, s string) Token { return Token{Kind: k, Text: s} }

	t.Run("comments inside names are ignored", func(t *testing.T) {
		t.Parallel()
		rec := ParseTokens([]Token{
			kw(TokenNamespace, "namespace"), name("A"), {Kind: TokenComment, Text: "/* x */"}, sep, name("B"), semi,
			kw(TokenUse, "use"), name("Foo"), {Kind: TokenComment, Text: "// Name clash."}, kw(TokenAs, "as"), name("FooAlias"), semi,
			kw(TokenClass, "class"), name("C"), open,
		})
		assert.Equal(t, `A\B`, rec.Namespace)
		assert.Equal(t, `A\B\C`, rec.FQCN)
		assert.Equal(t, map[string]string{"FooAlias": "Foo"}, rec.Imports)
	})

	t.Run("duplicate import key keeps the last", func(t *testing.T) {
		t.Parallel()
		rec := ParseTokens([]Token{
			kw(TokenUse, "use"), name("One"), sep, name("Thing"), semi,
			kw(TokenUse, "use"), name("Two"), sep, name("Thing"), semi,
			kw(TokenClass, "class"), name("C"), kw(TokenExtends, "extends"), name("Thing"),
		})
		assert.Equal(t, map[string]string{"Thing": `Two\Thing`}, rec.Imports)
		assert.Equal(t, []string{`Two\Thing`}, rec.Extends)
	})

	t.Run("stream ending without brace", func(t *testing.T) {
		t.Parallel()
		rec := ParseTokens([]Token{
			kw(TokenAbstract, "abstract"), kw(TokenClass, "class"), name("C"),
			kw(TokenImplements, "implements"), name("I"), comma, sep, name("J"),
		})
		assert.True(t, rec.Abstract)
		assert.Equal(t, "C", rec.FQCN)
		assert.Equal(t, []string{"I", "J"}, rec.Implements)
	})

	t.Run("tokens after the declaration brace are ignored", func(t *testing.T) {
		t.Parallel()
		rec := ParseTokens([]Token{
			kw(TokenClass, "class"), name("C"), open,
			kw(TokenUse, "use"), name("SomeTrait"), semi,
			{Kind: TokenDocComment, Text: "/** method */"},
		})
		assert.Empty(t, rec.Imports)
		assert.Empty(t, rec.DocComment)
	})

	t.Run("new class is not a declaration", func(t *testing.T) {
		t.Parallel()
		rec := ParseTokens([]Token{
			{Kind: TokenOther, Text: "$x"}, {Kind: TokenOther, Text: "="}, kw(TokenNew, "new"), kw(TokenClass, "class"), open, {Kind: TokenCloseBrace, Text: "}"}, semi,
			kw(TokenInterface, "interface"), name("I"), open,
		})
		assert.Equal(t, KindInterface, rec.Kind)
		assert.Equal(t, "I", rec.FQCN)
	})

	t.Run("namespace operator in ancestor list", func(t *testing.T) {
		t.Parallel()
		rec := ParseTokens([]Token{
			kw(TokenNamespace, "namespace"), name("App"), semi,
			kw(TokenClass, "class"), name("Foo"),
			kw(TokenExtends, "extends"), kw(TokenNamespace, "namespace"), sep, name("Sub"), sep, name("Bar"),
			kw(TokenImplements, "implements"), kw(TokenNamespace, "NAMESPACE"), sep, name("Q"), open,
		})
		assert.Equal(t, "App", rec.Namespace)
		assert.Equal(t, `App\Foo`, rec.FQCN)
		assert.Equal(t, []string{`App\Sub\Bar`}, rec.Extends)
		assert.Equal(t, []string{`App\Q`}, rec.Implements)
	})

	t.Run("empty stream", func(t *testing.T) {
		t.Parallel()
		rec := ParseTokens(nil)
		assert.Equal(t, KindUnknown, rec.Kind)
		assert.NotNil(t, rec.Imports)
		assert.NotNil(t, rec.Extends)
		assert.NotNil(t, rec.Implements)
	})
}
