// Package doccomment parses PHP doc comment blocks into a summary line and
// simple single-line tags.
package doccomment

import (
	"regexp"
	"strings"
)

// Annotations maps a tag name to its values in encounter order. A tag
// without a value contributes an empty string.
type Annotations map[string][]string

// First returns the first value of tag and whether the tag is present.
func (a Annotations) First(tag string) (string, bool) {
	values, ok := a[tag]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Has reports whether tag appears at least once.
func (a Annotations) Has(tag string) bool {
	_, ok := a[tag]
	return ok
}

// Parsed is the summary and tags of a doc comment.
type Parsed struct {
	Summary     string      `json:"summary"`
	Annotations Annotations `json:"annotations"`
}

// Comment is a raw doc comment block, including its delimiters.
type Comment struct {
	raw string
}

// New wraps a raw doc comment block.
func New(raw string) *Comment {
	return &Comment{raw: raw}
}

// Raw returns the block as written.
func (c *Comment) Raw() string {
	return c.raw
}

func (c *Comment) String() string {
	return c.raw
}

// PlainText returns the block without delimiters and '*' prefixes.
func (c *Comment) PlainText() string {
	return PlainText(c.raw)
}

// Summary returns the first paragraph of the block on one line.
func (c *Comment) Summary() string {
	return Summary(c.PlainText())
}

// Annotations returns the block's single-line tags.
func (c *Comment) Annotations() Annotations {
	return ParseAnnotations(c.PlainText())
}

// Parse returns summary and tags together.
func (c *Comment) Parse() Parsed {
	plain := c.PlainText()
	return Parsed{
		Summary:     Summary(plain),
		Annotations: ParseAnnotations(plain),
	}
}

// PlainText strips the comment delimiters and per-line '*' prefixes from raw,
// normalizes line endings to "\n" and drops leading and trailing blank
// lines. A non-empty result always ends with a newline.
func PlainText(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripDecoration(line)
	}

	plain := strings.Trim(strings.Join(lines, "\n"), "\n")
	if plain != "" {
		plain += "\n"
	}
	return plain
}

// stripDecoration removes the comment opener, a closing "*/" line and the
// leading '*' run plus one space or tab from a single line.
func stripDecoration(line string) string {
	trimmed := strings.TrimLeft(line, " \t")

	stars := strings.TrimLeft(trimmed, "*")
	if len(stars) < len(trimmed) && stars == "/" {
		return ""
	}

	rest := trimmed
	if strings.HasPrefix(rest, "/*") {
		rest = rest[1:]
	}
	if !strings.HasPrefix(rest, "*") {
		return stripCloser(line)
	}
	rest = strings.TrimLeft(rest, "*")
	if strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, "\t") {
		rest = rest[1:]
	}
	return stripCloser(rest)
}

// stripCloser removes a "*/" that ends a line carrying text, as in one-line
// blocks.
func stripCloser(line string) string {
	if !strings.HasSuffix(line, "*/") {
		return line
	}
	return strings.TrimRight(strings.TrimRight(strings.TrimSuffix(line, "*/"), "*"), " \t")
}

// Summary extracts the summary from a plain comment: everything before the
// first tag line, cut at the first blank line, joined onto one line. An "@"
// inside running text does not start a tag.
func Summary(plain string) string {
	var paragraph []string
	for _, line := range strings.Split(plain, "\n") {
		if isTagLine(line) {
			break
		}
		if strings.TrimSpace(line) == "" {
			if len(paragraph) > 0 {
				break
			}
			continue
		}
		paragraph = append(paragraph, line)
	}
	return strings.TrimSpace(strings.Join(paragraph, " "))
}

var annotationLine = regexp.MustCompile(`^[ \t]*@([A-Za-z_-]+)(?:[ \t]+(.*?))?[ \t]*$`)

// ParseAnnotations collects every "@name value" line of a plain comment.
// Continuation lines of multi-line tag descriptions are ignored.
func ParseAnnotations(plain string) Annotations {
	annotations := Annotations{}
	for _, line := range strings.Split(plain, "\n") {
		m := annotationLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		annotations[m[1]] = append(annotations[m[1]], m[2])
	}
	return annotations
}

func isTagLine(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "@")
}
