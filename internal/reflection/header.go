package reflection

import (
	"bufio"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
)

// declarationLine matches the line that opens the primary declaration.
var declarationLine = regexp.MustCompile(`^\s*(?:(?:abstract|final)\s+)?(?:interface|class|trait)\s+\w+`)

// headerCutset is stripped from both ends of a header, which removes the
// declaration's opening brace.
const headerCutset = " \t\r\n{"

// ReadHeader returns the prefix of r up to and including the first line that
// declares a class, interface or trait. Reading stops at that line.
//
// When no declaration line exists the whole input is returned; the parser
// reports such headers as KindUnknown.
func ReadHeader(r io.Reader) (string, error) {
	var b strings.Builder
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		b.WriteString(line)
		if declarationLine.MatchString(line) {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
	}
	return strings.Trim(b.String(), headerCutset), nil
}

// ReadHeaderFile opens path and returns its header. Failures are reported as
// *IOError.
func ReadHeaderFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &IOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	header, err := ReadHeader(f)
	if err != nil {
		return "", &IOError{Path: path, Op: "read", Err: err}
	}
	return header, nil
}
