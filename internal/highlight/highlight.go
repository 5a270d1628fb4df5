// Package highlight applies ANSI terminal syntax highlighting to the
// SQL and JSON text the TUI displays: redacted DDL from QUERY events
// and the Canal JSON record body itself.
package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	sqlLexer  chroma.Lexer
	jsonLexer chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	sqlLexer = lexers.Get("sql")
	jsonLexer = lexers.Get("json")
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// SQL returns the input with ANSI terminal syntax highlighting applied.
// On error or empty input, the original string is returned unchanged.
func SQL(s string) string {
	return render(sqlLexer, s)
}

// JSON returns a Canal record's JSON body with ANSI terminal syntax
// highlighting applied. On error or empty input, the original string
// is returned unchanged.
func JSON(s string) string {
	return render(jsonLexer, s)
}

func render(lexer chroma.Lexer, s string) string {
	if s == "" {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}
