// Package colorize highlights generated stubs for terminal output.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// EnvNoColor disables highlighting when set to any value.
const EnvNoColor = "TBD_NO_COLOR"

// Disabled reports whether highlighting is turned off.
func Disabled() bool {
	return os.Getenv(EnvNoColor) != ""
}

func getYAMLLexer() chroma.Lexer {
	if lexer := lexers.Get("yaml"); lexer != nil {
		return chroma.Coalesce(lexer)
	}
	return nil
}

func getStubStyle() *chroma.Style {
	for _, name := range []string{"tbd-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Stub highlights a tbd document. The text comes back unchanged when colors
// are disabled or no YAML lexer is registered.
func Stub(text string) (string, error) {
	if Disabled() {
		return text, nil
	}
	lexer := getYAMLLexer()
	if lexer == nil {
		return text, nil
	}

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text, err
	}
	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getStubStyle(), iterator); err != nil {
		return text, err
	}
	return buf.String(), nil
}

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	var sb strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\x1b':
			inEscape = true
		case inEscape:
			if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
				inEscape = false
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
