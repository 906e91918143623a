package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// StubDark is the style used for stub output.
var StubDark = styles.Register(chroma.MustNewStyle("tbd-dark", chroma.StyleEntries{
	chroma.Text:       "#D4D4D4",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#6A9955",

	// Document markers and the !tapi-tbd-v2 tag.
	chroma.NameTag:     "#569CD6",
	chroma.Keyword:     "#C586C0",
	chroma.KeywordType: "#C586C0",

	chroma.NameAttribute: "#9CDCFE",
	chroma.NameVariable:  "#9CDCFE",

	chroma.LiteralString:       "#EACD53",
	chroma.LiteralStringDouble: "#EACD53",
	chroma.LiteralNumber:       "#FF5F87",

	chroma.Punctuation: "#858585",
	chroma.Operator:    "#858585",
}))
