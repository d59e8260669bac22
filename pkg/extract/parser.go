package extract

import (
	"errors"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTextLength caps extracted text so a single huge file can not bloat
// the index.
const MaxTextLength = 10000

// ErrTruncated reports that parsing succeeded but output was cut at the
// limit. Callers treat it as success.
var ErrTruncated = errors.New("extracted text truncated")

// Parser extracts plain text from one document format.
type Parser interface {
	// Parse returns at most limit characters of plain text. A return of
	// ErrTruncated means the text was cut at the limit and is still usable.
	Parse(data []byte, limit int) (string, error)
}

// ParserFor selects a parser by the file name's extension. Unknown formats
// fall back to the plain text parser.
func ParserFor(fileName string) Parser {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".md", ".markdown":
		return MarkdownParser{}
	case ".html", ".htm", ".xhtml":
		return HTMLParser{}
	default:
		return PlainTextParser{}
	}
}

// PlainTextParser passes text through with whitespace normalization.
type PlainTextParser struct{}

func (PlainTextParser) Parse(data []byte, limit int) (string, error) {
	return capText(normalizeWhitespace(string(data)), limit)
}

// MarkdownParser strips Markdown syntax, leaving readable prose.
type MarkdownParser struct{}

var (
	mdCodeBlocks   = regexp.MustCompile("(?s)```[^`]*```")
	mdInlineCode   = regexp.MustCompile("`[^`]+`")
	mdImages       = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinks        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeadings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquotes  = regexp.MustCompile(`(?m)^>\s*`)
	mdRules        = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdListMarkers  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
)

func (MarkdownParser) Parse(data []byte, limit int) (string, error) {
	text := string(data)
	text = mdCodeBlocks.ReplaceAllString(text, "")
	text = mdInlineCode.ReplaceAllString(text, "")
	text = mdImages.ReplaceAllString(text, "")
	text = mdLinks.ReplaceAllString(text, "$1")
	text = mdHeadings.ReplaceAllString(text, "")
	text = mdBlockquotes.ReplaceAllString(text, "")
	text = mdRules.ReplaceAllString(text, "")
	text = mdListMarkers.ReplaceAllString(text, "")
	text = mdNumberedList.ReplaceAllString(text, "")
	text = strings.NewReplacer("**", "", "__", "", "*", "", "_", " ").Replace(text)
	return capText(normalizeWhitespace(text), limit)
}

// HTMLParser strips tags and decodes entities, keeping visible text.
type HTMLParser struct{}

var (
	htmlScript   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlStyle    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlHead     = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlBlocks   = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	htmlTags     = regexp.MustCompile(`<[^>]+>`)
)

func (HTMLParser) Parse(data []byte, limit int) (string, error) {
	text := string(data)
	text = htmlScript.ReplaceAllString(text, "")
	text = htmlStyle.ReplaceAllString(text, "")
	text = htmlHead.ReplaceAllString(text, "")
	text = htmlComments.ReplaceAllString(text, "")
	text = htmlBlocks.ReplaceAllString(text, "\n")
	text = htmlTags.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	return capText(normalizeWhitespace(text), limit)
}

var (
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = multiSpaces.ReplaceAllString(text, " ")
	text = multiNewlines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func capText(text string, limit int) (string, error) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, nil
	}
	runes := []rune(text)
	return string(runes[:limit]), ErrTruncated
}
