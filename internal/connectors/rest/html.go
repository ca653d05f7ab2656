package rest

import (
	"html"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	cdata         = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	macroParams   = regexp.MustCompile(`(?is)<ac:parameter[^>]*>.*?</ac:parameter>`)
	blockElements = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|ul|ol|tr|table|blockquote|pre|section|ac:structured-macro|ac:rich-text-body|ac:plain-text-body)[^>]*>`)
	breakTags     = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	cellTags      = regexp.MustCompile(`(?i)</(td|th)>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// StripHTML reduces HTML or Confluence storage format to plain text.
// Block elements become line breaks, table cells are separated by spaces,
// macro parameters are dropped and CDATA bodies (code macros) are kept.
func StripHTML(content string) string {
	if content == "" {
		return ""
	}

	// CDATA bodies are escaped so tag stripping leaves "<" in code intact.
	content = cdata.ReplaceAllStringFunc(content, func(m string) string {
		return "\n" + html.EscapeString(cdata.FindStringSubmatch(m)[1]) + "\n"
	})
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = macroParams.ReplaceAllString(content, "")

	content = blockElements.ReplaceAllString(content, "\n")
	content = breakTags.ReplaceAllString(content, "\n")
	content = cellTags.ReplaceAllString(content, " ")
	content = allTags.ReplaceAllString(content, "")

	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	result := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
