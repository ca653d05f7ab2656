// Package markdown reduces Markdown documents to plain text.
package markdown

import (
	"regexp"
	"strings"
)

var (
	fence        = regexp.MustCompile("(?m)^[ \t]*(```|~~~)[^\\n]*\\n?")
	inlineCode   = regexp.MustCompile("`([^`\\n]+)`")
	images       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	refLinks     = regexp.MustCompile(`(?m)^[ \t]*\[[^\]]+\]:[ \t]+\S+.*$\n?`)
	htmlTags     = regexp.MustCompile(`</?[a-zA-Z][^>\n]*>`)
	headings     = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	setextRule   = regexp.MustCompile(`(?m)^[ \t]*(=+|-+)[ \t]*$\n?`)
	blockquote   = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	hr           = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$\n?`)
	listMarkers  = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+(\[[ xX]\][ \t]+)?`)
	numberedList = regexp.MustCompile(`(?m)^([ \t]*)\d+[.)][ \t]+`)
	strong       = regexp.MustCompile(`(\*\*|__)([^*_\n]+)(\*\*|__)`)
	emphasis     = regexp.MustCompile(`(^|[\s(])[*_]([^*_\s][^*_\n]*?)[*_]([\s).,;:!?]|$)`)
	tableRule    = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-+:?[ \t]*(\|[ \t]*:?-+:?[ \t]*)*\|?[ \t]*$\n?`)
	multiSpaces  = regexp.MustCompile(`[ \t]+`)
	multiLines   = regexp.MustCompile(`\n{3,}`)
)

// Strip removes Markdown formatting and keeps the readable text.
// Code block bodies, link text and snake_case identifiers survive.
func Strip(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	content = fence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = refLinks.ReplaceAllString(content, "")
	content = htmlTags.ReplaceAllString(content, "")

	content = hr.ReplaceAllString(content, "")
	content = tableRule.ReplaceAllString(content, "")
	content = headings.ReplaceAllString(content, "")
	content = setextRule.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "$1")
	content = numberedList.ReplaceAllString(content, "$1")

	content = strong.ReplaceAllString(content, "$2")
	content = emphasis.ReplaceAllString(content, "$1$2$3")
	content = strings.ReplaceAll(content, "|", " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
	}
	content = strings.Join(lines, "\n")
	content = multiLines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}

// IsMarkdown reports whether a file path has a Markdown extension.
func IsMarkdown(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".md", ".markdown", ".mdx"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
