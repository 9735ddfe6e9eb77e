// ABOUTME: Markdown rendering for agent answers
// ABOUTME: Goldmark with GFM extensions; human messages are never rendered

package web

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// md renders agent answers. Agents are trusted to produce markdown but
// not HTML: raw HTML in the source is escaped, not passed through.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderMarkdown converts an agent answer to HTML for the chat page.
// On a rendering failure the content is shown as escaped plain text.
func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}
