package placeholder

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdownInstance is initialized once and reused. The converter
// configuration never changes and goldmark.Markdown is safe to share;
// per-call parse state is created inside Convert.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
	strictPolicy     *bluemonday.Policy
	strictOnce       sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
		)
	})
	return markdownInstance
}

// renderMarkdown converts markdown source to HTML. It is only invoked for
// content whose resolved path carries the "md" extension; everything else
// is inlined verbatim.
func renderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return buf.String(), nil
}

// escapeText strips and escapes any markup from store-derived text (titles,
// names, emails) before it is interpolated into generated widget HTML.
func escapeText(s string) string {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy.Sanitize(s)
}
