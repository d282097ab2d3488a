package transform

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLText extracts readable text from an HTML document: script and style
// nodes are dropped, the remaining text is whitespace-normalized, one
// block per line.
type HTMLText struct{}

// Name identifies the transform in config and events.
func (HTMLText) Name() string { return "htmltext" }

// Transform parses the input as HTML and returns its visible text.
func (HTMLText) Transform(input []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		for _, block := range strings.Split(body.Text(), "\n") {
			if trimmed := strings.Join(strings.Fields(block), " "); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
	})
	if len(lines) == 0 {
		// Fragment without a body element; fall back to the whole tree.
		for _, block := range strings.Split(doc.Text(), "\n") {
			if trimmed := strings.Join(strings.Fields(block), " "); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
	}
	return []byte(strings.Join(lines, "\n")), nil
}
