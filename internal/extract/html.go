package extract

import (
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// HTML walks markup with the x/net/html tokenizer and yields the href
// attribute of every start or self-closing tag.
type HTML struct{}

// NewHTML returns an HTML extractor.
func NewHTML() *HTML {
	return &HTML{}
}

// Extract lazily yields href values in document order. Tokenizer errors end
// the sequence.
func (HTML) Extract(markup string) iter.Seq[string] {
	return func(yield func(string) bool) {
		tokenizer := html.NewTokenizer(strings.NewReader(markup))
		for {
			switch tokenizer.Next() {
			case html.ErrorToken:
				return
			case html.StartTagToken, html.SelfClosingTagToken:
				for {
					key, val, more := tokenizer.TagAttr()
					if string(key) == "href" {
						if !yield(string(val)) {
							return
						}
					}
					if !more {
						break
					}
				}
			}
		}
	}
}
