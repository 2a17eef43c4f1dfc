// Package extract provides link extractors. Both return raw href values
// exactly as written in the markup.
package extract

import (
	"fmt"
	"iter"
	"strings"
)

// Extractor yields raw href values found in markup.
type Extractor interface {
	Extract(markup string) iter.Seq[string]
}

// New returns the extractor registered under name: "regex" (the default) or
// "html".
func New(name string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "regex":
		return NewRegex(), nil
	case "html":
		return NewHTML(), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
}
