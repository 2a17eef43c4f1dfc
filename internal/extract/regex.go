package extract

import (
	"iter"
	"regexp"
)

var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*(?:["']([^"']*)["']|([^>\s]+))`)

// Regex finds href attributes with a regular expression. It tolerates
// malformed markup and also picks up hrefs in scripts and comments.
type Regex struct{}

// NewRegex returns a Regex extractor.
func NewRegex() *Regex {
	return &Regex{}
}

// Extract lazily yields each href value. Matching resumes where the previous
// match ended, so stopping early does no extra work.
func (Regex) Extract(markup string) iter.Seq[string] {
	return func(yield func(string) bool) {
		pos := 0
		for pos < len(markup) {
			loc := hrefPattern.FindStringSubmatchIndex(markup[pos:])
			if loc == nil {
				return
			}
			var value string
			switch {
			case loc[2] >= 0:
				value = markup[pos+loc[2] : pos+loc[3]]
			case loc[4] >= 0:
				value = markup[pos+loc[4] : pos+loc[5]]
			}
			pos += loc[1]
			if !yield(value) {
				return
			}
		}
	}
}
