// Package seed locates the root account seed in the core's initialization log.
package seed

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSeedNotFound means no line of the log carried a seed at the expected
// position. It signals a broken assumption about the log format, not a
// failed command.
var ErrSeedNotFound = errors.New("root account seed not found")

// Anchor selects what Pattern.Index counts from.
type Anchor int

const (
	// AnchorMarker counts tokens from the first token of the marker.
	AnchorMarker Anchor = iota
	// AnchorLine counts tokens from the start of the line.
	AnchorLine
)

// DefaultMarker is the phrase the core prints next to the generated seed.
const DefaultMarker = "Root account seed"

// Pattern describes where the seed sits on its line.
type Pattern struct {
	Marker string
	// Delimiter separates tokens. Empty means any run of whitespace.
	Delimiter string
	Index     int
	Anchor    Anchor
}

// DefaultPattern matches "... Root account seed: S..." lines.
func DefaultPattern() Pattern {
	return Pattern{Marker: DefaultMarker, Index: 3, Anchor: AnchorMarker}
}

// Extract returns the token at p.Index on the first line containing p.Marker.
func Extract(log string, p Pattern) (string, error) {
	if p.Marker == "" {
		return "", fmt.Errorf("seed marker is empty")
	}
	if p.Index < 0 {
		return "", fmt.Errorf("seed token index %d is negative", p.Index)
	}

	for _, line := range strings.Split(log, "\n") {
		pos := strings.Index(line, p.Marker)
		if pos < 0 {
			continue
		}

		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		pos = strings.Index(line, p.Marker)
		tokens := p.split(line)

		idx := p.Index
		if p.Anchor == AnchorMarker {
			idx += p.markerStart(line[:pos])
		}
		if idx >= len(tokens) {
			return "", fmt.Errorf("%w: line %q has no token at index %d", ErrSeedNotFound, line, idx)
		}
		return tokens[idx], nil
	}

	return "", fmt.Errorf("%w: no line contains %q", ErrSeedNotFound, p.Marker)
}

func (p Pattern) split(s string) []string {
	if p.Delimiter == "" {
		return strings.Fields(s)
	}
	var tokens []string
	for _, tok := range strings.Split(s, p.Delimiter) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// markerStart is the index of the token in which the marker begins. A marker
// glued to the preceding text shares that token.
func (p Pattern) markerStart(prefix string) int {
	n := len(p.split(prefix))
	if n > 0 && !p.endsWithDelimiter(prefix) {
		n--
	}
	return n
}

func (p Pattern) endsWithDelimiter(s string) bool {
	if p.Delimiter == "" {
		return strings.TrimRightFunc(s, isSpace) != s
	}
	return strings.HasSuffix(s, p.Delimiter)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\v' || r == '\f' || r == '\r'
}

// Redact returns a prefix of s safe to log.
func Redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "..."
}
