package schema

import (
	"fmt"
	"strings"
)

// IndexPlaceholder matches a non-negative integer segment.
const IndexPlaceholder = "<index>"

// Pattern is a record key: a literal such as "theme", or a slash-separated
// template such as "transaction/<index>" whose placeholder segments match
// any value of their class.
type Pattern string

type segment struct {
	literal     string
	placeholder string // empty for literal segments
}

func (p Pattern) segments() []segment {
	parts := strings.Split(string(p), "/")
	segs := make([]segment, len(parts))
	for i, part := range parts {
		if isPlaceholder(part) {
			segs[i] = segment{placeholder: part}
		} else {
			segs[i] = segment{literal: part}
		}
	}
	return segs
}

// IsLiteral reports whether p has no placeholders.
func (p Pattern) IsLiteral() bool {
	for _, s := range p.segments() {
		if s.placeholder != "" {
			return false
		}
	}
	return true
}

// Validate checks that p is well formed.
func (p Pattern) Validate() error {
	if p == "" {
		return fmt.Errorf("empty key pattern")
	}
	for _, part := range strings.Split(string(p), "/") {
		if part == "" {
			return fmt.Errorf("key pattern %q has an empty segment", p)
		}
		if strings.ContainsAny(part, "<>") && !isPlaceholder(part) {
			return fmt.Errorf("key pattern %q has a malformed placeholder %q", p, part)
		}
	}
	return nil
}

// Match reports whether key belongs to the key domain of p.
func (p Pattern) Match(key string) bool {
	segs := p.segments()
	parts := strings.Split(key, "/")
	if len(parts) != len(segs) {
		return false
	}
	for i, s := range segs {
		if !s.accepts(parts[i]) {
			return false
		}
	}
	return true
}

// Overlaps reports whether some key could match both p and q.
func (p Pattern) Overlaps(q Pattern) bool {
	a, b := p.segments(), q.segments()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].compatible(b[i]) {
			return false
		}
	}
	return true
}

// Expand substitutes values for the placeholders of p, in order.
func (p Pattern) Expand(values ...string) (string, error) {
	segs := p.segments()
	parts := make([]string, len(segs))
	next := 0
	for i, s := range segs {
		if s.placeholder == "" {
			parts[i] = s.literal
			continue
		}
		if next >= len(values) {
			return "", fmt.Errorf("key pattern %q: missing value for %s", p, s.placeholder)
		}
		if !s.accepts(values[next]) {
			return "", fmt.Errorf("key pattern %q: %q is not a valid %s", p, values[next], s.placeholder)
		}
		parts[i] = values[next]
		next++
	}
	if next != len(values) {
		return "", fmt.Errorf("key pattern %q: %d values for %d placeholders", p, len(values), next)
	}
	return strings.Join(parts, "/"), nil
}

func (s segment) accepts(part string) bool {
	switch {
	case s.placeholder == "":
		return part == s.literal
	case s.placeholder == IndexPlaceholder:
		return isDigits(part)
	default:
		return part != ""
	}
}

func (s segment) compatible(o segment) bool {
	switch {
	case s.placeholder == "" && o.placeholder == "":
		return s.literal == o.literal
	case s.placeholder == "":
		return o.accepts(s.literal)
	case o.placeholder == "":
		return s.accepts(o.literal)
	default:
		// Every placeholder class accepts some digit string.
		return true
	}
}

func isPlaceholder(part string) bool {
	return len(part) > 2 && part[0] == '<' && part[len(part)-1] == '>' &&
		!strings.ContainsAny(part[1:len(part)-1], "<>")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
