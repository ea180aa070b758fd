package relation

import (
	"fmt"
	"slices"
	"sort"
)

// normalizeHeading validates attribute names and returns them sorted.
func normalizeHeading(attrs []string) ([]string, error) {
	h := slices.Clone(attrs)
	sort.Strings(h)
	for i, a := range h {
		if a == "" {
			return nil, fmt.Errorf("%w: empty attribute name", ErrHeading)
		}
		if i > 0 && h[i-1] == a {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrHeading, a)
		}
	}
	return h, nil
}

func sameHeading(a, b []string) bool { return slices.Equal(a, b) }

// union, intersect and minus work on sorted headings and keep them sorted.

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	for _, x := range b {
		if !slices.Contains(a, x) {
			out = append(out, x)
		}
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	var out []string
	for _, x := range a {
		if slices.Contains(b, x) {
			out = append(out, x)
		}
	}
	return out
}

func minus(a, b []string) []string {
	var out []string
	for _, x := range a {
		if !slices.Contains(b, x) {
			out = append(out, x)
		}
	}
	return out
}

func subset(a, b []string) bool {
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}
	return true
}

func requireAttrs(heading, attrs []string) error {
	for _, a := range attrs {
		if !slices.Contains(heading, a) {
			return fmt.Errorf("%w: unknown attribute %q", ErrHeading, a)
		}
	}
	return nil
}
