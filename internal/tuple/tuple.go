package tuple

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tuannm99/novarel/internal/alias/bx"
)

// Tuple is an immutable attribute -> value mapping. Attributes are kept
// sorted so two tuples built in any order share one layout. The zero value
// is the empty tuple.
type Tuple struct {
	attrs []string
	vals  []any
	hash  uint64
}

// New builds a tuple from a map. Values are normalized.
func New(m map[string]any) Tuple {
	attrs := make([]string, 0, len(m))
	for a := range m {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	vals := make([]any, len(attrs))
	for i, a := range attrs {
		vals[i] = Normalize(m[a])
	}
	return build(attrs, vals)
}

// Of builds a tuple from alternating name, value arguments. It panics on a
// malformed argument list and is meant for literals.
func Of(kv ...any) Tuple {
	if len(kv)%2 != 0 {
		panic("tuple: Of needs name/value pairs")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("tuple: attribute name %v is not a string", kv[i]))
		}
		m[name] = kv[i+1]
	}
	return New(m)
}

// FromSorted builds a tuple from attributes that are already sorted and
// unique. vals is taken over by the tuple.
func FromSorted(attrs []string, vals []any) Tuple {
	for i := range vals {
		vals[i] = Normalize(vals[i])
	}
	return build(attrs, vals)
}

func build(attrs []string, vals []any) Tuple {
	var h uint64
	for i, a := range attrs {
		h ^= pairHash(a, vals[i])
	}
	return Tuple{attrs: attrs, vals: vals, hash: h}
}

func pairHash(attr string, v any) uint64 {
	var buf [8]byte
	bx.PutU64(buf[:], HashValue(v))
	d := xxhash.New()
	_, _ = d.WriteString(attr)
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

func (t Tuple) Len() int { return len(t.attrs) }

func (t Tuple) Hash() uint64 { return t.hash }

// Attributes returns a copy of the sorted attribute names.
func (t Tuple) Attributes() []string { return slices.Clone(t.attrs) }

func (t Tuple) index(name string) int {
	i, ok := slices.BinarySearch(t.attrs, name)
	if !ok {
		return -1
	}
	return i
}

func (t Tuple) Has(name string) bool { return t.index(name) >= 0 }

func (t Tuple) Get(name string) (any, bool) {
	i := t.index(name)
	if i < 0 {
		return nil, false
	}
	return t.vals[i], true
}

// MustGet returns the value of name or nil when absent.
func (t Tuple) MustGet(name string) any {
	v, _ := t.Get(name)
	return v
}

// Values returns the values in attribute order.
func (t Tuple) Values() []any { return slices.Clone(t.vals) }

func (t Tuple) Map() map[string]any {
	m := make(map[string]any, len(t.attrs))
	for i, a := range t.attrs {
		m[a] = t.vals[i]
	}
	return m
}

func (t Tuple) Equal(o Tuple) bool {
	if t.hash != o.hash || len(t.attrs) != len(o.attrs) {
		return false
	}
	for i, a := range t.attrs {
		if o.attrs[i] != a || !EqualValues(t.vals[i], o.vals[i]) {
			return false
		}
	}
	return true
}

// EqualOn reports whether t and o agree on every attribute in attrs. An
// attribute missing from either side never matches.
func (t Tuple) EqualOn(o Tuple, attrs []string) bool {
	for _, a := range attrs {
		x, ok1 := t.Get(a)
		y, ok2 := o.Get(a)
		if !ok1 || !ok2 || !EqualValues(x, y) {
			return false
		}
	}
	return true
}

// Project keeps attrs. Names t does not carry are ignored.
func (t Tuple) Project(attrs ...string) Tuple {
	keep := make([]string, 0, len(attrs))
	vals := make([]any, 0, len(attrs))
	for i, a := range t.attrs {
		if slices.Contains(attrs, a) {
			keep = append(keep, a)
			vals = append(vals, t.vals[i])
		}
	}
	return build(keep, vals)
}

func (t Tuple) Remove(attrs ...string) Tuple {
	keep := make([]string, 0, len(t.attrs))
	vals := make([]any, 0, len(t.attrs))
	for i, a := range t.attrs {
		if !slices.Contains(attrs, a) {
			keep = append(keep, a)
			vals = append(vals, t.vals[i])
		}
	}
	return build(keep, vals)
}

// Merge returns the union of t and o; o wins on a shared attribute.
func (t Tuple) Merge(o Tuple) Tuple {
	if o.Len() == 0 {
		return t
	}
	if t.Len() == 0 {
		return o
	}
	attrs := make([]string, 0, len(t.attrs)+len(o.attrs))
	vals := make([]any, 0, len(t.attrs)+len(o.attrs))
	i, j := 0, 0
	for i < len(t.attrs) || j < len(o.attrs) {
		switch {
		case j == len(o.attrs) || (i < len(t.attrs) && t.attrs[i] < o.attrs[j]):
			attrs = append(attrs, t.attrs[i])
			vals = append(vals, t.vals[i])
			i++
		case i == len(t.attrs) || o.attrs[j] < t.attrs[i]:
			attrs = append(attrs, o.attrs[j])
			vals = append(vals, o.vals[j])
			j++
		default:
			attrs = append(attrs, o.attrs[j])
			vals = append(vals, o.vals[j])
			i++
			j++
		}
	}
	return build(attrs, vals)
}

// Rename applies every old -> new pair at once, so {X: Y, Y: Z} swaps
// cleanly. Uniqueness of the result is the caller's concern.
func (t Tuple) Rename(m map[string]string) Tuple {
	if len(m) == 0 {
		return t
	}
	out := make(map[string]any, len(t.attrs))
	for i, a := range t.attrs {
		if n, ok := m[a]; ok {
			a = n
		}
		out[a] = t.vals[i]
	}
	return New(out)
}

func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, a := range t.attrs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a)
		b.WriteString(": ")
		b.WriteString(FormatValue(t.vals[i]))
	}
	b.WriteByte('}')
	return b.String()
}

// FormatValue renders a value the way String prints it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return x.Format(time.RFC3339)
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}
