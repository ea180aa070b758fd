package relation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
)

type ConstraintKind int

const (
	KindCandidateKey ConstraintKind = iota
	KindForeignKey
	KindPredicate
)

func (k ConstraintKind) String() string {
	switch k {
	case KindCandidateKey:
		return "CandidateKey"
	case KindForeignKey:
		return "ForeignKey"
	default:
		return "Predicate"
	}
}

// Constraint is a declaration; Relation binds it into a check against its
// own heading and resolver.
type Constraint struct {
	kind    ConstraintKind
	attrs   []string
	ref     string
	mapping map[string]string
	check   func(*Relation) (bool, error)
	assert  func(*Relation) (*Relation, error)
	expr    string
}

// Key declares a candidate key. No attributes means all attributes.
func Key(attrs ...string) Constraint {
	a := slices.Clone(attrs)
	sort.Strings(a)
	return Constraint{kind: KindCandidateKey, attrs: a}
}

// ForeignKey maps this relation's attributes onto the key attributes of the
// relvar named ref.
func ForeignKey(ref string, mapping map[string]string) Constraint {
	return Constraint{kind: KindForeignKey, ref: ref, mapping: maps.Clone(mapping)}
}

func Check(fn func(r *Relation) (bool, error)) Constraint {
	return Constraint{kind: KindPredicate, check: fn}
}

// Assertion holds while fn returns an empty relation.
func Assertion(fn func(r *Relation) (*Relation, error)) Constraint {
	return Constraint{kind: KindPredicate, assert: fn}
}

// Expr is a CEL predicate over `rows` (list of maps) and `count`.
func Expr(src string) Constraint {
	return Constraint{kind: KindPredicate, expr: src}
}

func (c Constraint) Kind() ConstraintKind { return c.kind }

// Attributes returns key attributes, or the referencing side of a foreign
// key. A nil result on a key means all attributes.
func (c Constraint) Attributes() []string {
	if c.kind == KindForeignKey {
		out := slices.Collect(maps.Keys(c.mapping))
		sort.Strings(out)
		return out
	}
	return slices.Clone(c.attrs)
}

func (c Constraint) Ref() string                { return c.ref }
func (c Constraint) Mapping() map[string]string { return maps.Clone(c.mapping) }
func (c Constraint) Expression() string         { return c.expr }

// Persistable reports whether the constraint survives a snapshot. Go
// closures do not.
func (c Constraint) Persistable() bool {
	return c.kind != KindPredicate || c.expr != ""
}

type checkFunc func(r *Relation) (bool, error)

func (c Constraint) bind(r *Relation) (checkFunc, error) {
	switch c.kind {
	case KindCandidateKey:
		if len(c.attrs) > 0 {
			if err := requireAttrs(r.heading, c.attrs); err != nil {
				return nil, fmt.Errorf("%w: key %v: %v", ErrArity, c.attrs, err)
			}
		}
		attrs := c.attrs
		return func(r *Relation) (bool, error) {
			if len(attrs) == 0 {
				return true, nil
			}
			n, err := Count(r)
			if err != nil {
				return false, err
			}
			p, err := Project(r, attrs...)
			if err != nil {
				return false, err
			}
			k, err := Count(p)
			return n == k, err
		}, nil

	case KindForeignKey:
		if err := c.validateForeignKey(r); err != nil {
			return nil, err
		}
		return c.checkForeignKey, nil

	default:
		switch {
		case c.check != nil:
			return c.check, nil
		case c.assert != nil:
			fn := c.assert
			return func(r *Relation) (bool, error) {
				out, err := fn(r)
				if err != nil {
					return false, err
				}
				n, err := Count(out)
				return n == 0, err
			}, nil
		case c.expr != "":
			prg, err := compileConstraint(c.expr)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrArity, err)
			}
			return func(r *Relation) (bool, error) { return evalConstraint(prg, r) }, nil
		}
		return nil, fmt.Errorf("%w: empty predicate constraint", ErrArity)
	}
}

func (c Constraint) targets() []string {
	out := slices.Collect(maps.Values(c.mapping))
	sort.Strings(out)
	return out
}

func (c Constraint) validateForeignKey(r *Relation) error {
	if len(c.mapping) == 0 {
		return fmt.Errorf("%w: foreign key to %q has no attribute mapping", ErrArity, c.ref)
	}
	if err := requireAttrs(r.heading, c.Attributes()); err != nil {
		return fmt.Errorf("%w: foreign key to %q: %v", ErrArity, c.ref, err)
	}
	if r.resolver == nil {
		return fmt.Errorf("%w: foreign key to %q cannot be resolved", ErrArity, c.ref)
	}
	ref, err := r.resolver.Relvar(c.ref)
	if err != nil {
		return fmt.Errorf("%w: foreign key to %q: %v", ErrArity, c.ref, err)
	}
	targets := c.targets()
	if err := requireAttrs(ref.heading, targets); err != nil {
		return fmt.Errorf("%w: foreign key to %q: %v", ErrArity, c.ref, err)
	}
	for _, k := range ref.constraints {
		if k.kind != KindCandidateKey {
			continue
		}
		attrs := k.attrs
		if len(attrs) == 0 {
			attrs = ref.heading
		}
		if subset(attrs, targets) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q has no candidate key covered by %v", ErrArity, c.ref, targets)
}

// checkForeignKey holds when the referencing values, renamed onto the
// referenced names, are a subset of the referenced projection.
func (c Constraint) checkForeignKey(r *Relation) (bool, error) {
	if r.resolver == nil {
		return false, fmt.Errorf("%w: foreign key to %q cannot be resolved", ErrArity, c.ref)
	}
	ref, err := r.resolver.Relvar(c.ref)
	if err != nil {
		return false, fmt.Errorf("%w: foreign key to %q: %v", ErrArity, c.ref, err)
	}
	return c.referencesHeld(r, ref)
}

func (c Constraint) referencesHeld(r, ref *Relation) (bool, error) {
	own, err := Project(r, c.Attributes()...)
	if err != nil {
		return false, err
	}
	own, err = Rename(own, c.mapping)
	if err != nil {
		return false, err
	}
	keys, err := Project(ref, c.targets()...)
	if err != nil {
		return false, err
	}
	return own.IsSubset(keys)
}

func (r *Relation) bind() error {
	checks := make(map[string]checkFunc, len(r.constraints))
	for name, c := range r.constraints {
		fn, err := c.bind(r)
		if err != nil {
			return fmt.Errorf("constraint %s: %w", name, err)
		}
		checks[name] = fn
	}
	r.checks = checks
	r.deferred = false
	return nil
}

// Rebind binds every declared constraint against res and clears the
// deferred state. It does not check them.
func (r *Relation) Rebind(res Resolver) error {
	if res != nil {
		r.resolver = res
	}
	return r.bind()
}

// CheckConstraints evaluates bound constraints in name order, then guards.
// A deferred relation has nothing bound and passes.
func (r *Relation) CheckConstraints() error {
	names := slices.Collect(maps.Keys(r.checks))
	sort.Strings(names)
	for _, name := range names {
		ok, err := r.checks[name](r)
		if err != nil && !errors.Is(err, ErrConstraintViolation) {
			return &ConstraintError{Relation: r.name, Constraint: name, Err: err}
		}
		if !ok || err != nil {
			return &ConstraintError{Relation: r.name, Constraint: name}
		}
	}
	names = slices.Collect(maps.Keys(r.guards))
	sort.Strings(names)
	for _, name := range names {
		if err := r.guards[name](r); err != nil {
			var ce *ConstraintError
			if errors.As(err, &ce) {
				return err
			}
			return &ConstraintError{Relation: r.name, Constraint: name, Err: err}
		}
	}
	return nil
}

// SetGuard installs an unlisted check that runs after the constraints.
func (r *Relation) SetGuard(name string, g Guard) {
	if r.guards == nil {
		r.guards = map[string]Guard{}
	}
	r.guards[name] = g
}

func (r *Relation) ClearGuards() { r.guards = nil }

// GuardForeignKey returns a guard for the relvar referenced by fk, checking
// that referrer's values are still covered after the guarded relvar
// changes.
func GuardForeignKey(fk Constraint, referrer func() (*Relation, error)) Guard {
	return func(ref *Relation) error {
		from, err := referrer()
		if err != nil {
			return err
		}
		ok, err := fk.referencesHeld(from, ref)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConstraintViolation
		}
		return nil
	}
}

func keysOnly(cs map[string]Constraint) map[string]Constraint {
	out := map[string]Constraint{}
	for name, c := range cs {
		if c.kind == KindCandidateKey {
			out[name] = c
		}
	}
	if len(out) == 0 {
		out["PK"] = Key()
	}
	return out
}

// keysAfterRemove keeps keys disjoint from the removed attributes. The
// all-attribute key always survives.
func keysAfterRemove(cs map[string]Constraint, removed []string) map[string]Constraint {
	out := map[string]Constraint{}
	for name, c := range cs {
		if c.kind != KindCandidateKey {
			continue
		}
		if len(intersect(c.attrs, removed)) == 0 {
			out[name] = c
		}
	}
	if len(out) == 0 {
		out["PK"] = Key()
	}
	return out
}

func renameKeys(cs map[string]Constraint, m map[string]string) map[string]Constraint {
	out := map[string]Constraint{}
	for name, c := range keysOnly(cs) {
		attrs := make([]string, len(c.attrs))
		for i, a := range c.attrs {
			if n, ok := m[a]; ok {
				a = n
			}
			attrs[i] = a
		}
		out[name] = Key(attrs...)
	}
	return out
}
