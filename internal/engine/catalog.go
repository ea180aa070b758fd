package engine

import (
	"sort"

	"github.com/tuannm99/novarel/internal/relation"
	"github.com/tuannm99/novarel/internal/tuple"
)

const (
	CatalogRelations            = "relations"
	CatalogAttributes           = "attributes"
	CatalogConstraints          = "constraints"
	CatalogConstraintAttributes = "constraint_attributes"
)

func constraintName(rel, cname string) string { return rel + "_" + cname }

// catalogViews builds the system views. Each one reads the database when
// scanned, so it always reflects the current frame.
func (db *Database) catalogViews() map[string]*relation.Relation {
	defs := map[string]struct {
		heading []string
		rows    func() ([]tuple.Tuple, error)
	}{
		CatalogRelations:            {[]string{"relation_name"}, db.relationRows},
		CatalogAttributes:           {[]string{"relation_name", "attribute_name"}, db.attributeRows},
		CatalogConstraints:          {[]string{"relation_name", "constraint_name", "constraint_type"}, db.constraintRows},
		CatalogConstraintAttributes: {[]string{"constraint_name", "attribute_name"}, db.constraintAttributeRows},
	}
	out := make(map[string]*relation.Relation, len(defs))
	for name, d := range defs {
		r, err := relation.NewView(d.heading, relation.NoArg(d.rows), relation.WithName(name))
		if err != nil {
			// headings above are fixed and valid
			panic(err)
		}
		out[name] = r
	}
	return out
}

// catalogNames lists relvars, views and the catalog views themselves.
func (db *Database) catalogNames() []string {
	names := db.Names()
	for n := range db.catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (db *Database) relationRows() ([]tuple.Tuple, error) {
	names := db.catalogNames()
	out := make([]tuple.Tuple, 0, len(names))
	for _, n := range names {
		out = append(out, tuple.Of("relation_name", n))
	}
	return out, nil
}

func (db *Database) attributeRows() ([]tuple.Tuple, error) {
	var out []tuple.Tuple
	for _, n := range db.catalogNames() {
		r, err := db.read(n)
		if err != nil {
			return nil, err
		}
		for _, a := range r.Heading() {
			out = append(out, tuple.Of("relation_name", n, "attribute_name", a))
		}
	}
	return out, nil
}

type catalogConstraint struct {
	rel, name string
	c         relation.Constraint
	heading   []string
}

// storedConstraints lists declared constraints of stored relvars by name.
func (db *Database) storedConstraints() []catalogConstraint {
	var out []catalogConstraint
	for _, n := range db.relvarNames() {
		r, _, _ := db.lookup(n)
		cs := r.Constraints()
		cnames := make([]string, 0, len(cs))
		for cn := range cs {
			cnames = append(cnames, cn)
		}
		sort.Strings(cnames)
		for _, cn := range cnames {
			out = append(out, catalogConstraint{rel: n, name: cn, c: cs[cn], heading: r.Heading()})
		}
	}
	return out
}

func (db *Database) constraintRows() ([]tuple.Tuple, error) {
	var out []tuple.Tuple
	for _, cc := range db.storedConstraints() {
		out = append(out, tuple.Of(
			"relation_name", cc.rel,
			"constraint_name", constraintName(cc.rel, cc.name),
			"constraint_type", cc.c.Kind().String(),
		))
	}
	return out, nil
}

func (db *Database) constraintAttributeRows() ([]tuple.Tuple, error) {
	var out []tuple.Tuple
	for _, cc := range db.storedConstraints() {
		attrs := cc.c.Attributes()
		if cc.c.Kind() == relation.KindCandidateKey && len(attrs) == 0 {
			attrs = cc.heading
		}
		for _, a := range attrs {
			out = append(out, tuple.Of("constraint_name", constraintName(cc.rel, cc.name), "attribute_name", a))
		}
	}
	return out, nil
}
