package snapshot

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type scriptDoc struct {
	SavedAt string         `yaml:"saved_at"`
	Relvars []scriptRelvar `yaml:"relvars"`
}

type scriptRelvar struct {
	Name        string                      `yaml:"name"`
	Heading     []string                    `yaml:"heading"`
	Rows        [][]any                     `yaml:"rows"`
	Constraints map[string]scriptConstraint `yaml:"constraints,omitempty"`
}

type scriptConstraint struct {
	Kind       string            `yaml:"kind"`
	Attributes []string          `yaml:"attributes,omitempty"`
	Ref        string            `yaml:"ref,omitempty"`
	Mapping    map[string]string `yaml:"mapping,omitempty"`
	Expr       string            `yaml:"expr,omitempty"`
}

// WriteScript renders img as YAML for people to read. It is not read back.
func WriteScript(w io.Writer, img Image) error {
	doc := scriptDoc{SavedAt: img.SavedAt.Format("2006-01-02T15:04:05Z07:00")}
	for _, ri := range img.Relvars {
		sr := scriptRelvar{Name: ri.Name, Heading: ri.Heading, Rows: make([][]any, len(ri.Rows))}
		for i, row := range ri.Rows {
			sr.Rows[i] = make([]any, len(row))
			for j, v := range row {
				sr.Rows[i][j] = scriptValue(v)
			}
		}
		if len(ri.Constraints) > 0 {
			sr.Constraints = map[string]scriptConstraint{}
		}
		for _, ci := range ri.Constraints {
			sr.Constraints[ci.Name] = scriptConstraint{
				Kind:       ci.Kind,
				Attributes: ci.Attrs,
				Ref:        ci.Ref,
				Mapping:    ci.Mapping,
				Expr:       ci.Expr,
			}
		}
		doc.Relvars = append(doc.Relvars, sr)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("snapshot: script: %w", err)
	}
	return enc.Close()
}

func scriptValue(v any) any {
	switch x := v.(type) {
	case TupleValue:
		m := make(map[string]any, len(x.Attrs))
		for i, a := range x.Attrs {
			m[a] = scriptValue(x.Values[i])
		}
		return m
	case RelationValue:
		rows := make([]map[string]any, len(x.Rows))
		for i, row := range x.Rows {
			rows[i] = make(map[string]any, len(row))
			for j, a := range x.Heading {
				rows[i][a] = scriptValue(row[j])
			}
		}
		return rows
	}
	return v
}
