package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tuannm99/novarel/internal/engine"
	"github.com/tuannm99/novarel/internal/relation"
	"github.com/tuannm99/novarel/internal/tuple"
	"gopkg.in/yaml.v3"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  \l                     list relations
  \d NAME                attributes and constraints of NAME
  \history               print history
  \help                  show help
  \q | quit | exit       quit
  show NAME              print NAME
  count NAME             number of tuples in NAME
  where NAME EXPR        tuples of NAME for which the CEL EXPR over t holds
  insert NAME YAML       insert a tuple {A: 1, B: x} or a list of them
  delete NAME YAML       delete tuples matching every given attribute
  begin | commit | rollback`

// Shell runs one command line at a time against a database.
type Shell struct {
	db   *engine.Database
	out  io.Writer
	hist *History
}

func NewShell(db *engine.Database, out io.Writer, hist *History) *Shell {
	if hist == nil {
		hist = NewHistory("")
	}
	return &Shell{db: db, out: out, hist: hist}
}

func (s *Shell) prompt() string {
	if s.db.InTx() {
		return "novarel*> "
	}
	return "novarel> "
}

// Exec runs line. It returns errQuit for \q.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case `\q`, "quit", "exit":
		return errQuit
	case `\help`:
		fmt.Fprintln(s.out, helpText)
		return nil
	case `\history`:
		s.hist.Print(s.out, 50)
		return nil
	case `\l`:
		r, err := s.db.Get(engine.CatalogRelations)
		if err != nil {
			return err
		}
		return printRelation(s.out, r)
	case `\d`:
		return s.describe(rest)
	case "show":
		r, err := s.get(rest)
		if err != nil {
			return err
		}
		return printRelation(s.out, r)
	case "count":
		r, err := s.get(rest)
		if err != nil {
			return err
		}
		n, err := r.Count()
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, n)
		return nil
	case "where":
		name, expr, _ := strings.Cut(rest, " ")
		r, err := s.get(name)
		if err != nil {
			return err
		}
		out, err := relation.RestrictExpr(r, strings.TrimSpace(expr))
		if err != nil {
			return err
		}
		return printRelation(s.out, out)
	case "insert":
		name, lit, _ := strings.Cut(rest, " ")
		ts, err := parseTuples(lit)
		if err != nil {
			return err
		}
		n, err := s.db.Insert(name, ts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "OK (%d inserted)\n", n)
		return nil
	case "delete":
		name, lit, _ := strings.Cut(rest, " ")
		ts, err := parseTuples(lit)
		if err != nil {
			return err
		}
		n, err := s.db.Delete(name, matchAny(ts))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "OK (%d deleted)\n", n)
		return nil
	case "begin":
		if err := s.db.Begin(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "BEGIN %s\n", s.db.TxID())
		return nil
	case "commit":
		if err := s.db.Commit(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "COMMIT")
		return nil
	case "rollback":
		if err := s.db.Rollback(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "ROLLBACK")
		return nil
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func (s *Shell) get(name string) (*relation.Relation, error) {
	if name == "" {
		return nil, errors.New("missing relation name")
	}
	return s.db.Get(name)
}

func (s *Shell) describe(name string) error {
	r, err := s.get(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s(%s)\n", name, strings.Join(r.Heading(), ", "))

	cons, err := s.db.Get(engine.CatalogConstraints)
	if err != nil {
		return err
	}
	mine, err := relation.Restrict(cons, func(t tuple.Tuple) bool { return t.MustGet("relation_name") == name })
	if err != nil {
		return err
	}
	ts, err := mine.Tuples()
	if err != nil {
		return err
	}
	for _, t := range ts {
		fmt.Fprintf(s.out, "  %s %s\n", t.MustGet("constraint_type"), t.MustGet("constraint_name"))
	}
	return nil
}

// parseTuples reads a YAML mapping or a sequence of mappings.
func parseTuples(lit string) ([]tuple.Tuple, error) {
	if strings.TrimSpace(lit) == "" {
		return nil, errors.New("missing tuple literal")
	}
	var doc any
	if err := yaml.Unmarshal([]byte(lit), &doc); err != nil {
		return nil, fmt.Errorf("tuple literal: %w", err)
	}
	var items []any
	switch x := doc.(type) {
	case map[string]any:
		items = []any{x}
	case []any:
		items = x
	default:
		return nil, fmt.Errorf("tuple literal: want a mapping, got %T", doc)
	}
	out := make([]tuple.Tuple, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tuple literal: want a mapping, got %T", it)
		}
		out = append(out, tuple.New(m))
	}
	return out, nil
}

// matchAny selects tuples that agree with one of ts on all of its attributes.
func matchAny(ts []tuple.Tuple) func(tuple.Tuple) bool {
	return func(t tuple.Tuple) bool {
		for _, p := range ts {
			if t.Project(p.Attributes()...).Equal(p) {
				return true
			}
		}
		return false
	}
}

func printRelation(w io.Writer, r *relation.Relation) error {
	cols := r.Heading()
	ts, err := r.Tuples()
	if err != nil {
		return err
	}

	rows := make([][]string, len(ts))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for i, t := range ts {
		rows[i] = make([]string, len(cols))
		for j, c := range cols {
			rows[i][j] = tuple.FormatValue(t.MustGet(c))
			widths[j] = max(widths[j], len(rows[i][j]))
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprint(w, padRight(values[i], widths[i]))
		}
		fmt.Fprintln(w)
	}

	printRow(cols)
	for i := range cols {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		printRow(row)
	}
	fmt.Fprintf(w, "(%d rows)\n", len(ts))
	return nil
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
