package relation

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/tuannm99/novarel/internal/cache"
	"github.com/tuannm99/novarel/internal/tuple"
)

// compiled programs keyed by variable set and source
var programs = cache.NewLRU[string, cel.Program](256)

func compileRestrict(src string) (cel.Program, error) {
	return compile("t:"+src, src, cel.Variable("t", cel.MapType(cel.StringType, cel.DynType)))
}

func compileConstraint(src string) (cel.Program, error) {
	return compile("r:"+src, src,
		cel.Variable("rows", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.Variable("count", cel.IntType),
	)
}

func compile(key, src string, vars ...cel.EnvOption) (cel.Program, error) {
	if p, ok := programs.Get(key); ok {
		return p, nil
	}

	env, err := cel.NewEnv(append(vars, cel.CrossTypeNumericComparisons(true))...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", src, issues.Err())
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", src, err)
	}
	programs.Put(key, p)
	return p, nil
}

func evalBool(p cel.Program, vars map[string]any) (bool, error) {
	out, _, err := p.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	nv, err := out.ConvertToNative(reflect.TypeOf(true))
	if err != nil {
		return false, fmt.Errorf("%w: expression is not boolean: %v", ErrOperandMismatch, err)
	}
	return nv.(bool), nil
}

func evalRestrict(p cel.Program, t tuple.Tuple) (bool, error) {
	return evalBool(p, map[string]any{"t": celTuple(t)})
}

func evalConstraint(p cel.Program, r *Relation) (bool, error) {
	var rows []map[string]any
	err := r.Scan(func(t tuple.Tuple) error {
		rows = append(rows, celTuple(t))
		return nil
	})
	if err != nil {
		return false, err
	}
	return evalBool(p, map[string]any{"rows": rows, "count": int64(len(rows))})
}

// celTuple converts nested tuples and relations into maps and lists CEL
// can index.
func celTuple(t tuple.Tuple) map[string]any {
	m := t.Map()
	for k, v := range m {
		m[k] = celValue(v)
	}
	return m
}

func celValue(v any) any {
	switch x := v.(type) {
	case tuple.Tuple:
		return celTuple(x)
	case *Relation:
		var rows []any
		_ = x.Scan(func(t tuple.Tuple) error {
			rows = append(rows, celTuple(t))
			return nil
		})
		return rows
	}
	return v
}

// CheckExpr reports whether src compiles as a restriction.
func CheckExpr(src string) error {
	_, err := compileRestrict(src)
	return err
}
