package access

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// PathKind says where a condition clause reads its left-hand value from.
type PathKind uint8

const (
	// PathAttribute resolves against the subject's attribute values by key.
	PathAttribute PathKind = iota
	// PathContext resolves against the call-supplied context by dotted path.
	PathContext
)

// Path is a parsed path expression. Attribute paths keep the key name;
// context paths keep the dotted segments to traverse.
type Path struct {
	Kind     PathKind
	Name     string
	Segments []string
}

// ParsePath parses one of the supported path forms:
//
//	attributes.<name>        attribute lookup by key
//	$user.attributes.<name>  alias for the above
//	context.<dotted.path>    null-safe traversal into the call context
//	<name>                   bare attribute lookup
func ParsePath(expr string) (Path, error) {
	switch {
	case strings.HasPrefix(expr, "attributes."):
		name := expr[len("attributes."):]
		if name == "" {
			return Path{}, fmt.Errorf("path %q: missing attribute name", expr)
		}
		return Path{Kind: PathAttribute, Name: name}, nil
	case strings.HasPrefix(expr, "$user.attributes."):
		name := expr[len("$user.attributes."):]
		if name == "" {
			return Path{}, fmt.Errorf("path %q: missing attribute name", expr)
		}
		return Path{Kind: PathAttribute, Name: name}, nil
	case strings.HasPrefix(expr, "context."):
		rest := expr[len("context."):]
		if rest == "" {
			return Path{}, fmt.Errorf("path %q: missing context path", expr)
		}
		segs := strings.Split(rest, ".")
		for _, s := range segs {
			if s == "" {
				return Path{}, fmt.Errorf("path %q: empty segment", expr)
			}
		}
		return Path{Kind: PathContext, Segments: segs}, nil
	case expr == "":
		return Path{}, fmt.Errorf("empty path expression")
	default:
		return Path{Kind: PathAttribute, Name: expr}, nil
	}
}

// Resolve returns the value the path points at, and whether it is defined.
// Context traversal is null-safe: any missing or non-object intermediate
// yields undefined rather than an error.
func (p Path) Resolve(attrs AttributeValues, context map[string]any) (any, bool) {
	if p.Kind == PathAttribute {
		v, ok := attrs[p.Name]
		return v, ok
	}
	var cur any = context
	for _, seg := range p.Segments {
		m, ok := cur.(map[string]any)
		if !ok || m == nil {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (p Path) String() string {
	if p.Kind == PathContext {
		return "context." + strings.Join(p.Segments, ".")
	}
	return "attributes." + p.Name
}

// Op identifies a predicate operator. The set is closed: configuration
// carrying any other operator is rejected when rules are compiled.
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
	OpExists
)

var opNames = map[string]Op{
	"$eq":     OpEq,
	"$ne":     OpNe,
	"$gt":     OpGt,
	"$gte":    OpGte,
	"$lt":     OpLt,
	"$lte":    OpLte,
	"$in":     OpIn,
	"$nin":    OpNin,
	"$exists": OpExists,
}

func (o Op) String() string {
	for name, op := range opNames {
		if op == o {
			return name
		}
	}
	return "$unknown"
}

// Predicate is one operator applied to a resolved value.
type Predicate struct {
	Op      Op
	Operand any
}

// Clause binds a path to the predicates that must all hold for it.
type Clause struct {
	Path       Path
	Predicates []Predicate
}

// Condition is a compiled rule condition: the conjunction of its clauses.
// A zero Condition has no clauses and matches everything.
type Condition struct {
	Clauses []Clause
}

// ParseCondition compiles the loosely-typed condition shape from
// configuration (path expression -> literal or operator object) into the
// closed predicate representation. Unknown operators, non-boolean $exists
// operands and non-array $in/$nin operands are load-time errors.
func ParseCondition(raw map[string]any) (Condition, error) {
	cond := Condition{}
	if len(raw) == 0 {
		return cond, nil
	}
	// deterministic clause order for String() and stable evaluation
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path, err := ParsePath(key)
		if err != nil {
			return Condition{}, err
		}
		preds, err := parsePredicates(key, raw[key])
		if err != nil {
			return Condition{}, err
		}
		cond.Clauses = append(cond.Clauses, Clause{Path: path, Predicates: preds})
	}
	return cond, nil
}

func parsePredicates(path string, v any) ([]Predicate, error) {
	ops, ok := operatorObject(v)
	if !ok {
		// bare literal implies equality
		return []Predicate{{Op: OpEq, Operand: v}}, nil
	}
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	preds := make([]Predicate, 0, len(ops))
	for _, name := range names {
		op, known := opNames[name]
		if !known {
			return nil, fmt.Errorf("condition %q: unknown operator %q", path, name)
		}
		operand := ops[name]
		switch op {
		case OpIn, OpNin:
			if _, isList := asList(operand); !isList {
				return nil, fmt.Errorf("condition %q: %s requires an array operand", path, name)
			}
		case OpExists:
			if _, isBool := operand.(bool); !isBool {
				return nil, fmt.Errorf("condition %q: $exists requires a boolean operand", path)
			}
		}
		preds = append(preds, Predicate{Op: op, Operand: operand})
	}
	return preds, nil
}

// operatorObject reports whether v is an operator object: a map whose keys
// all start with '$'. A map with plain keys is an object literal compared
// for equality instead.
func operatorObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

// Evaluate reports whether every clause holds against the subject's
// attributes and the call context. Pure; never mutates its inputs.
func (c Condition) Evaluate(attrs AttributeValues, context map[string]any) bool {
	for _, cl := range c.Clauses {
		val, defined := cl.Path.Resolve(attrs, context)
		for _, p := range cl.Predicates {
			if !p.holds(val, defined) {
				return false
			}
		}
	}
	return true
}

func (p Predicate) holds(val any, defined bool) bool {
	if !defined {
		// Only "exists: false" and "not equal" style predicates can pass
		// against missing data.
		switch p.Op {
		case OpExists:
			return p.Operand == false
		case OpNe, OpNin:
			return true
		default:
			return false
		}
	}
	switch p.Op {
	case OpEq:
		return looseEqual(val, p.Operand)
	case OpNe:
		return !looseEqual(val, p.Operand)
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := toFloat(val)
		b, bok := toFloat(p.Operand)
		if !aok || !bok {
			return false
		}
		switch p.Op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpIn:
		list, _ := asList(p.Operand)
		return contains(list, val)
	case OpNin:
		list, _ := asList(p.Operand)
		return !contains(list, val)
	case OpExists:
		return p.Operand == true
	default:
		// unreachable once parsed; unrecognized syntax denies
		return false
	}
}

func contains(list []any, val any) bool {
	for _, item := range list {
		if looseEqual(val, item) {
			return true
		}
	}
	return false
}

// looseEqual compares two values the way decoded configuration needs:
// numbers compare across int/float representations, everything else compares
// structurally.
func looseEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok2 := toFloat(b)
		return ok2 && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func (c Condition) String() string {
	if len(c.Clauses) == 0 {
		return "true"
	}
	parts := make([]string, 0, len(c.Clauses))
	for _, cl := range c.Clauses {
		for _, p := range cl.Predicates {
			parts = append(parts, fmt.Sprintf("%s %s %v", cl.Path, p.Op, p.Operand))
		}
	}
	return strings.Join(parts, " AND ")
}
