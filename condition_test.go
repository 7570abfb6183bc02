package access

import "testing"

func TestParsePathForms(t *testing.T) {
	tests := []struct {
		expr string
		kind PathKind
		name string
	}{
		{"attributes.clearance", PathAttribute, "clearance"},
		{"$user.attributes.department", PathAttribute, "department"},
		{"clearance", PathAttribute, "clearance"},
	}
	for _, tc := range tests {
		p, err := ParsePath(tc.expr)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.expr, err)
		}
		if p.Kind != tc.kind || p.Name != tc.name {
			t.Fatalf("parse %q: got kind=%d name=%q", tc.expr, p.Kind, p.Name)
		}
	}

	p, err := ParsePath("context.request.ip")
	if err != nil {
		t.Fatalf("parse context path: %v", err)
	}
	if p.Kind != PathContext || len(p.Segments) != 2 {
		t.Fatalf("context path parsed wrong: %+v", p)
	}

	for _, bad := range []string{"", "attributes.", "context.", "context.a..b"} {
		if _, err := ParsePath(bad); err == nil {
			t.Fatalf("expected error for path %q", bad)
		}
	}
}

func TestContextPathTraversal(t *testing.T) {
	ctx := map[string]any{
		"request": map[string]any{"ip": "10.0.0.1"},
		"flat":    42,
	}
	p, _ := ParsePath("context.request.ip")
	v, ok := p.Resolve(nil, ctx)
	if !ok || v != "10.0.0.1" {
		t.Fatalf("expected 10.0.0.1, got %v (defined=%v)", v, ok)
	}

	// traversal through a non-object yields undefined, not a panic
	p, _ = ParsePath("context.flat.deeper")
	if _, ok := p.Resolve(nil, ctx); ok {
		t.Fatalf("expected undefined for traversal through scalar")
	}

	p, _ = ParsePath("context.missing.deep")
	if _, ok := p.Resolve(nil, ctx); ok {
		t.Fatalf("expected undefined for missing branch")
	}
}

func TestParseConditionRejectsBadOperators(t *testing.T) {
	cases := []map[string]any{
		{"attributes.x": map[string]any{"$regex": "a.*"}},
		{"attributes.x": map[string]any{"$in": "not-a-list"}},
		{"attributes.x": map[string]any{"$exists": "yes"}},
	}
	for i, raw := range cases {
		if _, err := ParseCondition(raw); err == nil {
			t.Fatalf("case %d: expected parse error", i)
		}
	}
}

func TestLiteralImpliesEquality(t *testing.T) {
	cond, err := ParseCondition(map[string]any{"attributes.department": "finance"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cond.Evaluate(AttributeValues{"department": "finance"}, nil) {
		t.Fatalf("expected literal equality to hold")
	}
	if cond.Evaluate(AttributeValues{"department": "sales"}, nil) {
		t.Fatalf("expected mismatch to fail")
	}
}

func TestOperators(t *testing.T) {
	attrs := AttributeValues{"clearance": 3, "department": "finance", "tags": []any{"a", "b"}}

	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"eq", map[string]any{"attributes.clearance": map[string]any{"$eq": 3}}, true},
		{"eq cross-numeric", map[string]any{"attributes.clearance": map[string]any{"$eq": 3.0}}, true},
		{"ne", map[string]any{"attributes.clearance": map[string]any{"$ne": 4}}, true},
		{"gt", map[string]any{"attributes.clearance": map[string]any{"$gt": 2}}, true},
		{"gt equal fails", map[string]any{"attributes.clearance": map[string]any{"$gt": 3}}, false},
		{"gte equal", map[string]any{"attributes.clearance": map[string]any{"$gte": 3}}, true},
		{"lt", map[string]any{"attributes.clearance": map[string]any{"$lt": 4}}, true},
		{"lte", map[string]any{"attributes.clearance": map[string]any{"$lte": 3}}, true},
		{"in", map[string]any{"attributes.department": map[string]any{"$in": []any{"finance", "legal"}}}, true},
		{"in miss", map[string]any{"attributes.department": map[string]any{"$in": []any{"sales"}}}, false},
		{"nin", map[string]any{"attributes.department": map[string]any{"$nin": []any{"sales"}}}, true},
		{"exists true", map[string]any{"attributes.clearance": map[string]any{"$exists": true}}, true},
		{"exists false fails when present", map[string]any{"attributes.clearance": map[string]any{"$exists": false}}, false},
		{"ordering on non-numeric fails", map[string]any{"attributes.department": map[string]any{"$gt": 1}}, false},
		{"multiple ops on one path", map[string]any{"attributes.clearance": map[string]any{"$gte": 2, "$lte": 4}}, true},
	}
	for _, tc := range tests {
		cond, err := ParseCondition(tc.raw)
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.name, err)
		}
		if got := cond.Evaluate(attrs, nil); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestUndefinedValueSemantics(t *testing.T) {
	attrs := AttributeValues{}

	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"literal fails", map[string]any{"attributes.missing": "x"}, false},
		{"eq fails", map[string]any{"attributes.missing": map[string]any{"$eq": "x"}}, false},
		{"gt fails", map[string]any{"attributes.missing": map[string]any{"$gt": 1}}, false},
		{"in fails", map[string]any{"attributes.missing": map[string]any{"$in": []any{"x"}}}, false},
		{"ne passes", map[string]any{"attributes.missing": map[string]any{"$ne": "x"}}, true},
		{"nin passes", map[string]any{"attributes.missing": map[string]any{"$nin": []any{"x"}}}, true},
		{"exists false passes", map[string]any{"attributes.missing": map[string]any{"$exists": false}}, true},
		{"exists true fails", map[string]any{"attributes.missing": map[string]any{"$exists": true}}, false},
	}
	for _, tc := range tests {
		cond, err := ParseCondition(tc.raw)
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.name, err)
		}
		if got := cond.Evaluate(attrs, nil); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestConditionConjunction(t *testing.T) {
	cond, err := ParseCondition(map[string]any{
		"attributes.clearance":  map[string]any{"$gte": 3},
		"attributes.department": "finance",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cond.Evaluate(AttributeValues{"clearance": 5, "department": "finance"}, nil) {
		t.Fatalf("expected both clauses to hold")
	}
	if cond.Evaluate(AttributeValues{"clearance": 5, "department": "sales"}, nil) {
		t.Fatalf("expected failing clause to veto")
	}
}

func TestEmptyConditionMatchesEverything(t *testing.T) {
	cond, err := ParseCondition(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cond.Evaluate(nil, nil) {
		t.Fatalf("empty condition must hold")
	}
}

func TestObjectLiteralComparesEquality(t *testing.T) {
	// a map with plain keys is an equality operand, not an operator object
	cond, err := ParseCondition(map[string]any{
		"attributes.location": map[string]any{"city": "oslo"},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cond.Evaluate(AttributeValues{"location": map[string]any{"city": "oslo"}}, nil) {
		t.Fatalf("expected structural equality to hold")
	}
	if cond.Evaluate(AttributeValues{"location": map[string]any{"city": "bergen"}}, nil) {
		t.Fatalf("expected structural mismatch to fail")
	}
}
