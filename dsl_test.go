package access

import (
	"strings"
	"testing"
)

const testDSL = `
# engine settings
version 2
default deny
strategy denyOverrides
cache ttl:300 backend:memory

attr clearance attr_clearance number "Security clearance level"
attr department attr_department string

role admin role_admin "Full access" perms:*:*
role user role_user perms:documents:read,reports:read

rule rule_clearance documents read allow when attributes.clearance >= 3
rule rule_block * * deny when context.channel == external
rule rule_list documents read allow when attributes.department in finance,legal
`

func TestDSLParse(t *testing.T) {
	cfg, err := NewDSLParser().Parse(testDSL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Version != 2 {
		t.Fatalf("version: %d", cfg.Version)
	}
	if cfg.DefaultEffect != EffectDeny || cfg.Evaluation != StrategyDenyOverrides {
		t.Fatalf("engine settings: %s %s", cfg.DefaultEffect, cfg.Evaluation)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 300 || cfg.Cache.Backend != "memory" {
		t.Fatalf("cache settings: %+v", cfg.Cache)
	}

	attr, ok := cfg.Attributes["clearance"]
	if !ok || attr.ID != "attr_clearance" || attr.Type != AttributeNumber {
		t.Fatalf("clearance attr mangled: %+v", attr)
	}
	if attr.Description != "Security clearance level" {
		t.Fatalf("quoted description lost: %q", attr.Description)
	}

	user, ok := cfg.Roles["user"]
	if !ok || user.ID != "role_user" || len(user.Permissions) != 2 {
		t.Fatalf("user role mangled: %+v", user)
	}

	if len(cfg.Rules) != 3 {
		t.Fatalf("rules: %d", len(cfg.Rules))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	compiled, err := cfg.CompileRules()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !compiled[0].Condition.Evaluate(AttributeValues{"clearance": 4}, nil) {
		t.Fatalf("clearance 4 must satisfy >= 3")
	}
	if compiled[0].Condition.Evaluate(AttributeValues{"clearance": 2}, nil) {
		t.Fatalf("clearance 2 must fail >= 3")
	}
	if !compiled[1].Condition.Evaluate(nil, map[string]any{"channel": "external"}) {
		t.Fatalf("context clause must hold")
	}
	if !compiled[2].Condition.Evaluate(AttributeValues{"department": "legal"}, nil) {
		t.Fatalf("in-list clause must hold")
	}
}

func TestDSLParseErrors(t *testing.T) {
	cases := []string{
		"frobnicate x y",
		"default sometimes",
		"rule r1 documents read maybe",
		"rule r1 documents read allow when attributes.x ~= 3",
		"rule r1 documents read allow when attributes.x ==",
		"rule r1 documents read allow unless attributes.x == 3",
	}
	for i, src := range cases {
		if _, err := NewDSLParser().Parse(src); err == nil {
			t.Fatalf("case %d: expected parse error for %q", i, src)
		}
	}
}

func TestDSLEncodeRoundTrip(t *testing.T) {
	cfg, err := NewDSLParser().Parse(testDSL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	encoded, err := NewDSLEncoder().Encode(cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	text := string(encoded)
	for _, want := range []string{"default deny", "strategy denyOverrides", "role admin", "perms:*:*", "when attributes.clearance >= 3"} {
		if !strings.Contains(text, want) {
			t.Fatalf("encoded output missing %q:\n%s", want, text)
		}
	}

	back, err := NewDSLParser().Parse(text)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(back.Rules) != len(cfg.Rules) || len(back.Roles) != len(cfg.Roles) {
		t.Fatalf("roundtrip lost entries: %d rules %d roles", len(back.Rules), len(back.Roles))
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("validate after roundtrip: %v", err)
	}
}
