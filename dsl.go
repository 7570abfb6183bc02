package access

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DSL Syntax:
// version <n>
// default <allow|deny>
// strategy <firstApplicable|allApplicable|denyOverrides>
// cache ttl:<seconds> [backend:<name>]
// attr <key> <id> <type> "<description>"
// role <key> <id> "<description>" perms:<perm,perm,...>
// rule <id> <resource> <action> <effect> [when <path> <op> <value> [and ...]]
//
// Condition operators: == != > >= < <= in nin exists. The in/nin operand is a
// comma-separated list; exists takes true or false.

type DSLParser struct {
	line int
}

func NewDSLParser() *DSLParser {
	return &DSLParser{}
}

func (p *DSLParser) Parse(data string) (*Config, error) {
	cfg := &Config{
		Version:       1,
		Roles:         make(RoleMap, 8),
		Attributes:    make(AttributeMap, 8),
		Rules:         make([]RuleConfig, 0, 16),
		DefaultEffect: EffectDeny,
	}

	p.line = 0
	for _, raw := range strings.Split(data, "\n") {
		p.line++
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || line[0] == '#' {
			continue
		}

		parts := splitDSLLine(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "version":
			if err := p.parseVersion(cfg, parts[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		case "default":
			if err := p.parseDefault(cfg, parts[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		case "strategy":
			if err := p.parseStrategy(cfg, parts[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		case "cache":
			if err := p.parseCache(cfg, parts[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		case "attr":
			if err := p.parseAttr(cfg, parts[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		case "role":
			if err := p.parseRole(cfg, parts[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		case "rule":
			if err := p.parseRule(cfg, parts[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		default:
			return nil, fmt.Errorf("line %d: unknown directive: %s", p.line, parts[0])
		}
	}

	return cfg, nil
}

// splitDSLLine splits on whitespace outside double quotes; quoted tokens keep
// their spaces with the quotes stripped.
func splitDSLLine(line string) []string {
	parts := make([]string, 0, 8)
	var start int
	inQuote := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == '"' {
			if inQuote {
				parts = append(parts, line[start:i])
				start = i + 1
				inQuote = false
			} else {
				start = i + 1
				inQuote = true
			}
		} else if (ch == ' ' || ch == '\t') && !inQuote {
			if i > start {
				parts = append(parts, line[start:i])
			}
			start = i + 1
		}
	}
	if start < len(line) {
		parts = append(parts, line[start:])
	}
	return parts
}

func (p *DSLParser) parseVersion(cfg *Config, parts []string) error {
	if len(parts) < 1 {
		return fmt.Errorf("version requires: <n>")
	}
	v, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	cfg.Version = uint16(v)
	return nil
}

func (p *DSLParser) parseDefault(cfg *Config, parts []string) error {
	if len(parts) < 1 {
		return fmt.Errorf("default requires: <allow|deny>")
	}
	eff := Effect(parts[0])
	if !eff.Valid() {
		return fmt.Errorf("default: invalid effect %q", parts[0])
	}
	cfg.DefaultEffect = eff
	return nil
}

func (p *DSLParser) parseStrategy(cfg *Config, parts []string) error {
	if len(parts) < 1 {
		return fmt.Errorf("strategy requires: <name>")
	}
	cfg.Evaluation = Strategy(parts[0])
	return nil
}

func (p *DSLParser) parseCache(cfg *Config, parts []string) error {
	cfg.Cache.Enabled = true
	for _, opt := range parts {
		switch {
		case strings.HasPrefix(opt, "ttl:"):
			ttl, err := strconv.ParseInt(opt[4:], 10, 64)
			if err != nil {
				return fmt.Errorf("cache ttl: %w", err)
			}
			cfg.Cache.TTL = ttl
		case strings.HasPrefix(opt, "backend:"):
			cfg.Cache.Backend = opt[8:]
		case opt == "off":
			cfg.Cache.Enabled = false
		}
	}
	return nil
}

func (p *DSLParser) parseAttr(cfg *Config, parts []string) error {
	if len(parts) < 3 {
		return fmt.Errorf("attr requires: <key> <id> <type> [\"description\"]")
	}
	attr := AttributeDefinition{
		ID:   parts[1],
		Type: AttributeType(parts[2]),
	}
	if len(parts) > 3 {
		attr.Description = parts[3]
	}
	cfg.Attributes[parts[0]] = attr
	return nil
}

func (p *DSLParser) parseRole(cfg *Config, parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("role requires: <key> <id> [\"description\"] perms:<perm,...>")
	}
	role := Role{ID: parts[1]}
	for _, opt := range parts[2:] {
		if strings.HasPrefix(opt, "perms:") {
			role.Permissions = strings.Split(opt[6:], ",")
		} else {
			role.Description = opt
		}
	}
	cfg.Roles[parts[0]] = role
	return nil
}

func (p *DSLParser) parseRule(cfg *Config, parts []string) error {
	if len(parts) < 4 {
		return fmt.Errorf("rule requires: <id> <resource> <action> <effect> [when ...]")
	}
	rule := RuleConfig{
		ID:       parts[0],
		Resource: parts[1],
		Action:   parts[2],
		Effect:   Effect(parts[3]),
	}
	if !rule.Effect.Valid() {
		return fmt.Errorf("rule %s: invalid effect %q", rule.ID, parts[3])
	}

	rest := parts[4:]
	if len(rest) > 0 {
		if rest[0] != "when" {
			return fmt.Errorf("rule %s: expected 'when', got %q", rule.ID, rest[0])
		}
		cond, err := parseDSLCondition(rest[1:])
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		rule.Condition = cond
	}

	cfg.Rules = append(cfg.Rules, rule)
	return nil
}

var dslOps = map[string]string{
	"==":     "$eq",
	"!=":     "$ne",
	">":      "$gt",
	">=":     "$gte",
	"<":      "$lt",
	"<=":     "$lte",
	"in":     "$in",
	"nin":    "$nin",
	"exists": "$exists",
}

// parseDSLCondition parses "<path> <op> <value> [and <path> <op> <value>]..."
// into the raw condition map shape shared by every config format.
func parseDSLCondition(parts []string) (map[string]any, error) {
	cond := make(map[string]any)
	for len(parts) > 0 {
		if len(parts) < 3 {
			return nil, fmt.Errorf("incomplete clause %v", parts)
		}
		path, symbol, raw := parts[0], parts[1], parts[2]
		op, ok := dslOps[symbol]
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", symbol)
		}

		var operand any
		switch op {
		case "$in", "$nin":
			items := strings.Split(raw, ",")
			list := make([]any, len(items))
			for i, item := range items {
				list[i] = parseDSLValue(item)
			}
			operand = list
		case "$exists":
			operand = raw == "true"
		default:
			operand = parseDSLValue(raw)
		}

		existing, ok := cond[path].(map[string]any)
		if !ok {
			existing = make(map[string]any)
			cond[path] = existing
		}
		existing[op] = operand

		parts = parts[3:]
		if len(parts) > 0 {
			if parts[0] != "and" {
				return nil, fmt.Errorf("expected 'and', got %q", parts[0])
			}
			parts = parts[1:]
		}
	}
	return cond, nil
}

func parseDSLValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

type DSLEncoder struct {
	buf []byte
}

func NewDSLEncoder() *DSLEncoder {
	return &DSLEncoder{buf: make([]byte, 0, 4096)}
}

func (e *DSLEncoder) Encode(cfg *Config) ([]byte, error) {
	e.buf = e.buf[:0]
	var tmp [20]byte

	e.buf = append(e.buf, "version "...)
	e.buf = append(e.buf, strconv.AppendUint(tmp[:0], uint64(cfg.Version), 10)...)
	e.buf = append(e.buf, '\n')

	e.buf = append(e.buf, "default "...)
	e.buf = append(e.buf, cfg.DefaultEffect...)
	e.buf = append(e.buf, '\n')

	if cfg.Evaluation != "" {
		e.buf = append(e.buf, "strategy "...)
		e.buf = append(e.buf, cfg.Evaluation...)
		e.buf = append(e.buf, '\n')
	}

	if cfg.Cache.Enabled {
		e.buf = append(e.buf, "cache ttl:"...)
		e.buf = append(e.buf, strconv.AppendInt(tmp[:0], cfg.Cache.TTL, 10)...)
		if cfg.Cache.Backend != "" {
			e.buf = append(e.buf, " backend:"...)
			e.buf = append(e.buf, cfg.Cache.Backend...)
		}
		e.buf = append(e.buf, '\n')
	}

	for _, key := range sortedKeys(cfg.Attributes) {
		attr := cfg.Attributes[key]
		e.buf = append(e.buf, "attr "...)
		e.buf = append(e.buf, key...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, attr.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, attr.Type...)
		if attr.Description != "" {
			e.buf = append(e.buf, " \""...)
			e.buf = append(e.buf, attr.Description...)
			e.buf = append(e.buf, '"')
		}
		e.buf = append(e.buf, '\n')
	}

	for _, key := range sortedKeys(cfg.Roles) {
		role := cfg.Roles[key]
		e.buf = append(e.buf, "role "...)
		e.buf = append(e.buf, key...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, role.ID...)
		if role.Description != "" {
			e.buf = append(e.buf, " \""...)
			e.buf = append(e.buf, role.Description...)
			e.buf = append(e.buf, '"')
		}
		e.buf = append(e.buf, " perms:"...)
		for i, perm := range role.Permissions {
			if i > 0 {
				e.buf = append(e.buf, ',')
			}
			e.buf = append(e.buf, perm...)
		}
		e.buf = append(e.buf, '\n')
	}

	for _, rule := range cfg.Rules {
		e.buf = append(e.buf, "rule "...)
		e.buf = append(e.buf, rule.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, rule.Resource...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, rule.Action...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, rule.Effect...)
		if len(rule.Condition) > 0 {
			clauses, err := encodeDSLCondition(rule.Condition)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
			}
			e.buf = append(e.buf, " when "...)
			e.buf = append(e.buf, clauses...)
		}
		e.buf = append(e.buf, '\n')
	}

	return e.buf, nil
}

func encodeDSLCondition(cond map[string]any) (string, error) {
	symbols := make(map[string]string, len(dslOps))
	for sym, op := range dslOps {
		symbols[op] = sym
	}

	paths := make([]string, 0, len(cond))
	for path := range cond {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var sb strings.Builder
	first := true
	emit := func(path, symbol string, operand any) {
		if !first {
			sb.WriteString(" and ")
		}
		first = false
		sb.WriteString(path)
		sb.WriteByte(' ')
		sb.WriteString(symbol)
		sb.WriteByte(' ')
		sb.WriteString(encodeDSLValue(operand))
	}

	for _, path := range paths {
		switch val := cond[path].(type) {
		case map[string]any:
			ops := make([]string, 0, len(val))
			for op := range val {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				symbol, ok := symbols[op]
				if !ok {
					return "", fmt.Errorf("operator %q has no symbol", op)
				}
				emit(path, symbol, val[op])
			}
		default:
			emit(path, "==", val)
		}
	}
	return sb.String(), nil
}

func encodeDSLValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = encodeDSLValue(item)
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprint(val)
	}
}
