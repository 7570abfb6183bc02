package access

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full declarative engine configuration: the role and attribute
// catalogs, the policy rules, and the evaluation settings.
type Config struct {
	Version       uint16       `json:"version,omitempty" yaml:"version,omitempty"`
	Roles         RoleMap      `json:"roles" yaml:"roles"`
	Attributes    AttributeMap `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Rules         []RuleConfig `json:"rules,omitempty" yaml:"rules,omitempty"`
	DefaultEffect Effect       `json:"default_effect" yaml:"default_effect"`
	Evaluation    Strategy     `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
	Cache         CacheConfig  `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// ConfigLoader reads engine configuration from YAML, JSON, the binary wire
// format or the line DSL.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	normalizeConditions(&cfg)
	return &cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return &cfg, nil
}

func (l *ConfigLoader) LoadBinary(data []byte) (*Config, error) {
	return decodeBinaryConfig(data)
}

// LoadFile dispatches on the file extension: .yaml/.yml, .json, .bin, or
// .access/.dsl for the line DSL.
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	case ".bin":
		return l.LoadBinary(data)
	case ".access", ".dsl":
		return NewDSLParser().Parse(string(data))
	default:
		return nil, fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func (c *Config) ToBinary() ([]byte, error) {
	return encodeBinaryConfig(c)
}

// Validate checks referential and structural integrity: unique IDs, parseable
// permissions, known attribute types, well-formed rule conditions. Rules are
// checked with the condition parser so malformed operators are rejected at
// load time rather than at evaluation time.
func (c *Config) Validate() error {
	if !c.DefaultEffect.Valid() {
		return fmt.Errorf("invalid default_effect %q", c.DefaultEffect)
	}

	roleIDs := make(map[string]string, len(c.Roles))
	for key, role := range c.Roles {
		if role.ID == "" {
			return fmt.Errorf("role %q: missing id", key)
		}
		if prev, dup := roleIDs[role.ID]; dup {
			return fmt.Errorf("duplicate role id %q (keys %q and %q)", role.ID, prev, key)
		}
		roleIDs[role.ID] = key
		if len(role.Permissions) == 0 {
			return fmt.Errorf("role %q: no permissions", role.ID)
		}
		for _, perm := range role.Permissions {
			if perm == WildcardAll {
				continue
			}
			if _, err := ParsePermission(perm); err != nil {
				return fmt.Errorf("role %q: %w", role.ID, err)
			}
		}
	}

	attrIDs := make(map[string]string, len(c.Attributes))
	for key, attr := range c.Attributes {
		if attr.ID == "" {
			return fmt.Errorf("attribute %q: missing id", key)
		}
		if prev, dup := attrIDs[attr.ID]; dup {
			return fmt.Errorf("duplicate attribute id %q (keys %q and %q)", attr.ID, prev, key)
		}
		attrIDs[attr.ID] = key
		switch attr.Type {
		case AttributeString, AttributeNumber, AttributeBoolean, AttributeObject, AttributeArray:
		default:
			return fmt.Errorf("attribute %q: unknown type %q", attr.ID, attr.Type)
		}
	}

	ruleIDs := make(map[string]struct{}, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule #%d: missing id", i)
		}
		if _, dup := ruleIDs[rule.ID]; dup {
			return fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		ruleIDs[rule.ID] = struct{}{}
		if rule.Resource == "" {
			return fmt.Errorf("rule %q: missing resource", rule.ID)
		}
		if rule.Action == "" {
			return fmt.Errorf("rule %q: missing action", rule.ID)
		}
		if !rule.Effect.Valid() {
			return fmt.Errorf("rule %q: invalid effect %q", rule.ID, rule.Effect)
		}
		if _, err := ParseCondition(rule.Condition); err != nil {
			return fmt.Errorf("rule %q: %w", rule.ID, err)
		}
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	return nil
}

// CompileRules parses every rule condition into its evaluable form. Call
// Validate first; CompileRules reports the first parse failure it hits.
func (c *Config) CompileRules() ([]PolicyRule, error) {
	rules := make([]PolicyRule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		cond, err := ParseCondition(rc.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rc.ID, err)
		}
		rules = append(rules, PolicyRule{
			ID:          rc.ID,
			Name:        rc.Name,
			Description: rc.Description,
			Resource:    rc.Resource,
			Action:      rc.Action,
			Effect:      rc.Effect,
			Condition:   cond,
		})
	}
	return rules, nil
}

// normalizeConditions converts yaml's map[any]any condition values into
// map[string]any so the condition parser sees one map shape regardless of
// the source format.
func normalizeConditions(cfg *Config) {
	for i := range cfg.Rules {
		if cfg.Rules[i].Condition == nil {
			continue
		}
		norm := make(map[string]any, len(cfg.Rules[i].Condition))
		for k, v := range cfg.Rules[i].Condition {
			norm[k] = normalizeValue(v)
		}
		cfg.Rules[i].Condition = norm
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = normalizeValue(inner)
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}
