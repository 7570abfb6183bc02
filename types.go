package access

// Effect is the outcome a policy rule produces when its condition matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Valid reports whether e is one of the two recognized effects.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Strategy selects how multiple matching policy rules are combined into a
// single decision.
type Strategy string

const (
	StrategyFirstApplicable Strategy = "firstApplicable"
	StrategyAllApplicable   Strategy = "allApplicable"
	StrategyDenyOverrides   Strategy = "denyOverrides"
)

// AttributeType is the declared runtime type of an attribute value.
type AttributeType string

const (
	AttributeString  AttributeType = "string"
	AttributeNumber  AttributeType = "number"
	AttributeBoolean AttributeType = "boolean"
	AttributeObject  AttributeType = "object"
	AttributeArray   AttributeType = "array"
)

// Role is a named collection of permission grants. Roles are loaded once from
// configuration and read-only for the process lifetime.
type Role struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// AttributeDefinition declares an attribute an authorization subject may
// carry. Immutable after load.
type AttributeDefinition struct {
	ID          string        `json:"id" yaml:"id"`
	Type        AttributeType `json:"type" yaml:"type"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// AttributeValues maps attribute key names to a subject's current values.
type AttributeValues map[string]any

// RuleConfig is the loosely-typed policy rule shape as it appears in
// configuration files. Conditions are compiled into a PolicyRule by
// Config.CompileRules; unknown operators are rejected there, at load time.
type RuleConfig struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Resource    string         `json:"resource" yaml:"resource"`
	Action      string         `json:"action" yaml:"action"`
	Condition   map[string]any `json:"condition" yaml:"condition"`
	Effect      Effect         `json:"effect" yaml:"effect"`
}

// PolicyRule is the compiled, immutable form of a RuleConfig.
type PolicyRule struct {
	ID          string
	Name        string
	Description string
	Resource    string
	Action      string
	Condition   Condition
	Effect      Effect
}

// Matches reports whether the rule is scoped to the given resource and
// action. "*" in either position matches any value.
func (r *PolicyRule) Matches(resource, action string) bool {
	return (r.Resource == resource || r.Resource == "*") &&
		(r.Action == action || r.Action == "*")
}

// RoleMap maps a human-readable key to a role definition.
type RoleMap map[string]Role

// AttributeMap maps a human-readable key to an attribute definition. The map
// key is also the key under which subjects carry the attribute's value.
type AttributeMap map[string]AttributeDefinition
