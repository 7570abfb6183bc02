package access

// PolicyEngine combines the role gate with attribute-conditioned policy
// rules. Evaluation is a pure function of its immutable configuration and the
// per-call inputs; it never errors and never mutates what it is given.
type PolicyEngine struct {
	roles         *RoleManager
	attrs         *AttributeManager
	rules         []PolicyRule
	defaultEffect Effect
	strategy      Strategy
}

// NewPolicyEngine wires the managers with the compiled rule list. Rule order
// is preserved; it is significant for the firstApplicable strategy.
func NewPolicyEngine(roles *RoleManager, attrs *AttributeManager, rules []PolicyRule, defaultEffect Effect, strategy Strategy) *PolicyEngine {
	return &PolicyEngine{
		roles:         roles,
		attrs:         attrs,
		rules:         rules,
		defaultEffect: defaultEffect,
		strategy:      strategy,
	}
}

// Evaluate decides whether a subject with the given roles and attributes may
// perform action on resource under the supplied context.
//
// The role permission is a mandatory gate: no policy rule can grant access
// the roles do not. With the gate passed, rules scoped to the resource/action
// narrow or override the decision; when none is scoped, the role grant
// stands.
func (e *PolicyEngine) Evaluate(roleIDs []string, attrs AttributeValues, resource, action string, context map[string]any) bool {
	if !e.roles.HasPermission(roleIDs, resource, action) {
		return false
	}

	var matching []PolicyRule
	for _, r := range e.rules {
		if r.Matches(resource, action) {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		return true
	}

	switch e.strategy {
	case StrategyFirstApplicable:
		return e.firstApplicable(matching, attrs, context)
	case StrategyAllApplicable:
		return e.allApplicable(matching, attrs, context)
	case StrategyDenyOverrides:
		return e.denyOverrides(matching, attrs, context)
	default:
		return e.defaultEffect == EffectAllow
	}
}

// firstApplicable takes the effect of the first rule, in configured order,
// whose condition matches.
func (e *PolicyEngine) firstApplicable(rules []PolicyRule, attrs AttributeValues, context map[string]any) bool {
	for _, r := range rules {
		if e.attrs.EvaluateCondition(r.Condition, attrs, context) {
			return r.Effect == EffectAllow
		}
	}
	return e.defaultEffect == EffectAllow
}

// allApplicable evaluates every rule; simultaneous allow and deny matches are
// a conflict and deny wins.
func (e *PolicyEngine) allApplicable(rules []PolicyRule, attrs AttributeValues, context map[string]any) bool {
	anyAllow, anyDeny := false, false
	for _, r := range rules {
		if !e.attrs.EvaluateCondition(r.Condition, attrs, context) {
			continue
		}
		if r.Effect == EffectDeny {
			anyDeny = true
		} else {
			anyAllow = true
		}
	}
	if !anyAllow && !anyDeny {
		return e.defaultEffect == EffectAllow
	}
	return anyAllow && !anyDeny
}

// denyOverrides short-circuits on the first matching deny regardless of rule
// order.
func (e *PolicyEngine) denyOverrides(rules []PolicyRule, attrs AttributeValues, context map[string]any) bool {
	anyAllow := false
	for _, r := range rules {
		if !e.attrs.EvaluateCondition(r.Condition, attrs, context) {
			continue
		}
		if r.Effect == EffectDeny {
			return false
		}
		anyAllow = true
	}
	if anyAllow {
		return true
	}
	return e.defaultEffect == EffectAllow
}
