package access

// Builders provide a fluent API for creating roles, rules and conditions in
// code, producing the same config shapes the file loaders do.

// RoleBuilder builds a Role
type RoleBuilder struct {
	r Role
}

func NewRoleBuilder(id string) *RoleBuilder {
	return &RoleBuilder{r: Role{ID: id, Permissions: []string{}}}
}

func (b *RoleBuilder) Description(d string) *RoleBuilder { b.r.Description = d; return b }
func (b *RoleBuilder) Permission(resource, action string) *RoleBuilder {
	b.r.Permissions = append(b.r.Permissions, resource+":"+action)
	return b
}
func (b *RoleBuilder) OwnPermission(resource, action string) *RoleBuilder {
	b.r.Permissions = append(b.r.Permissions, resource+":"+action+":own")
	return b
}
func (b *RoleBuilder) Superuser() *RoleBuilder {
	b.r.Permissions = append(b.r.Permissions, WildcardAll)
	return b
}
func (b *RoleBuilder) Build() Role { return b.r }

// RuleBuilder builds a RuleConfig
type RuleBuilder struct {
	r RuleConfig
}

func NewRuleBuilder(id string) *RuleBuilder {
	return &RuleBuilder{r: RuleConfig{ID: id, Effect: EffectAllow}}
}

func (b *RuleBuilder) Name(n string) *RuleBuilder          { b.r.Name = n; return b }
func (b *RuleBuilder) Description(d string) *RuleBuilder   { b.r.Description = d; return b }
func (b *RuleBuilder) Resource(res string) *RuleBuilder    { b.r.Resource = res; return b }
func (b *RuleBuilder) Action(action string) *RuleBuilder   { b.r.Action = action; return b }
func (b *RuleBuilder) Effect(e Effect) *RuleBuilder        { b.r.Effect = e; return b }
func (b *RuleBuilder) Allow() *RuleBuilder                 { b.r.Effect = EffectAllow; return b }
func (b *RuleBuilder) Deny() *RuleBuilder                  { b.r.Effect = EffectDeny; return b }
func (b *RuleBuilder) When(c *ConditionBuilder) *RuleBuilder {
	b.r.Condition = c.Build()
	return b
}
func (b *RuleBuilder) Build() RuleConfig { return b.r }

// ConditionBuilder builds the raw condition map clause by clause. Repeated
// operators on the same path merge into one operator object.
type ConditionBuilder struct {
	cond map[string]any
}

func NewConditionBuilder() *ConditionBuilder {
	return &ConditionBuilder{cond: make(map[string]any)}
}

func (b *ConditionBuilder) op(path, op string, operand any) *ConditionBuilder {
	existing, ok := b.cond[path].(map[string]any)
	if !ok {
		existing = make(map[string]any)
		b.cond[path] = existing
	}
	existing[op] = operand
	return b
}

func (b *ConditionBuilder) Eq(path string, v any) *ConditionBuilder  { return b.op(path, "$eq", v) }
func (b *ConditionBuilder) Ne(path string, v any) *ConditionBuilder  { return b.op(path, "$ne", v) }
func (b *ConditionBuilder) Gt(path string, v any) *ConditionBuilder  { return b.op(path, "$gt", v) }
func (b *ConditionBuilder) Gte(path string, v any) *ConditionBuilder { return b.op(path, "$gte", v) }
func (b *ConditionBuilder) Lt(path string, v any) *ConditionBuilder  { return b.op(path, "$lt", v) }
func (b *ConditionBuilder) Lte(path string, v any) *ConditionBuilder { return b.op(path, "$lte", v) }
func (b *ConditionBuilder) In(path string, vs ...any) *ConditionBuilder {
	return b.op(path, "$in", vs)
}
func (b *ConditionBuilder) Nin(path string, vs ...any) *ConditionBuilder {
	return b.op(path, "$nin", vs)
}
func (b *ConditionBuilder) Exists(path string, present bool) *ConditionBuilder {
	return b.op(path, "$exists", present)
}
func (b *ConditionBuilder) Build() map[string]any { return b.cond }
