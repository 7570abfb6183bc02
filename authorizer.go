package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oarkflow/access/logger"
)

var (
	ErrRoleNotFound          = errors.New("role not found")
	ErrAttributeNotFound     = errors.New("attribute not found")
	ErrInvalidAttributeValue = errors.New("invalid attribute value")
)

// RoleAssignment records when a role was granted to a user.
type RoleAssignment struct {
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// UserStore is the persistence boundary for per-user state. Implementations
// live in the stores package; a user with no stored state is reported as
// having no roles and no attributes, not as an error.
type UserStore interface {
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
	GetUserAttributes(ctx context.Context, userID string) (AttributeValues, error)
	AssignRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	SetAttribute(ctx context.Context, userID, key string, value any) error
}

// Authorizer ties the policy engine, the decision cache and a user store into
// one authorization front door.
type Authorizer struct {
	cfg    *Config
	roles  *RoleManager
	attrs  *AttributeManager
	engine *PolicyEngine
	cache  *DecisionCache
	store  UserStore
	logger logger.Logger
}

// Option configures an Authorizer during construction.
type Option func(*Authorizer) error

// WithLogger installs a structured logger. The default is the phuslu backend.
func WithLogger(l logger.Logger) Option {
	return func(a *Authorizer) error {
		if l == nil {
			return fmt.Errorf("logger must not be nil")
		}
		a.logger = l
		return nil
	}
}

// WithCache replaces the decision cache built from the config.
func WithCache(c *DecisionCache) Option {
	return func(a *Authorizer) error {
		if c == nil {
			return fmt.Errorf("cache must not be nil")
		}
		a.cache = c
		return nil
	}
}

// New validates the config, compiles its rules and wires up an Authorizer
// over the given user store.
func New(cfg *Config, store UserStore, opts ...Option) (*Authorizer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("user store must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	rules, err := cfg.CompileRules()
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	cache, err := NewDecisionCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	roles := NewRoleManager(cfg.Roles)
	attrs := NewAttributeManager(cfg.Attributes)
	a := &Authorizer{
		cfg:    cfg,
		roles:  roles,
		attrs:  attrs,
		engine: NewPolicyEngine(roles, attrs, rules, cfg.DefaultEffect, cfg.Evaluation),
		cache:  cache,
		store:  store,
		logger: logger.NewPhusluLogger(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Can decides whether the user may perform action on resource under the given
// request context. Decisions and per-user store reads are cached; a cached
// decision skips the store entirely.
func (a *Authorizer) Can(ctx context.Context, userID, resource, action string, reqCtx map[string]any) (bool, error) {
	key := DecisionKey(userID, resource, action, reqCtx)
	if allowed, ok := a.cache.GetDecision(key); ok {
		a.logger.Debug("decision cache hit", "user", userID, "resource", resource, "action", action, "allowed", allowed)
		return allowed, nil
	}

	roleIDs, attrs, err := a.userState(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := a.engine.Evaluate(roleIDs, attrs, resource, action, reqCtx)
	a.cache.SetDecision(userID, key, allowed)
	a.logger.Info("authorization decision", "user", userID, "resource", resource, "action", action, "allowed", allowed)
	return allowed, nil
}

// userState fetches the user's roles and attributes, from cache when present.
// On a full miss both store reads are issued concurrently.
func (a *Authorizer) userState(ctx context.Context, userID string) ([]string, AttributeValues, error) {
	roleIDs, rolesOK := a.cache.GetRoles(userID)
	attrs, attrsOK := a.cache.GetAttributes(userID)
	if rolesOK && attrsOK {
		return roleIDs, attrs, nil
	}

	var (
		wg                 sync.WaitGroup
		rolesErr, attrsErr error
	)
	if !rolesOK {
		wg.Add(1)
		go func() {
			defer wg.Done()
			roleIDs, rolesErr = a.store.GetUserRoles(ctx, userID)
		}()
	}
	if !attrsOK {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attrs, attrsErr = a.store.GetUserAttributes(ctx, userID)
		}()
	}
	wg.Wait()

	if rolesErr != nil {
		return nil, nil, fmt.Errorf("load roles for %s: %w", userID, rolesErr)
	}
	if attrsErr != nil {
		return nil, nil, fmt.Errorf("load attributes for %s: %w", userID, attrsErr)
	}

	if !rolesOK {
		a.cache.SetRoles(userID, roleIDs)
	}
	if !attrsOK {
		a.cache.SetAttributes(userID, attrs)
	}
	return roleIDs, attrs, nil
}

// AssignRole grants a configured role to a user and invalidates their cached
// state. Unknown role IDs are rejected.
func (a *Authorizer) AssignRole(ctx context.Context, userID, roleID string) error {
	if _, ok := a.roles.GetRole(roleID); !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
	}
	if err := a.store.AssignRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("assign role %s to %s: %w", roleID, userID, err)
	}
	a.cache.InvalidateUser(userID)
	a.logger.Info("role assigned", "user", userID, "role", roleID)
	return nil
}

// RevokeRole removes a role from a user and invalidates their cached state.
func (a *Authorizer) RevokeRole(ctx context.Context, userID, roleID string) error {
	if _, ok := a.roles.GetRole(roleID); !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
	}
	if err := a.store.RevokeRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("revoke role %s from %s: %w", roleID, userID, err)
	}
	a.cache.InvalidateUser(userID)
	a.logger.Info("role revoked", "user", userID, "role", roleID)
	return nil
}

// SetAttribute writes an attribute value for a user after checking it against
// the attribute's declared type, then invalidates their cached state.
func (a *Authorizer) SetAttribute(ctx context.Context, userID, key string, value any) error {
	def, ok := a.attrs.DefinitionForKey(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAttributeNotFound, key)
	}
	if !valueMatchesType(def.Type, value) {
		return fmt.Errorf("%w: %s expects %s", ErrInvalidAttributeValue, key, def.Type)
	}
	if err := a.store.SetAttribute(ctx, userID, key, value); err != nil {
		return fmt.Errorf("set attribute %s for %s: %w", key, userID, err)
	}
	a.cache.InvalidateUser(userID)
	a.logger.Info("attribute set", "user", userID, "attribute", key)
	return nil
}

// InvalidateUser drops every cached entry for the user.
func (a *Authorizer) InvalidateUser(userID string) {
	a.cache.InvalidateUser(userID)
}

// Roles exposes the role catalog.
func (a *Authorizer) Roles() *RoleManager { return a.roles }

// Attributes exposes the attribute catalog.
func (a *Authorizer) Attributes() *AttributeManager { return a.attrs }

// Engine exposes the policy engine for callers that manage user state
// themselves.
func (a *Authorizer) Engine() *PolicyEngine { return a.engine }
