package access

import (
	"fmt"
	"strings"
)

// WildcardAll is the superuser grant: it matches every resource and action.
const WildcardAll = "*:*"

// Permission is a parsed "<resource>:<action>" grant. Own marks the
// ownership-qualified "<resource>:<action>:own" form; the role gate treats it
// as a full grant and leaves ownership enforcement to policy conditions on
// context (e.g. context.isOwner), since no ownership data exists at this
// layer.
type Permission struct {
	Resource string
	Action   string
	Own      bool
}

// ParsePermission parses a permission token. Valid forms are
// "<resource>:<action>", "<resource>:<action>:own", and wildcarded variants
// such as "posts:*", "*:read" and "*:*".
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
	case 3:
		if parts[2] != "own" {
			return Permission{}, fmt.Errorf("permission %q: third segment must be \"own\"", s)
		}
	default:
		return Permission{}, fmt.Errorf("permission %q: want <resource>:<action> with optional :own suffix", s)
	}
	if parts[0] == "" || parts[1] == "" {
		return Permission{}, fmt.Errorf("permission %q: empty segment", s)
	}
	return Permission{Resource: parts[0], Action: parts[1], Own: len(parts) == 3}, nil
}

func (p Permission) String() string {
	s := p.Resource + ":" + p.Action
	if p.Own {
		s += ":own"
	}
	return s
}

// grantsAccess reports whether a permission set (raw tokens) covers the given
// resource:action pair. Any of the exact, resource-wildcard, action-wildcard
// or ownership-qualified forms suffices.
func grantsAccess(perms map[string]struct{}, resource, action string) bool {
	candidates := [4]string{
		resource + ":" + action,
		resource + ":*",
		"*:" + action,
		resource + ":" + action + ":own",
	}
	for _, c := range candidates {
		if _, ok := perms[c]; ok {
			return true
		}
	}
	return false
}
