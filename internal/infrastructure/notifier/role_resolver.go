package notifier

import (
	"context"

	"github.com/crmkit/workflow-engine/internal/application/port"
)

// StaticRoleResolver resolves user roles from a fixed mapping loaded at
// startup, keyed by tenant then user. It is the default resolver for
// deployments without an identity provider integration.
type StaticRoleResolver struct {
	roles map[string]map[string][]string
}

// NewStaticRoleResolver creates a resolver over a tenant -> user -> roles map
func NewStaticRoleResolver(roles map[string]map[string][]string) *StaticRoleResolver {
	if roles == nil {
		roles = make(map[string]map[string][]string)
	}
	return &StaticRoleResolver{roles: roles}
}

// ResolveRoles implements port.RoleResolver. Unknown users resolve to no
// roles rather than an error; the evaluator then denies role-gated
// transitions for them.
func (r *StaticRoleResolver) ResolveRoles(ctx context.Context, tenantID, userID string) ([]string, error) {
	tenant, ok := r.roles[tenantID]
	if !ok {
		return nil, nil
	}
	return tenant[userID], nil
}

// Verify interface compliance
var _ port.RoleResolver = (*StaticRoleResolver)(nil)
