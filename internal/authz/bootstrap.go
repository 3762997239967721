package authz

import "github.com/dujiao-next/orderflow/internal/logger"

// RoleSeed 预置角色，父角色需排在前面
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 订单与退款后台的预置角色
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role:     "readonly_auditor",
			Policies: []Policy{{Object: "/admin/*", Action: "GET"}},
		},
		{
			Role:     "order_operator",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{{Object: "/admin/orders/:id/status", Action: "PATCH"}},
		},
		{
			Role:     "refund_operator",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/refunds/:id/process", Action: "POST"},
				{Object: "/admin/refunds/:id/close", Action: "POST"},
				{Object: "/admin/refunds/:id/sync", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 写入预置角色，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		changed, err := s.DefineRole(seed.Role, seed.Inherits, seed.Policies)
		if err != nil {
			return err
		}
		if changed {
			logger.Infow("authz_builtin_role_seeded", "role", seed.Role)
		}
	}
	return nil
}
