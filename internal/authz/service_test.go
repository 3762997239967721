package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestDefineRoleAndEnforce(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	changed, err := svc.DefineRole("order viewer", nil, []Policy{{Object: "/admin/orders/:id", Action: "get"}})
	if err != nil || !changed {
		t.Fatalf("define role failed: changed=%v err=%v", changed, err)
	}
	changed, err = svc.DefineRole("order_viewer", nil, []Policy{{Object: "/admin/orders/:id", Action: "GET"}})
	if err != nil || changed {
		t.Fatalf("redefine should be a no-op: changed=%v err=%v", changed, err)
	}
	if err := svc.SetAdminRoles(1, []string{"role:order_viewer"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(1, "/api/v1/admin/orders/42", "GET")
	if err != nil || !allow {
		t.Fatalf("expected allow, got %v err=%v", allow, err)
	}
	allow, err = svc.EnforceAdmin(1, "/api/v1/admin/orders/42/status", "PATCH")
	if err != nil || allow {
		t.Fatalf("expected deny, got %v err=%v", allow, err)
	}
	allow, err = svc.EnforceAdmin(0, "/api/v1/admin/orders/42", "GET")
	if err != nil || allow {
		t.Fatalf("zero admin should be denied, got %v err=%v", allow, err)
	}
}

func TestSetAdminRolesRejectsUnknownRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.DefineRole("ops", nil, []Policy{{Object: "/admin/orders/:id/status", Action: "PATCH"}}); err != nil {
		t.Fatalf("define ops failed: %v", err)
	}
	if err := svc.SetAdminRoles(2, []string{"ops"}); err != nil {
		t.Fatalf("set ops failed: %v", err)
	}

	err := svc.SetAdminRoles(2, []string{"ops", "ghost"})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("want ErrUnknownRole, got %v", err)
	}
	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:ops" {
		t.Fatalf("rejected update must keep previous roles, got %v", roles)
	}

	if _, err := svc.DefineRole("__registry__", nil, nil); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("reserved role should be invalid, got %v", err)
	}
	if _, err := svc.DefineRole("child", []string{"missing"}, nil); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("unknown parent should fail, got %v", err)
	}
}

func TestSetAdminRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.DefineRole("ops", nil, []Policy{{Object: "/admin/orders/:id/status", Action: "PATCH"}}); err != nil {
		t.Fatalf("define ops failed: %v", err)
	}
	if _, err := svc.DefineRole("finance", nil, []Policy{{Object: "/admin/refunds/:id/process", Action: "POST"}}); err != nil {
		t.Fatalf("define finance failed: %v", err)
	}
	if err := svc.SetAdminRoles(2, []string{"ops"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	if err := svc.SetAdminRoles(2, []string{"finance", "finance"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("roles want [role:finance], got=%v", roles)
	}

	allow, err := svc.EnforceAdmin(2, "/admin/orders/9/status", "PATCH")
	if err != nil || allow {
		t.Fatalf("old role permission should be removed, got %v err=%v", allow, err)
	}
	allow, err = svc.EnforceAdmin(2, "/admin/refunds/9/process", "POST")
	if err != nil || !allow {
		t.Fatalf("new role permission should be granted, got %v err=%v", allow, err)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "admin/orders", want: "/admin/orders"},
		{in: "/api/v1", want: "/"},
		{in: "/api/v1x/orders", want: "/api/v1x/orders"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		if got := NormalizeObject(item.in); got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	// 重复执行幂等
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	views, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("want 3 builtin roles, got %+v", views)
	}
	byName := make(map[string]RoleView, len(views))
	for _, view := range views {
		byName[view.Name] = view
	}
	refund := byName["role:refund_operator"]
	if len(refund.Inherits) != 1 || refund.Inherits[0] != "role:readonly_auditor" {
		t.Fatalf("refund operator should inherit auditor, got %+v", refund.Inherits)
	}
	if len(refund.Policies) != 3 {
		t.Fatalf("refund operator policies want 3 got %+v", refund.Policies)
	}

	if err := svc.SetAdminRoles(3, []string{"order_operator"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(4, []string{"refund_operator"}); err != nil {
		t.Fatalf("set refund operator failed: %v", err)
	}

	cases := []struct {
		admin uint
		obj   string
		act   string
		allow bool
	}{
		{admin: 3, obj: "/api/v1/admin/orders/12", act: "GET", allow: true},
		{admin: 3, obj: "/api/v1/admin/orders/12/status", act: "PATCH", allow: true},
		{admin: 3, obj: "/api/v1/admin/refunds/5/process", act: "POST", allow: false},
		{admin: 3, obj: "/api/v1/admin/refunds/5/close", act: "POST", allow: false},
		{admin: 4, obj: "/api/v1/admin/orders/12/refunds", act: "GET", allow: true},
		{admin: 4, obj: "/api/v1/admin/refunds/5/process", act: "POST", allow: true},
		{admin: 4, obj: "/api/v1/admin/refunds/5/sync", act: "POST", allow: true},
		{admin: 3, obj: "/api/v1/admin/refunds/5/sync", act: "POST", allow: false},
		{admin: 4, obj: "/api/v1/admin/orders/12/status", act: "PATCH", allow: false},
	}
	for _, item := range cases {
		allow, err := svc.EnforceAdmin(item.admin, item.obj, item.act)
		if err != nil {
			t.Fatalf("enforce %s %s failed: %v", item.act, item.obj, err)
		}
		if allow != item.allow {
			t.Fatalf("admin %d %s %s want %v got %v", item.admin, item.act, item.obj, item.allow, allow)
		}
	}
}

func TestNilServiceUnavailable(t *testing.T) {
	var svc *Service
	if _, err := svc.EnforceAdmin(1, "/admin/orders", "GET"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}
