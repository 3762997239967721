package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

var (
	ErrUnavailable = errors.New("authz service unavailable")
	ErrInvalidRole = errors.New("invalid role")
	ErrUnknownRole = errors.New("unknown role")
)

const (
	casbinTable  = "casbin_rule"
	apiPrefix    = "/api/v1"
	adminSubject = "admin:%d"
	rolePrefix   = "role:"
	// 角色登记锚点：g(role, roleRegistry) 表示角色已定义
	roleRegistry = "role:__registry__"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 路由级权限，Object 为去掉 /api/v1 前缀的路由模板
type Policy struct {
	Object string `json:"object"`
	Action string `json:"action"`
}

// RoleView 角色定义（直接继承 + 直接权限）
type RoleView struct {
	Name     string   `json:"name"`
	Inherits []string `json:"inherits"`
	Policies []Policy `json:"policies"`
}

// Service 管理端订单/退款操作授权
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 基于 gorm 适配器创建授权服务，策略存于 casbin_rule 表
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTable)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// EnforceAdmin 判断管理员能否对路由执行动作
func (s *Service) EnforceAdmin(adminID uint, object, action string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if adminID == 0 {
		return false, nil
	}
	return s.enforcer.Enforce(SubjectForAdmin(adminID), NormalizeObject(object), normalizeAction(action))
}

// DefineRole 登记角色并追加继承与权限，已有条目跳过；返回是否有新增
func (s *Service) DefineRole(role string, inherits []string, policies []Policy) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	name, err := roleName(role)
	if err != nil {
		return false, err
	}

	changed := false
	track := func(added bool, err error) error {
		if err != nil {
			return err
		}
		changed = changed || added
		return nil
	}

	if err := track(s.enforcer.AddNamedGroupingPolicy("g", name, roleRegistry)); err != nil {
		return false, fmt.Errorf("register role %s failed: %w", name, err)
	}
	for _, parent := range inherits {
		parentName, err := s.knownRole(parent)
		if err != nil {
			return changed, err
		}
		if parentName == name {
			return changed, fmt.Errorf("%w: role cannot inherit itself", ErrInvalidRole)
		}
		if err := track(s.enforcer.AddNamedGroupingPolicy("g", name, parentName)); err != nil {
			return changed, fmt.Errorf("link role %s -> %s failed: %w", name, parentName, err)
		}
	}
	for _, policy := range policies {
		action := normalizeAction(policy.Action)
		if action == "" {
			return changed, fmt.Errorf("%w: policy action is required", ErrInvalidRole)
		}
		if err := track(s.enforcer.AddPolicy(name, NormalizeObject(policy.Object), action)); err != nil {
			return changed, fmt.Errorf("grant %s %s to %s failed: %w", action, policy.Object, name, err)
		}
	}
	return changed, nil
}

// ListRoles 列出已登记角色及其直接继承与权限
func (s *Service) ListRoles() ([]RoleView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	links, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 1, roleRegistry)
	if err != nil {
		return nil, fmt.Errorf("list roles failed: %w", err)
	}
	views := make([]RoleView, 0, len(links))
	for _, link := range links {
		if len(link) < 1 {
			continue
		}
		view, err := s.describeRole(link[0])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views, nil
}

func (s *Service) describeRole(name string) (RoleView, error) {
	view := RoleView{Name: name, Inherits: []string{}, Policies: []Policy{}}
	parents, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0, name)
	if err != nil {
		return view, fmt.Errorf("get role %s parents failed: %w", name, err)
	}
	for _, link := range parents {
		if len(link) >= 2 && link[1] != roleRegistry {
			view.Inherits = append(view.Inherits, link[1])
		}
	}
	sort.Strings(view.Inherits)

	rules, err := s.enforcer.GetFilteredPolicy(0, name)
	if err != nil {
		return view, fmt.Errorf("get role %s policies failed: %w", name, err)
	}
	for _, rule := range rules {
		if len(rule) >= 3 {
			view.Policies = append(view.Policies, Policy{Object: rule[1], Action: rule[2]})
		}
	}
	sort.Slice(view.Policies, func(i, j int) bool {
		if view.Policies[i].Object == view.Policies[j].Object {
			return view.Policies[i].Action < view.Policies[j].Action
		}
		return view.Policies[i].Object < view.Policies[j].Object
	})
	return view, nil
}

// SetAdminRoles 覆盖管理员角色；任一角色未登记则整体拒绝
func (s *Service) SetAdminRoles(adminID uint, roles []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if adminID == 0 {
		return fmt.Errorf("%w: admin id is required", ErrInvalidRole)
	}
	names := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		name, err := s.knownRole(role)
		if err != nil {
			return err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	subject := SubjectForAdmin(adminID)
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear roles of %s failed: %w", subject, err)
	}
	for _, name := range names {
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, name); err != nil {
			return fmt.Errorf("assign %s to %s failed: %w", name, subject, err)
		}
	}
	return nil
}

// GetAdminRoles 查询管理员直接绑定的角色
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if adminID == 0 {
		return nil, fmt.Errorf("%w: admin id is required", ErrInvalidRole)
	}
	roles, err := s.enforcer.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin roles failed: %w", err)
	}
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.HasPrefix(role, rolePrefix) && role != roleRegistry {
			out = append(out, role)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) knownRole(raw string) (string, error) {
	name, err := roleName(raw)
	if err != nil {
		return "", err
	}
	ok, err := s.enforcer.HasNamedGroupingPolicy("g", name, roleRegistry)
	if err != nil {
		return "", fmt.Errorf("check role %s failed: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return name, nil
}

// SubjectForAdmin 管理员主体标识
func SubjectForAdmin(adminID uint) string {
	return fmt.Sprintf(adminSubject, adminID)
}

// roleName 补全 role: 前缀，空白转下划线
func roleName(raw string) (string, error) {
	name := strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
	name = strings.TrimPrefix(name, rolePrefix)
	if name == "" {
		return "", fmt.Errorf("%w: role is required", ErrInvalidRole)
	}
	name = rolePrefix + name
	if name == roleRegistry {
		return "", fmt.Errorf("%w: %s is reserved", ErrInvalidRole, name)
	}
	return name, nil
}

// NormalizeObject 统一路由路径，去掉 /api/v1 前缀
func NormalizeObject(object string) string {
	path := strings.TrimSpace(object)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == apiPrefix {
		return "/"
	}
	if strings.HasPrefix(path, apiPrefix+"/") {
		return strings.TrimPrefix(path, apiPrefix)
	}
	return path
}

func normalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
