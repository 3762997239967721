package admin

import (
	"github.com/dujiao-next/orderflow/internal/authz"
	handlershared "github.com/dujiao-next/orderflow/internal/http/handlers/shared"
	"github.com/dujiao-next/orderflow/internal/http/response"

	"github.com/gin-gonic/gin"
)

var authzErrorRules = []handlershared.MappedError{
	{Target: authz.ErrUnknownRole, Code: response.CodeBadRequest, Key: "error.authz_role_unknown"},
	{Target: authz.ErrInvalidRole, Code: response.CodeBadRequest, Key: "error.authz_role_invalid"},
}

// AdminRolesRequest 管理员角色覆盖请求
type AdminRolesRequest struct {
	Roles []string `json:"roles"`
}

// ListAuthzRoles 列出全部角色
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{"roles": roles})
}

// GetAdminRoles 查询管理员角色
func (h *Handler) GetAdminRoles(c *gin.Context) {
	targetID, ok := handlershared.ParseIDParam(c, "id", "error.admin_id_invalid")
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(targetID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{"admin_id": targetID, "roles": roles})
}

// SetAdminRoles 覆盖设置管理员角色
func (h *Handler) SetAdminRoles(c *gin.Context) {
	operatorID, ok := getAdminID(c)
	if !ok {
		return
	}
	targetID, ok := handlershared.ParseIDParam(c, "id", "error.admin_id_invalid")
	if !ok {
		return
	}
	var req AdminRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.SetAdminRoles(targetID, req.Roles); err != nil {
		handlershared.RespondMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_update_failed")
		return
	}
	handlershared.RequestLog(c).Infow("admin_authz_roles_updated",
		"operator_id", operatorID,
		"admin_id", targetID,
		"roles", req.Roles,
	)
	roles, err := h.AuthzService.GetAdminRoles(targetID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{"admin_id": targetID, "roles": roles})
}
