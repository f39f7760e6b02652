package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dalildocs/internal/api/middleware"
	"dalildocs/internal/auth"
	"dalildocs/internal/database"
)

// RosterHandler 负责管理员名册：仅主管理员可访问，且每个会话需要
// 重新输入主管理员密码完成一次二次验证。
type RosterHandler struct {
	db       *gorm.DB
	sessions *auth.SessionService
	logger   *slog.Logger
}

// NewRosterHandler 构造 RosterHandler。
func NewRosterHandler(db *gorm.DB, sessions *auth.SessionService, logger *slog.Logger) *RosterHandler {
	return &RosterHandler{db: db, sessions: sessions, logger: logger}
}

type adminInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsMain   bool   `json:"is_main"`
}

// requireMain 加载当前管理员并确认其为主管理员。
// 非主管理员一律拒绝，与二次验证标记无关。
func (h *RosterHandler) requireMain(c *gin.Context) (database.Admin, bool) {
	session := middleware.SessionFromContext(c)

	var admin database.Admin
	if err := h.db.WithContext(c.Request.Context()).First(&admin, session.AdminID).Error; err != nil {
		Unauthorized(c)
		return database.Admin{}, false
	}
	if !admin.IsMain {
		Forbidden(c, "only the main admin may manage the roster")
		return database.Admin{}, false
	}
	return admin, true
}

func (h *RosterHandler) requireVerified(c *gin.Context) bool {
	if !middleware.SessionFromContext(c).ManageAdminsVerified {
		Forbidden(c, "password verification required")
		return false
	}
	return true
}

type verifyRequest struct {
	Password string `json:"password" binding:"required"`
}

// Verify 重新校验主管理员密码，并在会话中打上名册验证标记。
// 标记随会话存续，登出即失效。
func (h *RosterHandler) Verify(c *gin.Context) {
	admin, ok := h.requireMain(c)
	if !ok {
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if !auth.CheckPasswordHash(req.Password, admin.PasswordHash) {
		BadRequest(c, "incorrect password")
		return
	}

	session := middleware.SessionFromContext(c).WithManageAdminsVerified()
	if err := middleware.WriteSessionCookie(c, h.sessions, session); err != nil {
		h.logger.Error("reissue session failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

// List 返回全部管理员。
func (h *RosterHandler) List(c *gin.Context) {
	if _, ok := h.requireMain(c); !ok {
		return
	}
	if !h.requireVerified(c) {
		return
	}

	var admins []database.Admin
	if err := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&admins).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	infos := make([]adminInfo, 0, len(admins))
	for _, a := range admins {
		infos = append(infos, adminInfo{ID: a.ID, Username: a.Username, IsMain: a.IsMain})
	}
	c.JSON(http.StatusOK, gin.H{"admins": infos})
}

type createAdminRequest struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// Create 新增一个普通管理员。用户名重复则拒绝。
func (h *RosterHandler) Create(c *gin.Context) {
	if _, ok := h.requireMain(c); !ok {
		return
	}
	if !h.requireVerified(c) {
		return
	}

	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var existing database.Admin
	if err := h.db.WithContext(ctx).Where("username = ?", req.Username).First(&existing).Error; err == nil {
		Conflict(c, "username already taken")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		Internal(c, "internal error")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	admin := database.Admin{
		Username:     req.Username,
		PasswordHash: hashed,
		IsMain:       false,
	}
	if err := h.db.WithContext(ctx).Create(&admin).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"admin": adminInfo{ID: admin.ID, Username: admin.Username, IsMain: admin.IsMain},
	})
}

// Delete 删除一个普通管理员。主管理员永远不可删除。
// 物理删除：用户名带唯一索引，软删除会让同名账号永远无法重建。
func (h *RosterHandler) Delete(c *gin.Context) {
	if _, ok := h.requireMain(c); !ok {
		return
	}
	if !h.requireVerified(c) {
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "admin not found")
		return
	}

	ctx := c.Request.Context()
	var target database.Admin
	if err := h.db.WithContext(ctx).First(&target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "admin not found")
			return
		}
		Internal(c, "internal error")
		return
	}
	if target.IsMain {
		Forbidden(c, "the main admin cannot be deleted")
		return
	}

	if err := h.db.WithContext(ctx).Unscoped().Delete(&target).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ResetPassword 为普通管理员生成新的随机密码并返回明文。
// 主管理员的密码不能被他人重置。
func (h *RosterHandler) ResetPassword(c *gin.Context) {
	if _, ok := h.requireMain(c); !ok {
		return
	}
	if !h.requireVerified(c) {
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "admin not found")
		return
	}

	ctx := c.Request.Context()
	var target database.Admin
	if err := h.db.WithContext(ctx).First(&target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "admin not found")
			return
		}
		Internal(c, "internal error")
		return
	}
	if target.IsMain {
		Forbidden(c, "the main admin password cannot be reset")
		return
	}

	password, err := auth.GenerateRandomPassword(8)
	if err != nil {
		h.logger.Error("generate password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(&target).Update("password_hash", hashed).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":     target.Username,
		"new_password": password,
	})
}
