package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"dalildocs/internal/api/middleware"
	"dalildocs/internal/auth"
	"dalildocs/internal/config"
	"dalildocs/internal/database"
)

// AuthHandler 处理管理员登录、登出与改密。
type AuthHandler struct {
	db       *gorm.DB
	sessions *auth.SessionService
	redis    redis.UniversalClient
	logger   *slog.Logger
	login    config.LoginConfig
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, sessions *auth.SessionService, redisClient redis.UniversalClient, logger *slog.Logger, login config.LoginConfig) *AuthHandler {
	return &AuthHandler{
		db:       db,
		sessions: sessions,
		redis:    redisClient,
		logger:   logger,
		login:    login,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验口令并将管理员身份写入会话 Cookie。
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(
		slog.String("username", req.Username),
	)

	// 速率限制：每 IP+用户名 每小时 N 次
	rateKey := "rate:login:" + ip + ":" + strings.ToLower(req.Username) + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		count = 0
	}
	if count > int64(h.login.RateLimitPerHour) {
		TooManyRequests(c, "rate limit exceeded")
		return
	}

	// 锁定检查
	lockKey := "lock:login:" + strings.ToLower(req.Username)
	if ttl, _ := h.redis.TTL(ctx, lockKey).Result(); ttl > 0 {
		TooManyRequests(c, "account temporarily locked")
		return
	}

	var admin database.Admin
	if err := h.db.WithContext(ctx).Where("username = ?", req.Username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: admin not found")
			_ = h.incrementLoginFail(ctx, strings.ToLower(req.Username))
			Unauthorized(c)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !auth.CheckPasswordHash(req.Password, admin.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("admin_id", uint64(admin.ID)))
		_ = h.incrementLoginFail(ctx, strings.ToLower(req.Username))
		Unauthorized(c)
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, "lock:login:fail:"+strings.ToLower(req.Username)).Err()

	session := middleware.SessionFromContext(c).WithAdmin(admin.ID, admin.Username)
	if err := middleware.WriteSessionCookie(c, h.sessions, session); err != nil {
		logger.Error("issue session failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("admin logged in", slog.Uint64("admin_id", uint64(admin.ID)))
	c.JSON(http.StatusOK, gin.H{
		"username": admin.Username,
		"is_main":  admin.IsMain,
	})
}

// Logout 清除会话中的管理员身份与名册验证标记，访客身份保留。
func (h *AuthHandler) Logout(c *gin.Context) {
	session := middleware.SessionFromContext(c).WithoutAdmin()
	if err := middleware.WriteSessionCookie(c, h.sessions, session); err != nil {
		h.loggerFromContext(c).Error("reissue session failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ChangePassword 校验当前密码并更新为新密码。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		BadRequest(c, "password confirmation does not match")
		return
	}
	if len(req.NewPassword) < 6 {
		BadRequest(c, "password must be at least 6 characters")
		return
	}

	session := middleware.SessionFromContext(c)
	if !session.IsAdmin() {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("admin_id", uint64(session.AdminID)))

	var admin database.Admin
	if err := h.db.WithContext(ctx).First(&admin, session.AdminID).Error; err != nil {
		logger.Info("change password: admin not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if !auth.CheckPasswordHash(req.CurrentPassword, admin.PasswordHash) {
		logger.Info("change password: current password mismatch")
		BadRequest(c, "current password is incorrect")
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("change password: hash failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(&admin).Update("password_hash", hashed).Error; err != nil {
		logger.Error("change password: update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("password changed")
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, username string) error {
	failKey := "lock:login:fail:" + username
	count, err := h.redis.Incr(ctx, failKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		_ = h.redis.Expire(ctx, failKey, h.login.LockTTL()).Err()
	}
	if count >= int64(h.login.LockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+username, "1", h.login.LockTTL()).Err()
	}
	return nil
}
