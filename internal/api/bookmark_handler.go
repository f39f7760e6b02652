package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dalildocs/internal/api/middleware"
	"dalildocs/internal/database"
)

// BookmarkHandler 负责访客收藏的查询与切换。
type BookmarkHandler struct {
	db *gorm.DB
}

// NewBookmarkHandler 构造 BookmarkHandler。
func NewBookmarkHandler(db *gorm.DB) *BookmarkHandler {
	return &BookmarkHandler{db: db}
}

// List 返回当前访客的收藏，按创建时间倒序，附带资料内容。
func (h *BookmarkHandler) List(c *gin.Context) {
	session := middleware.SessionFromContext(c)

	var bookmarks []database.Bookmark
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Reference").
		Where("user_id = ?", session.VisitorID).
		Order("created_at DESC").
		Find(&bookmarks).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookmarks": bookmarks})
}

// Toggle 严格切换收藏：存在则删除（removed），不存在则创建（added）。
// 对同一 (访客, 资料) 连续执行两次会回到初始状态。
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	referenceID, ok := parseIDParam(c, "referenceID")
	if !ok {
		NotFound(c, "reference not found")
		return
	}

	ctx := c.Request.Context()
	session := middleware.SessionFromContext(c)

	var reference database.Reference
	if err := h.db.WithContext(ctx).First(&reference, referenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "reference not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	var bookmark database.Bookmark
	err := h.db.WithContext(ctx).
		Where("user_id = ? AND reference_id = ?", session.VisitorID, referenceID).
		First(&bookmark).Error
	switch {
	case err == nil:
		if err := h.db.WithContext(ctx).Delete(&bookmark).Error; err != nil {
			Internal(c, "internal error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := database.Bookmark{
			UserID:      session.VisitorID,
			ReferenceID: referenceID,
		}
		if err := h.db.WithContext(ctx).Create(&created).Error; err != nil {
			Internal(c, "internal error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "added"})
	default:
		Internal(c, "internal error")
	}
}
