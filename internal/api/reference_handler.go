package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dalildocs/internal/api/middleware"
	"dalildocs/internal/database"
	"dalildocs/internal/storage"
)

// ReferenceHandler 负责参考资料与主题：公共浏览与后台管理。
type ReferenceHandler struct {
	db             *gorm.DB
	store          storage.Store
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewReferenceHandler 构造 ReferenceHandler。
func NewReferenceHandler(db *gorm.DB, store storage.Store, logger *slog.Logger, maxUploadBytes int64) *ReferenceHandler {
	return &ReferenceHandler{
		db:             db,
		store:          store,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// ListTopics 返回全部主题，支持 sort 参数。
func (h *ReferenceHandler) ListTopics(c *gin.Context) {
	var topics []database.ReferenceTopic
	if err := h.db.WithContext(c.Request.Context()).
		Order(sortOrder(c, "name")).
		Find(&topics).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// TopicDetail 返回主题详情及其下的资料，浏览计数原子加一。
func (h *ReferenceHandler) TopicDetail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "topic not found")
		return
	}

	ctx := c.Request.Context()
	var topic database.ReferenceTopic
	if err := h.db.WithContext(ctx).First(&topic, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "topic not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := bumpCounter(ctx, h.db, &database.ReferenceTopic{}, id, "view_count"); err != nil {
		Internal(c, "internal error")
		return
	}
	topic.ViewCount++

	var references []database.Reference
	if err := h.db.WithContext(ctx).
		Where("topic_id = ?", id).
		Order(sortOrder(c, "title")).
		Find(&references).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"topic": topic, "references": references})
}

// ReferenceDetail 返回资料详情，浏览计数原子加一。
func (h *ReferenceHandler) ReferenceDetail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "reference not found")
		return
	}

	ctx := c.Request.Context()
	var reference database.Reference
	if err := h.db.WithContext(ctx).First(&reference, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "reference not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := bumpCounter(ctx, h.db, &database.Reference{}, id, "view_count"); err != nil {
		Internal(c, "internal error")
		return
	}
	reference.ViewCount++

	c.JSON(http.StatusOK, gin.H{"reference": reference})
}

// AdminIndex 返回后台管理页所需的主题与资料全量列表。
func (h *ReferenceHandler) AdminIndex(c *gin.Context) {
	ctx := c.Request.Context()

	var topics []database.ReferenceTopic
	if err := h.db.WithContext(ctx).Order("created_at DESC").Find(&topics).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	var references []database.Reference
	if err := h.db.WithContext(ctx).Order("created_at DESC").Find(&references).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": topics, "references": references})
}

// CreateTopic 新建主题，可附带封面图。
func (h *ReferenceHandler) CreateTopic(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		BadRequest(c, "name is required")
		return
	}

	imageName, ok := saveImageIfPresent(c, h.store, h.loggerFromContext(c), h.maxUploadBytes, storage.FolderRefTopics)
	if !ok {
		return
	}

	topic := database.ReferenceTopic{
		Name:        name,
		Description: c.PostForm("description"),
		Image:       imageName,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&topic).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"topic": topic})
}

// UpdateTopic 更新主题名称、描述与封面图。换图时旧图尽力删除。
func (h *ReferenceHandler) UpdateTopic(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "topic not found")
		return
	}

	ctx := c.Request.Context()
	var topic database.ReferenceTopic
	if err := h.db.WithContext(ctx).First(&topic, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "topic not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if name := c.PostForm("name"); name != "" {
		topic.Name = name
	}
	topic.Description = c.PostForm("description")

	imageName, ok := saveImageIfPresent(c, h.store, h.loggerFromContext(c), h.maxUploadBytes, storage.FolderRefTopics)
	if !ok {
		return
	}
	if imageName != "" {
		if topic.Image != "" {
			cleanupFiles(ctx, h.store, h.loggerFromContext(c), []fileRef{{storage.FolderRefTopics, topic.Image}})
		}
		topic.Image = imageName
	}

	if err := h.db.WithContext(ctx).Save(&topic).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"topic": topic})
}

// DeleteTopic 级联删除主题：其下资料、指向这些资料的收藏与封面图一并清理。
// 数据库行在一个事务中删除，文件随后尽力清理。
func (h *ReferenceHandler) DeleteTopic(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "topic not found")
		return
	}

	ctx := c.Request.Context()
	var topic database.ReferenceTopic
	if err := h.db.WithContext(ctx).First(&topic, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "topic not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refIDs []uint
		if err := tx.Model(&database.Reference{}).
			Where("topic_id = ?", id).
			Pluck("id", &refIDs).Error; err != nil {
			return err
		}
		if len(refIDs) > 0 {
			if err := tx.Where("reference_id IN ?", refIDs).Delete(&database.Bookmark{}).Error; err != nil {
				return err
			}
			if err := tx.Where("topic_id = ?", id).Delete(&database.Reference{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&database.ReferenceTopic{}, id).Error
	})
	if err != nil {
		h.loggerFromContext(c).Error("delete topic", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if topic.Image != "" {
		cleanupFiles(ctx, h.store, h.loggerFromContext(c), []fileRef{{storage.FolderRefTopics, topic.Image}})
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type referenceRequest struct {
	TopicID uint   `json:"topic_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// CreateReference 在主题下新建一段资料。
func (h *ReferenceHandler) CreateReference(c *gin.Context) {
	var req referenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var topic database.ReferenceTopic
	if err := h.db.WithContext(ctx).First(&topic, req.TopicID).Error; err != nil {
		BadRequest(c, "invalid topic id")
		return
	}

	reference := database.Reference{
		TopicID: req.TopicID,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := h.db.WithContext(ctx).Create(&reference).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reference": reference})
}

// UpdateReference 更新资料的标题、内容与所属主题。
func (h *ReferenceHandler) UpdateReference(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "reference not found")
		return
	}

	var req referenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var reference database.Reference
	if err := h.db.WithContext(ctx).First(&reference, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "reference not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	var topic database.ReferenceTopic
	if err := h.db.WithContext(ctx).First(&topic, req.TopicID).Error; err != nil {
		BadRequest(c, "invalid topic id")
		return
	}

	reference.TopicID = req.TopicID
	reference.Title = req.Title
	reference.Content = req.Content
	if err := h.db.WithContext(ctx).Save(&reference).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reference": reference})
}

// DeleteReference 删除资料并移除所有指向它的收藏。
func (h *ReferenceHandler) DeleteReference(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "reference not found")
		return
	}

	ctx := c.Request.Context()
	var reference database.Reference
	if err := h.db.WithContext(ctx).First(&reference, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "reference not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_id = ?", id).Delete(&database.Bookmark{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.Reference{}, id).Error
	})
	if err != nil {
		h.loggerFromContext(c).Error("delete reference", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ReferenceHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
