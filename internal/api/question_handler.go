package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dalildocs/internal/database"
)

// QuestionHandler 负责访客提问与后台答复。
type QuestionHandler struct {
	db *gorm.DB
}

// NewQuestionHandler 构造 QuestionHandler。
func NewQuestionHandler(db *gorm.DB) *QuestionHandler {
	return &QuestionHandler{db: db}
}

type askRequest struct {
	Name     string `json:"name" binding:"required"`
	Question string `json:"question" binding:"required"`
}

// Ask 创建一条待回复的问题。
func (h *QuestionHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	question := database.Question{
		UserName: req.Name,
		Question: req.Question,
		Status:   database.QuestionStatusPending,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&question).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"question": question})
}

// ByUserName 按提问者姓名返回其全部问题，最新在前。
func (h *QuestionHandler) ByUserName(c *gin.Context) {
	userName := strings.TrimSpace(c.Query("user_name"))
	if userName == "" {
		BadRequest(c, "user_name is required")
		return
	}

	var questions []database.Question
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_name = ?", userName).
		Order("created_at DESC").
		Find(&questions).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// AdminList 返回全部问题，最新在前。
func (h *QuestionHandler) AdminList(c *gin.Context) {
	var questions []database.Question
	if err := h.db.WithContext(c.Request.Context()).
		Order("created_at DESC").
		Find(&questions).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

type replyRequest struct {
	ReplyMessage   string `json:"reply_message" binding:"required"`
	ReplyReference string `json:"reply_reference"`
}

// Reply 回复问题：pending → answered，盖上回复时间。
// 重复回复会覆盖回复内容，但状态保持 answered，绝不回退。
func (h *QuestionHandler) Reply(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "question not found")
		return
	}

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var question database.Question
	if err := h.db.WithContext(ctx).First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "question not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	now := time.Now().UTC()
	question.ReplyMessage = req.ReplyMessage
	question.ReplyReference = req.ReplyReference
	question.Status = database.QuestionStatusAnswered
	question.RepliedAt = &now

	if err := h.db.WithContext(ctx).Save(&question).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": question})
}

// Delete 删除一条问题。
func (h *QuestionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "question not found")
		return
	}

	ctx := c.Request.Context()
	var question database.Question
	if err := h.db.WithContext(ctx).First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "question not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Delete(&question).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
