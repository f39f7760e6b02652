package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dalildocs/internal/database"
)

// SiteHandler 提供首页统计、全站搜索与后台仪表盘。
type SiteHandler struct {
	db *gorm.DB
}

// NewSiteHandler 构造 SiteHandler。
func NewSiteHandler(db *gorm.DB) *SiteHandler {
	return &SiteHandler{db: db}
}

// countRows 统计一张表的行数。
func (h *SiteHandler) countRows(ctx context.Context, model any, dst *int64, conds ...any) error {
	query := h.db.WithContext(ctx).Model(model)
	if len(conds) > 0 {
		query = query.Where(conds[0], conds[1:]...)
	}
	return query.Count(dst).Error
}

// sumColumn 对一列求和，空表按 0 计。
func (h *SiteHandler) sumColumn(ctx context.Context, model any, column string, dst *int64) error {
	return h.db.WithContext(ctx).Model(model).
		Select("COALESCE(SUM(" + column + "), 0)").Scan(dst).Error
}

// Home 返回首页统计与热门内容。
func (h *SiteHandler) Home(c *gin.Context) {
	ctx := c.Request.Context()

	var pdfCount, refCount, categoryCount, topicCount int64
	if err := h.countRows(ctx, &database.Pdf{}, &pdfCount); err != nil {
		Internal(c, "internal error")
		return
	}
	if err := h.countRows(ctx, &database.Reference{}, &refCount); err != nil {
		Internal(c, "internal error")
		return
	}
	if err := h.countRows(ctx, &database.PdfCategory{}, &categoryCount); err != nil {
		Internal(c, "internal error")
		return
	}
	if err := h.countRows(ctx, &database.ReferenceTopic{}, &topicCount); err != nil {
		Internal(c, "internal error")
		return
	}

	var popularPdfs []database.Pdf
	if err := h.db.WithContext(ctx).Order("view_count DESC").Limit(6).Find(&popularPdfs).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	var popularRefs []database.Reference
	if err := h.db.WithContext(ctx).Order("view_count DESC").Limit(6).Find(&popularRefs).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pdf_count":      pdfCount,
		"ref_count":      refCount,
		"pdf_categories": categoryCount,
		"ref_topics":     topicCount,
		"popular_pdfs":   popularPdfs,
		"popular_refs":   popularRefs,
	})
}

// Search 对标题与内容做大小写不敏感的子串匹配。
// type ∈ {all, pdfs, references}，默认 all。
func (h *SiteHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	query := strings.TrimSpace(c.Query("q"))
	searchType := c.DefaultQuery("type", "all")

	pdfs := []database.Pdf{}
	categories := []database.PdfCategory{}
	references := []database.Reference{}
	topics := []database.ReferenceTopic{}

	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"

		if searchType == "all" || searchType == "pdfs" {
			if err := h.db.WithContext(ctx).
				Where("LOWER(title) LIKE ?", pattern).
				Find(&pdfs).Error; err != nil {
				Internal(c, "internal error")
				return
			}
			if err := h.db.WithContext(ctx).
				Where("LOWER(name) LIKE ?", pattern).
				Find(&categories).Error; err != nil {
				Internal(c, "internal error")
				return
			}
		}

		if searchType == "all" || searchType == "references" {
			if err := h.db.WithContext(ctx).
				Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern).
				Find(&references).Error; err != nil {
				Internal(c, "internal error")
				return
			}
			if err := h.db.WithContext(ctx).
				Where("LOWER(name) LIKE ?", pattern).
				Find(&topics).Error; err != nil {
				Internal(c, "internal error")
				return
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":      query,
		"type":       searchType,
		"pdfs":       pdfs,
		"categories": categories,
		"references": references,
		"topics":     topics,
	})
}

// Dashboard 返回后台仪表盘的聚合统计。
func (h *SiteHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	var totalPdfs, pdfCategories, totalReferences, refTopics int64
	var pendingQuestions, totalQuestions, totalBookmarks int64
	for _, item := range []struct {
		model any
		dst   *int64
		conds []any
	}{
		{&database.Pdf{}, &totalPdfs, nil},
		{&database.PdfCategory{}, &pdfCategories, nil},
		{&database.Reference{}, &totalReferences, nil},
		{&database.ReferenceTopic{}, &refTopics, nil},
		{&database.Question{}, &pendingQuestions, []any{"status = ?", database.QuestionStatusPending}},
		{&database.Question{}, &totalQuestions, nil},
		{&database.Bookmark{}, &totalBookmarks, nil},
	} {
		if err := h.countRows(ctx, item.model, item.dst, item.conds...); err != nil {
			Internal(c, "internal error")
			return
		}
	}

	var pdfViews, refViews, totalDownloads int64
	if err := h.sumColumn(ctx, &database.Pdf{}, "view_count", &pdfViews); err != nil {
		Internal(c, "internal error")
		return
	}
	if err := h.sumColumn(ctx, &database.Reference{}, "view_count", &refViews); err != nil {
		Internal(c, "internal error")
		return
	}
	if err := h.sumColumn(ctx, &database.Pdf{}, "download_count", &totalDownloads); err != nil {
		Internal(c, "internal error")
		return
	}

	var popularPdfs []database.Pdf
	if err := h.db.WithContext(ctx).Order("view_count DESC").Limit(5).Find(&popularPdfs).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	var popularRefs []database.Reference
	if err := h.db.WithContext(ctx).Order("view_count DESC").Limit(5).Find(&popularRefs).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"total_pdfs":        totalPdfs,
			"pdf_categories":    pdfCategories,
			"total_references":  totalReferences,
			"ref_topics":        refTopics,
			"pending_questions": pendingQuestions,
			"total_questions":   totalQuestions,
			"total_views":       pdfViews + refViews,
			"pdf_views":         pdfViews,
			"ref_views":         refViews,
			"total_downloads":   totalDownloads,
			"total_bookmarks":   totalBookmarks,
		},
		"popular_pdfs": popularPdfs,
		"popular_refs": popularRefs,
	})
}
