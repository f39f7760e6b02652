package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// 列表排序参数 sort ∈ {newest, popular, az}，未知值按 newest 处理。
const (
	sortNewest  = "newest"
	sortPopular = "popular"
	sortAZ      = "az"
)

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// sortOrder 将 sort 查询参数翻译为 ORDER BY 子句。
// azColumn 是按字母序排序时使用的列（分类用 name，文档用 title）。
func sortOrder(c *gin.Context, azColumn string) string {
	switch c.DefaultQuery("sort", sortNewest) {
	case sortPopular:
		return "view_count DESC"
	case sortAZ:
		return azColumn + " ASC"
	default:
		return "created_at DESC"
	}
}

// 空字符串规整为 nil：表单里缺失或为空的分类 ID 统一表示为“未分类”。
func optionalUintForm(c *gin.Context, field string) (*uint, bool) {
	raw := c.PostForm(field)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil, false
	}
	v := uint(id)
	return &v, true
}
