package database

import (
	"time"

	"gorm.io/gorm"
)

// 问题状态：仅允许 pending → answered 单向迁移。
const (
	QuestionStatusPending  = "pending"
	QuestionStatusAnswered = "answered"
)

// Admin 表示后台管理员账号。IsMain 标记唯一的主管理员。
type Admin struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:80"`
	PasswordHash string `gorm:"size:255"`
	IsMain       bool   `gorm:"default:false"`
	DeviceID     string `gorm:"type:text;default:''"`
}

// PdfCategory 表示 PDF 分类，删除时级联删除其下的 PDF。
type PdfCategory struct {
	gorm.Model
	Name        string `gorm:"size:200"`
	Description string `gorm:"type:text"`
	Image       string `gorm:"size:200"`
	ViewCount   int64  `gorm:"default:0"`
	Pdfs        []Pdf  `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}

// Pdf 表示上传的 PDF 文档。CategoryID 允许为空（未分类）。
type Pdf struct {
	gorm.Model
	Title         string `gorm:"size:300"`
	Filename      string `gorm:"size:300"`
	CategoryID    *uint  `gorm:"index"`
	ViewCount     int64  `gorm:"default:0"`
	DownloadCount int64  `gorm:"default:0"`
}

// ReferenceTopic 表示参考资料主题，删除时级联删除其下的资料。
type ReferenceTopic struct {
	gorm.Model
	Name        string      `gorm:"size:200"`
	Description string      `gorm:"type:text"`
	Image       string      `gorm:"size:200"`
	ViewCount   int64       `gorm:"default:0"`
	References  []Reference `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE"`
}

// Reference 表示主题下的一段文字资料。
type Reference struct {
	gorm.Model
	TopicID   uint   `gorm:"index"`
	Title     string `gorm:"size:300"`
	Content   string `gorm:"type:text"`
	ViewCount int64  `gorm:"default:0"`
}

// Question 表示访客提交的问题及管理员的回复。
type Question struct {
	gorm.Model
	UserName       string `gorm:"size:200;index"`
	Question       string `gorm:"type:text"`
	Status         string `gorm:"size:50;default:pending"`
	ReplyMessage   string `gorm:"type:text"`
	ReplyReference string `gorm:"type:text"`
	RepliedAt      *time.Time
}

// Bookmark 表示访客对某条资料的收藏，(UserID, ReferenceID) 唯一。
// 不做软删除：取消收藏必须真正释放唯一索引，否则再次收藏会撞 UNIQUE。
type Bookmark struct {
	ID          uint      `gorm:"primarykey"`
	CreatedAt   time.Time
	UserID      string    `gorm:"size:100;index;uniqueIndex:idx_user_reference"`
	ReferenceID uint      `gorm:"index;uniqueIndex:idx_user_reference"`
	Reference   Reference `gorm:"constraint:OnDelete:CASCADE"`
}

// AllModels 列出需要迁移的全部模型。
func AllModels() []any {
	return []any{
		&Admin{},
		&PdfCategory{},
		&Pdf{},
		&ReferenceTopic{},
		&Reference{},
		&Question{},
		&Bookmark{},
	}
}
