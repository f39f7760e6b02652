package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound 表示请求的文件不存在。
var ErrNotFound = errors.New("file not found")

// 上传文件固定存放在三个目录中，其余路径一律拒绝。
const (
	FolderPdfs      = "pdfs"
	FolderPdfTopics = "pdf_topics"
	FolderRefTopics = "ref_topics"
)

// AllowedFolder 判断目录名是否属于三个固定上传目录之一。
func AllowedFolder(folder string) bool {
	switch folder {
	case FolderPdfs, FolderPdfTopics, FolderRefTopics:
		return true
	}
	return false
}

// Store 抽象上传文件的存取。两个实现：本地文件系统与 MinIO。
// Delete 必须幂等：对象不存在视为成功。
type Store interface {
	Save(ctx context.Context, folder, filename string, reader io.Reader, size int64, contentType string) error
	Open(ctx context.Context, folder, filename string) (io.ReadCloser, error)
	Delete(ctx context.Context, folder, filename string) error
}

// Presigner 由支持限时直链的后端实现（MinIO）。
type Presigner interface {
	PresignedURL(ctx context.Context, folder, filename string, duration time.Duration) (string, error)
}
