package api

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/gin-gonic/gin"

	"dalildocs/internal/metrics"
	"dalildocs/internal/storage"
)

type fileRef struct {
	folder string
	name   string
}

// saveUpload 将 multipart 文件写入存储并记一次上传指标。
func saveUpload(ctx context.Context, store storage.Store, folder, storedName string, fh *multipart.FileHeader) error {
	reader, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer reader.Close()

	contentType := fh.Header.Get("Content-Type")
	if err := store.Save(ctx, folder, storedName, reader, fh.Size, contentType); err != nil {
		return err
	}
	metrics.CountUpload(folder)
	return nil
}

// saveImageIfPresent 处理表单中可选的封面图字段 "image"。
// 返回存储文件名（未上传为空串）；校验失败时已写出错误响应并返回 ok=false。
func saveImageIfPresent(c *gin.Context, store storage.Store, logger *slog.Logger, maxUploadBytes int64, folder string) (string, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		return "", true
	}
	if !storage.HasAllowedImageExt(fh.Filename) {
		BadRequest(c, "image extension not allowed")
		return "", false
	}
	if maxUploadBytes > 0 && fh.Size > maxUploadBytes {
		BadRequest(c, "file too large")
		return "", false
	}

	storedName := storage.TimestampedName(time.Now(), fh.Filename)
	if err := saveUpload(c.Request.Context(), store, folder, storedName, fh); err != nil {
		logger.Error("save image", slog.Any("error", err))
		Internal(c, "failed to store file")
		return "", false
	}
	return storedName, true
}

// cleanupFiles 尽力删除文件，失败只记日志，绝不影响已提交的数据库变更。
func cleanupFiles(ctx context.Context, store storage.Store, logger *slog.Logger, files []fileRef) {
	for _, f := range files {
		if f.name == "" {
			continue
		}
		if err := store.Delete(ctx, f.folder, f.name); err != nil {
			logger.Warn("file cleanup failed",
				slog.String("folder", f.folder),
				slog.String("filename", f.name),
				slog.Any("error", err),
			)
		}
	}
}
