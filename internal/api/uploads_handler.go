package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"dalildocs/internal/storage"
)

// UploadsHandler 直接回传上传目录下的文件（分类与专题图片等）。
type UploadsHandler struct {
	store  storage.Store
	logger *slog.Logger
}

// NewUploadsHandler 构造 UploadsHandler。
func NewUploadsHandler(store storage.Store, logger *slog.Logger) *UploadsHandler {
	return &UploadsHandler{store: store, logger: logger}
}

// Serve 处理 GET /uploads/:folder/:filename。未知目录与缺失文件均返回 404。
func (h *UploadsHandler) Serve(c *gin.Context) {
	folder := c.Param("folder")
	if !storage.AllowedFolder(folder) {
		NotFound(c, "file not found")
		return
	}
	filename := storage.SanitizeFilename(c.Param("filename"))
	if filename == "" {
		NotFound(c, "file not found")
		return
	}

	ctx := c.Request.Context()

	if presigner, ok := h.store.(storage.Presigner); ok {
		url, err := presigner.PresignedURL(ctx, folder, filename, 15*time.Minute)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || storage.IsNoSuchKey(err) {
				NotFound(c, "file not found")
				return
			}
			h.logger.Error("presign upload failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	reader, err := h.store.Open(ctx, folder, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFound(c, "file not found")
			return
		}
		h.logger.Error("open upload failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.logger.Warn("stream upload interrupted", slog.Any("error", err))
	}
}
