package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dalildocs/internal/api/middleware"
	"dalildocs/internal/database"
	"dalildocs/internal/storage"
)

// PdfHandler 负责 PDF 与 PDF 分类：公共浏览、下载，以及后台管理。
type PdfHandler struct {
	db             *gorm.DB
	store          storage.Store
	logger         *slog.Logger
	maxUploadBytes int64
	clamdAddr      string
}

// NewPdfHandler 构造 PdfHandler。
func NewPdfHandler(db *gorm.DB, store storage.Store, logger *slog.Logger, maxUploadBytes int64, clamdAddr string) *PdfHandler {
	return &PdfHandler{
		db:             db,
		store:          store,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		clamdAddr:      clamdAddr,
	}
}

// ListCategories 返回全部 PDF 分类，支持 sort 参数。
func (h *PdfHandler) ListCategories(c *gin.Context) {
	var categories []database.PdfCategory
	if err := h.db.WithContext(c.Request.Context()).
		Order(sortOrder(c, "name")).
		Find(&categories).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CategoryDetail 返回分类详情及其下的 PDF，浏览计数原子加一。
func (h *PdfHandler) CategoryDetail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "category not found")
		return
	}

	ctx := c.Request.Context()
	var category database.PdfCategory
	if err := h.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "category not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := bumpCounter(ctx, h.db, &database.PdfCategory{}, id, "view_count"); err != nil {
		Internal(c, "internal error")
		return
	}
	category.ViewCount++

	var pdfs []database.Pdf
	if err := h.db.WithContext(ctx).
		Where("category_id = ?", id).
		Order(sortOrder(c, "title")).
		Find(&pdfs).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category, "pdfs": pdfs})
}

// PdfDetail 返回 PDF 详情，浏览计数原子加一。
func (h *PdfHandler) PdfDetail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "pdf not found")
		return
	}

	ctx := c.Request.Context()
	var pdf database.Pdf
	if err := h.db.WithContext(ctx).First(&pdf, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "pdf not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := bumpCounter(ctx, h.db, &database.Pdf{}, id, "view_count"); err != nil {
		Internal(c, "internal error")
		return
	}
	pdf.ViewCount++

	c.JSON(http.StatusOK, gin.H{"pdf": pdf})
}

// Download 下载 PDF 文件，下载计数原子加一。
// MinIO 后端重定向到限时直链，本地后端直接回流文件内容。
func (h *PdfHandler) Download(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "pdf not found")
		return
	}

	ctx := c.Request.Context()
	var pdf database.Pdf
	if err := h.db.WithContext(ctx).First(&pdf, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "pdf not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := bumpCounter(ctx, h.db, &database.Pdf{}, id, "download_count"); err != nil {
		Internal(c, "internal error")
		return
	}

	if presigner, ok := h.store.(storage.Presigner); ok {
		url, err := presigner.PresignedURL(ctx, storage.FolderPdfs, pdf.Filename, 15*time.Minute)
		if err != nil {
			h.loggerFromContext(c).Error("presign download", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	reader, err := h.store.Open(ctx, storage.FolderPdfs, pdf.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFound(c, "file not found")
			return
		}
		h.loggerFromContext(c).Error("open pdf file", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdf.Title+".pdf"))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.loggerFromContext(c).Error("stream pdf file", slog.Any("error", err))
	}
}

// AdminIndex 返回后台管理页所需的分类与 PDF 全量列表。
func (h *PdfHandler) AdminIndex(c *gin.Context) {
	ctx := c.Request.Context()

	var categories []database.PdfCategory
	if err := h.db.WithContext(ctx).Order("created_at DESC").Find(&categories).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	var pdfs []database.Pdf
	if err := h.db.WithContext(ctx).Order("created_at DESC").Find(&pdfs).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories, "pdfs": pdfs})
}

// CreateCategory 新建 PDF 分类，可附带分类封面图。
func (h *PdfHandler) CreateCategory(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		BadRequest(c, "name is required")
		return
	}

	ctx := c.Request.Context()
	imageName, ok := saveImageIfPresent(c, h.store, h.loggerFromContext(c), h.maxUploadBytes, storage.FolderPdfTopics)
	if !ok {
		return
	}

	category := database.PdfCategory{
		Name:        name,
		Description: c.PostForm("description"),
		Image:       imageName,
	}
	if err := h.db.WithContext(ctx).Create(&category).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory 更新分类名称、描述与封面图。换图时旧图尽力删除。
func (h *PdfHandler) UpdateCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "category not found")
		return
	}

	ctx := c.Request.Context()
	var category database.PdfCategory
	if err := h.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "category not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if name := c.PostForm("name"); name != "" {
		category.Name = name
	}
	category.Description = c.PostForm("description")

	imageName, ok := saveImageIfPresent(c, h.store, h.loggerFromContext(c), h.maxUploadBytes, storage.FolderPdfTopics)
	if !ok {
		return
	}
	if imageName != "" {
		if category.Image != "" {
			cleanupFiles(ctx, h.store, h.loggerFromContext(c), []fileRef{{storage.FolderPdfTopics, category.Image}})
		}
		category.Image = imageName
	}

	if err := h.db.WithContext(ctx).Save(&category).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory 级联删除分类：先收集文件路径，数据库行在一个事务中删除，
// 文件随后尽力清理，清理失败不回滚。
func (h *PdfHandler) DeleteCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "category not found")
		return
	}

	ctx := c.Request.Context()
	var category database.PdfCategory
	if err := h.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "category not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	var pdfs []database.Pdf
	if err := h.db.WithContext(ctx).Where("category_id = ?", id).Find(&pdfs).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	files := make([]fileRef, 0, len(pdfs)+1)
	if category.Image != "" {
		files = append(files, fileRef{storage.FolderPdfTopics, category.Image})
	}
	for _, pdf := range pdfs {
		files = append(files, fileRef{storage.FolderPdfs, pdf.Filename})
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&database.Pdf{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.PdfCategory{}, id).Error
	})
	if err != nil {
		h.loggerFromContext(c).Error("delete category", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	cleanupFiles(ctx, h.store, h.loggerFromContext(c), files)
	c.JSON(http.StatusOK, gin.H{"deleted_pdfs": len(pdfs)})
}

// CreatePdf 上传单个 PDF。标题缺省时取文件名（去扩展名）。
func (h *PdfHandler) CreatePdf(c *gin.Context) {
	categoryID, ok := optionalUintForm(c, "category_id")
	if !ok {
		BadRequest(c, "invalid category id")
		return
	}

	fh, err := c.FormFile("pdf_file")
	if err != nil {
		BadRequest(c, "missing pdf file")
		return
	}
	if !storage.IsPdfFilename(fh.Filename) {
		BadRequest(c, "only pdf files are accepted")
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		BadRequest(c, "file too large")
		return
	}

	ctx := c.Request.Context()
	if categoryID != nil {
		var category database.PdfCategory
		if err := h.db.WithContext(ctx).First(&category, *categoryID).Error; err != nil {
			BadRequest(c, "invalid category id")
			return
		}
	}

	if err := h.scanUpload(fh); err != nil {
		h.loggerFromContext(c).Info("upload rejected by scanner", slog.Any("error", err))
		BadRequest(c, "malicious file detected")
		return
	}

	storedName := storage.TimestampedName(time.Now(), fh.Filename)
	if err := saveUpload(ctx, h.store, storage.FolderPdfs, storedName, fh); err != nil {
		h.loggerFromContext(c).Error("save pdf", slog.Any("error", err))
		Internal(c, "failed to store file")
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = storage.TitleFromFilename(fh.Filename)
	}

	pdf := database.Pdf{
		Title:      title,
		Filename:   storedName,
		CategoryID: categoryID,
	}
	if err := h.db.WithContext(ctx).Create(&pdf).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pdf": pdf})
}

// BulkUpload 批量上传 PDF：非 PDF 条目静默跳过，逐行入库（部分成功是预期行为），
// 返回成功数量。
func (h *PdfHandler) BulkUpload(c *gin.Context) {
	categoryID, ok := optionalUintForm(c, "category_id")
	if !ok {
		BadRequest(c, "invalid category id")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "missing files")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		BadRequest(c, "missing files")
		return
	}

	ctx := c.Request.Context()
	if categoryID != nil {
		var category database.PdfCategory
		if err := h.db.WithContext(ctx).First(&category, *categoryID).Error; err != nil {
			BadRequest(c, "invalid category id")
			return
		}
	}

	logger := h.loggerFromContext(c)
	uploaded := 0
	for _, fh := range files {
		if !storage.IsPdfFilename(fh.Filename) {
			continue
		}
		if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
			continue
		}
		if err := h.scanUpload(fh); err != nil {
			logger.Info("bulk entry rejected by scanner",
				slog.String("filename", fh.Filename), slog.Any("error", err))
			continue
		}

		storedName := storage.TimestampedName(time.Now(), fh.Filename)
		if err := saveUpload(ctx, h.store, storage.FolderPdfs, storedName, fh); err != nil {
			logger.Error("bulk save failed",
				slog.String("filename", fh.Filename), slog.Any("error", err))
			continue
		}

		pdf := database.Pdf{
			Title:      storage.TitleFromFilename(fh.Filename),
			Filename:   storedName,
			CategoryID: categoryID,
		}
		if err := h.db.WithContext(ctx).Create(&pdf).Error; err != nil {
			logger.Error("bulk insert failed",
				slog.String("filename", fh.Filename), slog.Any("error", err))
			continue
		}
		uploaded++
	}

	if uploaded == 0 {
		BadRequest(c, "no valid pdf files")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uploaded": uploaded})
}

type updatePdfRequest struct {
	Title      string `json:"title"`
	CategoryID *uint  `json:"category_id"`
}

// UpdatePdf 更新标题与所属分类。
func (h *PdfHandler) UpdatePdf(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "pdf not found")
		return
	}

	var req updatePdfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var pdf database.Pdf
	if err := h.db.WithContext(ctx).First(&pdf, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "pdf not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if req.Title != "" {
		pdf.Title = req.Title
	}
	if req.CategoryID != nil && *req.CategoryID != 0 {
		var category database.PdfCategory
		if err := h.db.WithContext(ctx).First(&category, *req.CategoryID).Error; err != nil {
			BadRequest(c, "invalid category id")
			return
		}
		pdf.CategoryID = req.CategoryID
	} else if req.CategoryID != nil {
		pdf.CategoryID = nil
	}

	if err := h.db.WithContext(ctx).Save(&pdf).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"pdf": pdf})
}

// DeletePdf 删除数据库行并尽力删除对应文件。
func (h *PdfHandler) DeletePdf(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "pdf not found")
		return
	}

	ctx := c.Request.Context()
	var pdf database.Pdf
	if err := h.db.WithContext(ctx).First(&pdf, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "pdf not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Delete(&database.Pdf{}, id).Error; err != nil {
		Internal(c, "internal error")
		return
	}

	cleanupFiles(ctx, h.store, h.loggerFromContext(c), []fileRef{{storage.FolderPdfs, pdf.Filename}})
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// scanUpload 在配置了 CLAMD_ADDR 时对上传内容做病毒扫描。
func (h *PdfHandler) scanUpload(fh *multipart.FileHeader) error {
	if h.clamdAddr == "" {
		return nil
	}

	reader, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer reader.Close()

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamd.NewClamd(h.clamdAddr).ScanStream(reader, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("scanner verdict: %s", result.Status)
		}
	}
	return nil
}

func (h *PdfHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// bumpCounter 在数据库层原子自增计数列，避免读-改-写竞态。
func bumpCounter(ctx context.Context, db *gorm.DB, model any, id uint, column string) error {
	return db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}
