package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dalildocs/internal/auth"
	"dalildocs/internal/database"
	"dalildocs/internal/storage"
)

func newPdfHandler(t *testing.T) (*PdfHandler, *storage.LocalStore) {
	t.Helper()
	db := newTestDB(t)
	store := newTestStore(t)
	return NewPdfHandler(db, store, testLogger(), 10<<20, ""), store
}

func TestPdfDetail_IncrementsViewCount(t *testing.T) {
	h, _ := newPdfHandler(t)

	pdf := database.Pdf{Title: "Algebra Basics", Filename: "algebra.pdf"}
	if err := h.db.Create(&pdf).Error; err != nil {
		t.Fatalf("seed pdf: %v", err)
	}

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/pdfs/1", nil)
		c, w := newTestContext(t, req, auth.Session{VisitorID: "v1"})
		setParam(c, "id", pdf.ID)

		h.PdfDetail(c)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
		}
	}

	var stored database.Pdf
	if err := h.db.First(&stored, pdf.ID).Error; err != nil {
		t.Fatalf("reload pdf: %v", err)
	}
	if stored.ViewCount != 3 {
		t.Fatalf("expected view_count 3 got %d", stored.ViewCount)
	}
}

func TestDownload_StreamsFileAndCountsDownload(t *testing.T) {
	h, store := newPdfHandler(t)

	content := "%PDF-1.4 downloadable"
	if err := store.Save(context.Background(), storage.FolderPdfs, "stored.pdf",
		strings.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
		t.Fatalf("save file: %v", err)
	}
	pdf := database.Pdf{Title: "Geometry", Filename: "stored.pdf"}
	if err := h.db.Create(&pdf).Error; err != nil {
		t.Fatalf("seed pdf: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/pdfs/1/download", nil)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1"})
	setParam(c, "id", pdf.ID)

	h.Download(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, `"Geometry.pdf"`) {
		t.Fatalf("unexpected disposition %q", got)
	}
	if w.Body.String() != content {
		t.Fatalf("unexpected body %q", w.Body.String())
	}

	var stored database.Pdf
	if err := h.db.First(&stored, pdf.ID).Error; err != nil {
		t.Fatalf("reload pdf: %v", err)
	}
	if stored.DownloadCount != 1 {
		t.Fatalf("expected download_count 1 got %d", stored.DownloadCount)
	}
}

func TestCreatePdf_TitleDefaultsToFilename(t *testing.T) {
	h, _ := newPdfHandler(t)

	body, contentType := multipartUpload(t, "pdf_file", []string{"doc1.pdf"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/pdfs", body)
	req.Header.Set("Content-Type", contentType)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: 1})

	h.CreatePdf(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var stored database.Pdf
	if err := h.db.First(&stored).Error; err != nil {
		t.Fatalf("load pdf: %v", err)
	}
	if stored.Title != "doc1" {
		t.Fatalf("expected title doc1 got %q", stored.Title)
	}
	if stored.CategoryID != nil {
		t.Fatalf("expected uncategorized pdf, got category %d", *stored.CategoryID)
	}
	if !strings.HasSuffix(stored.Filename, "_doc1.pdf") {
		t.Fatalf("expected timestamped filename got %q", stored.Filename)
	}
}

func TestCreatePdf_RejectsNonPdf(t *testing.T) {
	h, _ := newPdfHandler(t)

	body, contentType := multipartUpload(t, "pdf_file", []string{"notes.txt"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/pdfs", body)
	req.Header.Set("Content-Type", contentType)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: 1})

	h.CreatePdf(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestBulkUpload_SkipsNonPdfEntries(t *testing.T) {
	h, _ := newPdfHandler(t)

	body, contentType := multipartUpload(t, "files", []string{"a.pdf", "b.txt", "c.pdf"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/pdfs/bulk", body)
	req.Header.Set("Content-Type", contentType)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: 1})

	h.BulkUpload(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Uploaded int `json:"uploaded"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Uploaded != 2 {
		t.Fatalf("expected 2 uploads got %d", resp.Uploaded)
	}

	var count int64
	h.db.Model(&database.Pdf{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 rows got %d", count)
	}
}

func TestBulkUpload_AllInvalidRejected(t *testing.T) {
	h, _ := newPdfHandler(t)

	body, contentType := multipartUpload(t, "files", []string{"a.txt", "b.png"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/pdfs/bulk", body)
	req.Header.Set("Content-Type", contentType)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: 1})

	h.BulkUpload(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDeleteCategory_CascadesPdfsAndFiles(t *testing.T) {
	h, store := newPdfHandler(t)
	ctx := context.Background()

	category := database.PdfCategory{Name: "Physics"}
	if err := h.db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	for _, name := range []string{"one.pdf", "two.pdf"} {
		if err := store.Save(ctx, storage.FolderPdfs, name,
			strings.NewReader("x"), 1, "application/pdf"); err != nil {
			t.Fatalf("save file: %v", err)
		}
		pdf := database.Pdf{Title: name, Filename: name, CategoryID: &category.ID}
		if err := h.db.Create(&pdf).Error; err != nil {
			t.Fatalf("seed pdf: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/admin/categories/1", nil)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: 1})
	setParam(c, "id", category.ID)

	h.DeleteCategory(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		DeletedPdfs int `json:"deleted_pdfs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DeletedPdfs != 2 {
		t.Fatalf("expected 2 deleted pdfs got %d", resp.DeletedPdfs)
	}

	var pdfCount, categoryCount int64
	h.db.Model(&database.Pdf{}).Count(&pdfCount)
	h.db.Model(&database.PdfCategory{}).Count(&categoryCount)
	if pdfCount != 0 || categoryCount != 0 {
		t.Fatalf("expected empty tables got pdfs=%d categories=%d", pdfCount, categoryCount)
	}

	for _, name := range []string{"one.pdf", "two.pdf"} {
		if _, err := store.Open(ctx, storage.FolderPdfs, name); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected %s removed, got err=%v", name, err)
		}
	}
}

func TestUpdatePdf_MoveAndClearCategory(t *testing.T) {
	h, _ := newPdfHandler(t)

	category := database.PdfCategory{Name: "Chemistry"}
	if err := h.db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	pdf := database.Pdf{Title: "Atoms", Filename: "atoms.pdf"}
	if err := h.db.Create(&pdf).Error; err != nil {
		t.Fatalf("seed pdf: %v", err)
	}

	// 移入分类
	req := jsonRequest(t, http.MethodPut, "/admin/pdfs/1", `{"category_id": 1}`)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: 1})
	setParam(c, "id", pdf.ID)
	h.UpdatePdf(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var stored database.Pdf
	if err := h.db.First(&stored, pdf.ID).Error; err != nil {
		t.Fatalf("reload pdf: %v", err)
	}
	if stored.CategoryID == nil || *stored.CategoryID != category.ID {
		t.Fatalf("expected category %d got %v", category.ID, stored.CategoryID)
	}

	// category_id=0 清空分类
	req = jsonRequest(t, http.MethodPut, "/admin/pdfs/1", `{"category_id": 0}`)
	c, w = newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: 1})
	setParam(c, "id", pdf.ID)
	h.UpdatePdf(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	if err := h.db.First(&stored, pdf.ID).Error; err != nil {
		t.Fatalf("reload pdf: %v", err)
	}
	if stored.CategoryID != nil {
		t.Fatalf("expected uncategorized got %v", *stored.CategoryID)
	}
}
