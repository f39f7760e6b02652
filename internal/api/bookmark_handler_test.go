package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dalildocs/internal/auth"
	"dalildocs/internal/database"
)

func toggleBookmark(t *testing.T, h *BookmarkHandler, visitorID string, referenceID uint) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/bookmarks/1", nil)
	c, w := newTestContext(t, req, auth.Session{VisitorID: visitorID})
	setParam(c, "referenceID", referenceID)

	h.Toggle(c)

	var resp struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp.Status
}

func TestToggle_TwiceRestoresInitialState(t *testing.T) {
	db := newTestDB(t)
	h := NewBookmarkHandler(db)
	ref := seedReference(t, db, "Tafsir note")

	code, status := toggleBookmark(t, h, "visitor-1", ref.ID)
	if code != http.StatusOK || status != "added" {
		t.Fatalf("first toggle: code=%d status=%q", code, status)
	}
	var count int64
	db.Model(&database.Bookmark{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 bookmark got %d", count)
	}

	code, status = toggleBookmark(t, h, "visitor-1", ref.ID)
	if code != http.StatusOK || status != "removed" {
		t.Fatalf("second toggle: code=%d status=%q", code, status)
	}
	db.Model(&database.Bookmark{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected 0 bookmarks got %d", count)
	}
}

func TestToggle_ReaddAfterRemove(t *testing.T) {
	db := newTestDB(t)
	h := NewBookmarkHandler(db)
	ref := seedReference(t, db, "readded note")

	// 取消收藏必须真正释放 (user_id, reference_id) 唯一索引，
	// 否则第三次切换会撞 UNIQUE 约束
	want := []string{"added", "removed", "added"}
	for i, expected := range want {
		code, status := toggleBookmark(t, h, "visitor-1", ref.ID)
		if code != http.StatusOK || status != expected {
			t.Fatalf("toggle %d: code=%d status=%q want %q", i+1, code, status, expected)
		}
	}

	var count int64
	db.Model(&database.Bookmark{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 bookmark after re-add got %d", count)
	}
}

func TestToggle_UnknownReference(t *testing.T) {
	db := newTestDB(t)
	h := NewBookmarkHandler(db)

	code, _ := toggleBookmark(t, h, "visitor-1", 99)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", code)
	}
	var count int64
	db.Model(&database.Bookmark{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no bookmarks got %d", count)
	}
}

func TestList_OnlyOwnBookmarks(t *testing.T) {
	db := newTestDB(t)
	h := NewBookmarkHandler(db)
	first := seedReference(t, db, "first")
	second := seedReference(t, db, "second")

	if _, status := toggleBookmark(t, h, "visitor-a", first.ID); status != "added" {
		t.Fatalf("seed bookmark a: %q", status)
	}
	if _, status := toggleBookmark(t, h, "visitor-b", second.ID); status != "added" {
		t.Fatalf("seed bookmark b: %q", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "visitor-a"})

	h.List(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Bookmarks []struct {
			ReferenceID uint `json:"ReferenceID"`
			Reference   struct {
				Title string `json:"Title"`
			} `json:"Reference"`
		} `json:"bookmarks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Bookmarks) != 1 {
		t.Fatalf("expected 1 bookmark got %d", len(resp.Bookmarks))
	}
	if resp.Bookmarks[0].ReferenceID != first.ID {
		t.Fatalf("expected reference %d got %d", first.ID, resp.Bookmarks[0].ReferenceID)
	}
	if resp.Bookmarks[0].Reference.Title != "first" {
		t.Fatalf("expected preloaded reference, got %q", resp.Bookmarks[0].Reference.Title)
	}
}
