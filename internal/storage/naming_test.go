package storage

import (
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"my report.pdf", "my_report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\boot.ini", "boot.ini"},
		{"a/b/c.pdf", "c.pdf"},
		{"weird<>:\"|?*.pdf", "weird.pdf"},
		{"...", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTimestampedName(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)
	got := TimestampedName(now, "doc one.pdf")
	want := "20240315093045_doc_one.pdf"
	if got != want {
		t.Errorf("TimestampedName = %q, want %q", got, want)
	}
}

func TestHasAllowedImageExt(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.GIF", "e.webp"} {
		if !HasAllowedImageExt(name) {
			t.Errorf("expected %q to be an allowed image", name)
		}
	}
	for _, name := range []string{"a.pdf", "b.svg", "c.exe", "noext"} {
		if HasAllowedImageExt(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestIsPdfFilename(t *testing.T) {
	if !IsPdfFilename("a.pdf") || !IsPdfFilename("b.PDF") {
		t.Error("pdf extensions must be accepted case-insensitively")
	}
	if IsPdfFilename("a.pdf.txt") || IsPdfFilename("a") {
		t.Error("non-pdf filenames must be rejected")
	}
}

func TestTitleFromFilename(t *testing.T) {
	if got := TitleFromFilename("doc1.pdf"); got != "doc1" {
		t.Errorf("TitleFromFilename(doc1.pdf) = %q, want doc1", got)
	}
	if got := TitleFromFilename("my notes.PDF"); got != "my_notes" {
		t.Errorf("TitleFromFilename = %q, want my_notes", got)
	}
}
