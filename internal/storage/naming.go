package storage

import (
	"path"
	"strings"
	"time"
	"unicode"
)

const timestampLayout = "20060102150405"

// SanitizeFilename 将原始文件名压缩为安全的基本名：
// 去掉路径部分，空白折叠为下划线，仅保留字母、数字、点、横线与下划线。
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", ".")
	}
	return cleaned
}

// TimestampedName 返回带时间戳前缀的唯一存储名（YYYYMMDDHHMMSS_原名）。
// 原名先经过 SanitizeFilename；同名并发上传也不会互相覆盖。
func TimestampedName(now time.Time, original string) string {
	return now.Format(timestampLayout) + "_" + SanitizeFilename(original)
}

// HasAllowedImageExt 判断文件名是否为允许的图片扩展名（大小写不敏感）。
func HasAllowedImageExt(name string) bool {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "jpg", "jpeg", "png", "gif", "webp":
		return true
	}
	return false
}

// IsPdfFilename 判断文件名是否为 PDF（大小写不敏感）。
func IsPdfFilename(name string) bool {
	return strings.EqualFold(path.Ext(name), ".pdf")
}

// TitleFromFilename 去掉扩展名，把文件名转为默认标题。
func TitleFromFilename(name string) string {
	base := SanitizeFilename(name)
	return strings.TrimSuffix(base, path.Ext(base))
}
