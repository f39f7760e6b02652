package api

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dalildocs/internal/auth"
	"dalildocs/internal/database"
	"dalildocs/internal/storage"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store
}

func newTestSessions(t *testing.T) *auth.SessionService {
	t.Helper()
	sessions, err := auth.NewSessionService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new session service: %v", err)
	}
	return sessions
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// redis 客户端指向一个不可达地址：限流路径在 redis 故障时必须降级放行。
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
}

func newTestContext(t *testing.T, req *http.Request, session auth.Session) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("session", session)
	return c, w
}

func jsonRequest(t *testing.T, method, target, payload string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartUpload 构造包含若干文件字段与普通字段的 multipart 请求体。
func multipartUpload(t *testing.T, field string, filenames []string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range filenames {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("%PDF-1.4 test content")); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func setParam(c *gin.Context, key string, value any) {
	c.Params = append(c.Params, gin.Param{Key: key, Value: fmt.Sprint(value)})
}

func seedAdmin(t *testing.T, db *gorm.DB, username, password string, isMain bool) database.Admin {
	t.Helper()
	hashed, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	admin := database.Admin{Username: username, PasswordHash: hashed, IsMain: isMain}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return admin
}

func seedReference(t *testing.T, db *gorm.DB, title string) database.Reference {
	t.Helper()
	topic := database.ReferenceTopic{Name: "topic for " + title}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatalf("seed topic: %v", err)
	}
	ref := database.Reference{TopicID: topic.ID, Title: title, Content: "content of " + title}
	if err := db.Create(&ref).Error; err != nil {
		t.Fatalf("seed reference: %v", err)
	}
	return ref
}
