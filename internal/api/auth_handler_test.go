package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dalildocs/internal/auth"
	"dalildocs/internal/config"
	"dalildocs/internal/database"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *auth.SessionService) {
	t.Helper()
	db := newTestDB(t)
	sessions := newTestSessions(t)
	login := config.LoginConfig{RateLimitPerHour: 10, LockThreshold: 5, LockTTLMinutes: 15}
	return NewAuthHandler(db, sessions, newTestRedis(t), testLogger(), login), sessions
}

func sessionFromResponse(t *testing.T, w *httptest.ResponseRecorder, sessions *auth.SessionService) auth.Session {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name != "session" {
			continue
		}
		session, err := sessions.Parse(cookie.Value)
		if err != nil {
			t.Fatalf("parse session cookie: %v", err)
		}
		return session
	}
	t.Fatalf("no session cookie in response")
	return auth.Session{}
}

func TestLogin_AttachesAdminToVisitorSession(t *testing.T) {
	h, sessions := newAuthHandler(t)
	admin := seedAdmin(t, h.db, "librarian", "secret123", false)

	req := jsonRequest(t, http.MethodPost, "/admin/login",
		`{"username": "librarian", "password": "secret123"}`)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "visitor-42"})

	h.Login(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	session := sessionFromResponse(t, w, sessions)
	if session.AdminID != admin.ID {
		t.Fatalf("expected admin %d got %d", admin.ID, session.AdminID)
	}
	if session.VisitorID != "visitor-42" {
		t.Fatalf("visitor identity must survive login, got %q", session.VisitorID)
	}
	if session.ManageAdminsVerified {
		t.Fatalf("login must not carry the roster verification flag")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _ := newAuthHandler(t)
	seedAdmin(t, h.db, "librarian", "secret123", false)

	req := jsonRequest(t, http.MethodPost, "/admin/login",
		`{"username": "librarian", "password": "wrong"}`)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1"})

	h.Login(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestLogin_UnknownUsername(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := jsonRequest(t, http.MethodPost, "/admin/login",
		`{"username": "nobody", "password": "whatever"}`)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1"})

	h.Login(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestLogout_KeepsVisitorIdentity(t *testing.T) {
	h, sessions := newAuthHandler(t)

	req := jsonRequest(t, http.MethodPost, "/admin/logout", `{}`)
	c, w := newTestContext(t, req, auth.Session{
		VisitorID:            "visitor-7",
		AdminID:              3,
		AdminUsername:        "librarian",
		ManageAdminsVerified: true,
	})

	h.Logout(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	session := sessionFromResponse(t, w, sessions)
	if session.IsAdmin() {
		t.Fatalf("logout must clear the admin identity")
	}
	if session.ManageAdminsVerified {
		t.Fatalf("logout must clear the roster verification flag")
	}
	if session.VisitorID != "visitor-7" {
		t.Fatalf("visitor identity must survive logout, got %q", session.VisitorID)
	}
}

func TestChangePassword_RejectsWrongCurrent(t *testing.T) {
	h, _ := newAuthHandler(t)
	admin := seedAdmin(t, h.db, "librarian", "secret123", false)

	req := jsonRequest(t, http.MethodPost, "/admin/change-password",
		`{"current_password": "wrong", "new_password": "newpass1", "confirm_password": "newpass1"}`)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: admin.ID})

	h.ChangePassword(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestChangePassword_UpdatesHash(t *testing.T) {
	h, _ := newAuthHandler(t)
	admin := seedAdmin(t, h.db, "librarian", "secret123", false)

	req := jsonRequest(t, http.MethodPost, "/admin/change-password",
		`{"current_password": "secret123", "new_password": "newpass1", "confirm_password": "newpass1"}`)
	c, w := newTestContext(t, req, auth.Session{VisitorID: "v1", AdminID: admin.ID})

	h.ChangePassword(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var stored database.Admin
	if err := h.db.First(&stored, admin.ID).Error; err != nil {
		t.Fatalf("reload admin: %v", err)
	}
	if !auth.CheckPasswordHash("newpass1", stored.PasswordHash) {
		t.Fatalf("new password must verify against the stored hash")
	}
	if auth.CheckPasswordHash("secret123", stored.PasswordHash) {
		t.Fatalf("old password must stop working")
	}
}
