package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session 表示一次浏览器会话携带的全部状态：
// 匿名访客身份、可选的管理员身份，以及管理员名册页的二次验证标记。
type Session struct {
	VisitorID            string
	AdminID              uint
	AdminUsername        string
	ManageAdminsVerified bool
}

// IsAdmin 返回会话是否携带已登录的管理员身份。
func (s Session) IsAdmin() bool {
	return s.AdminID != 0
}

// WithAdmin 返回登录了指定管理员的会话副本。
func (s Session) WithAdmin(adminID uint, username string) Session {
	s.AdminID = adminID
	s.AdminUsername = username
	s.ManageAdminsVerified = false
	return s
}

// WithoutAdmin 返回清除管理员身份与验证标记后的会话副本。
// 访客身份保留，收藏不因登出丢失。
func (s Session) WithoutAdmin() Session {
	s.AdminID = 0
	s.AdminUsername = ""
	s.ManageAdminsVerified = false
	return s
}

// WithManageAdminsVerified 返回打上二次验证标记的会话副本。
func (s Session) WithManageAdminsVerified() Session {
	s.ManageAdminsVerified = true
	return s
}

type sessionClaims struct {
	VisitorID            string `json:"visitor_id"`
	AdminID              uint   `json:"admin_id,omitempty"`
	AdminUsername        string `json:"admin_username,omitempty"`
	ManageAdminsVerified bool   `json:"manage_admins_verified,omitempty"`
	jwt.RegisteredClaims
}

// SessionService 将会话状态编码为 HMAC 签名的 JWT，存放在客户端 Cookie 中。
type SessionService struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionService 构造会话服务。
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &SessionService{secret: []byte(secret), ttl: ttl}, nil
}

// NewVisitor 创建仅携带新访客身份的会话。
func (s *SessionService) NewVisitor() Session {
	return Session{VisitorID: uuid.NewString()}
}

// Issue 签发会话令牌。
func (s *SessionService) Issue(session Session) (string, error) {
	if session.VisitorID == "" {
		return "", errors.New("session visitor id is required")
	}

	now := time.Now()
	claims := sessionClaims{
		VisitorID:            session.VisitorID,
		AdminID:              session.AdminID,
		AdminUsername:        session.AdminUsername,
		ManageAdminsVerified: session.ManageAdminsVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse 校验令牌并还原会话状态。
func (s *SessionService) Parse(tokenString string) (Session, error) {
	if tokenString == "" {
		return Session{}, errors.New("session token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return Session{}, errors.New("invalid session claims")
	}
	if claims.VisitorID == "" {
		return Session{}, errors.New("session missing visitor id")
	}

	return Session{
		VisitorID:            claims.VisitorID,
		AdminID:              claims.AdminID,
		AdminUsername:        claims.AdminUsername,
		ManageAdminsVerified: claims.ManageAdminsVerified,
	}, nil
}

// TTL 暴露会话有效期。
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}
