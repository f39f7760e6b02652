package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dalildocs/internal/auth"
)

// SessionCookieName 会话 Cookie 名称。
const SessionCookieName = "session"

const sessionKey = "session"

// SessionMiddleware 解析会话 Cookie，将会话状态注入请求上下文。
// 没有会话（或令牌无效）的请求会分配一个新的匿名访客身份并下发 Cookie。
func SessionMiddleware(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var session auth.Session

		if token, err := c.Cookie(SessionCookieName); err == nil && token != "" {
			if parsed, err := sessions.Parse(token); err == nil {
				session = parsed
			}
		}

		if session.VisitorID == "" {
			session = sessions.NewVisitor()
			if err := WriteSessionCookie(c, sessions, session); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequireAdmin 拒绝未携带管理员身份的请求。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFromContext(c)
		if !session.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// SessionFromContext 返回上下文中的会话状态。
func SessionFromContext(c *gin.Context) auth.Session {
	if value, ok := c.Get(sessionKey); ok {
		if session, ok := value.(auth.Session); ok {
			return session
		}
	}
	return auth.Session{}
}

// WriteSessionCookie 重新签发会话 Cookie 并同步更新上下文。
// 登录、登出与二次验证都通过它落盘新的会话状态。
func WriteSessionCookie(c *gin.Context, sessions *auth.SessionService, session auth.Session) error {
	token, err := sessions.Issue(session)
	if err != nil {
		return err
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		MaxAge:   int(sessions.TTL().Seconds()),
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.Set(sessionKey, session)
	return nil
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
