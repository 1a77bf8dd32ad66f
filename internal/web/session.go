package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCookie holds the token the conversion service expects.
const SessionCookie = "auth_token"

// cookieStore is a CredentialStore scoped to one request: it reads the
// session cookie and writes changes back to the response.
type cookieStore struct {
	c     *gin.Context
	token string
}

func newCookieStore(c *gin.Context) *cookieStore {
	token, _ := c.Cookie(SessionCookie)
	return &cookieStore{c: c, token: token}
}

func (s *cookieStore) Token() string { return s.token }

func (s *cookieStore) SetToken(token string) {
	s.token = token
	s.write(token, 0)
}

func (s *cookieStore) Clear() {
	s.token = ""
	s.write("", -1)
}

func (s *cookieStore) write(value string, maxAge int) {
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(SessionCookie, value, maxAge, "/", "", s.c.Request.TLS != nil, true)
}
