package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	flashCookieName = "account_flash"
	flashTTL        = time.Minute

	flashSuccess = "success"
	flashError   = "error"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

type flashClaims struct {
	Category string `json:"cat"`
	Message  string `json:"msg"`
	jwt.RegisteredClaims
}

// flashCodec stores notices in a signed cookie so they survive the redirect
// without server state.
type flashCodec struct {
	secret []byte
	secure bool
	now    func() time.Time
}

func newFlashCodec(secret string, secure bool) *flashCodec {
	return &flashCodec{secret: []byte(secret), secure: secure, now: time.Now}
}

func (f *flashCodec) set(c *gin.Context, category, message string) {
	now := f.now()
	claims := flashClaims{
		Category: category,
		Message:  message,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		requestLogger(c).Warnf("sign flash: %v", err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, signed, int(flashTTL/time.Second), "/", "", f.secure, true)
}

// consume returns the pending notice, if any, and deletes the cookie.
// Tampered or expired cookies are dropped silently.
func (f *flashCodec) consume(c *gin.Context) *Flash {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return nil
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, "", -1, "/", "", f.secure, true)

	var claims flashClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return f.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(f.now))
	if err != nil {
		requestLogger(c).Debugf("drop flash cookie: %v", err)
		return nil
	}
	return &Flash{Category: claims.Category, Message: claims.Message}
}
