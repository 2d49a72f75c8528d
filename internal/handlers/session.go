package handlers

import (
	"crypto/sha256"
	"io"

	"srcapp/internal/middleware"
	contextutils "srcapp/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/hkdf"
)

// Session keys owned by the handlers
const (
	captchaSessionKey = "captcha_nonce"
	flashSuccessKey   = "flash_success"
	flashErrorKey     = "flash_error"
)

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Kind    string
	Message string
}

// GetUserIDFromSession retrieves the current user ID from the session.
// Returns (0, false) if not authenticated or if the stored value is invalid.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	return middleware.SessionUserID(sessions.Default(c))
}

// startSession stores the logged-in user, replacing whatever the session held
func startSession(c *gin.Context, userID int, username string) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.UserIDKey, userID)
	session.Set(middleware.UsernameKey, username)
	return session.Save()
}

// endSession forgets the user and any pending captcha or flashes
func endSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// addFlash queues a message for the next page. kind is "success" or "error".
func addFlash(c *gin.Context, kind, message string) {
	key := flashSuccessKey
	if kind == "error" {
		key = flashErrorKey
	}
	session := sessions.Default(c)
	session.AddFlash(message, key)
	_ = session.Save()
}

// popFlashes drains queued messages. Must run before the response body is written.
func popFlashes(c *gin.Context) []Flash {
	session := sessions.Default(c)
	var out []Flash
	for _, kind := range []string{"success", "error"} {
		key := flashSuccessKey
		if kind == "error" {
			key = flashErrorKey
		}
		for _, raw := range session.Flashes(key) {
			if msg, ok := raw.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		_ = session.Save()
	}
	return out
}

// storeCaptcha remembers the nonce of the challenge shown on the form
func storeCaptcha(c *gin.Context, nonce string) error {
	session := sessions.Default(c)
	session.Set(captchaSessionKey, nonce)
	return session.Save()
}

// takeCaptcha returns the stored nonce and clears it. "" means no challenge
// is outstanding. The nonce itself is redeemed against the CaptchaService,
// so replaying an old cookie does not revive it.
func takeCaptcha(c *gin.Context) string {
	session := sessions.Default(c)
	nonce, _ := session.Get(captchaSessionKey).(string)
	session.Delete(captchaSessionKey)
	_ = session.Save()
	return nonce
}

// newSessionStore builds a cookie store that signs and encrypts with keys
// derived from secret
func newSessionStore(secret string) (cookie.Store, error) {
	hashKey, err := deriveSessionKey(secret, "session-hash", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveSessionKey(secret, "session-block", 32)
	if err != nil {
		return nil, err
	}
	return cookie.NewStore(hashKey, blockKey), nil
}

func deriveSessionKey(secret, purpose string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose)), key); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to derive %s key", purpose)
	}
	return key, nil
}
