package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"account-portal/internal/session"
)

const (
	requestIDHeader = "X-Request-ID"

	ctxKeyLogger  = "logger"
	ctxKeySession = "session"
	// set when the session could not be loaded from the store
	ctxKeySessionErr = "session_err"
)

// logRequests tags every request with an id and logs it once it completes.
func logRequests(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		entry := logger.WithField("request_id", requestID)
		c.Set(ctxKeyLogger, entry)

		c.Next()

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			entry.WithFields(fields).Warn(c.Errors.String())
			return
		}
		entry.WithFields(fields).Info("request")
	}
}

func requestLogger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if l, ok := v.(logrus.FieldLogger); ok {
			return l
		}
	}
	return logrus.StandardLogger()
}

// loadSession resumes the session named by the cookie and stores the state
// in the gin context. Unknown or expired cookies are removed. A store
// failure leaves the cookie alone and is kept for the page to report.
func (h *Handler) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(h.cfg.CookieName)

		state, err := h.sessions.Resume(c.Request.Context(), token)
		if err != nil {
			c.Set(ctxKeySessionErr, err)
		} else if token != "" && !state.Authenticated() {
			h.clearSessionCookie(c)
		}

		c.Set(ctxKeySession, state)
		c.Next()
	}
}

// sessionError returns the error hit while loading the session, if any.
func sessionError(c *gin.Context) error {
	if v, ok := c.Get(ctxKeySessionErr); ok {
		if err, ok := v.(error); ok {
			return err
		}
	}
	return nil
}

func sessionState(c *gin.Context) *session.State {
	if v, ok := c.Get(ctxKeySession); ok {
		if s, ok := v.(*session.State); ok {
			return s
		}
	}
	return session.Anonymous()
}
