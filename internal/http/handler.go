package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-portal/internal/metrics"
	"account-portal/internal/service"
	"account-portal/internal/session"
)

// Notices shown to the browser.
const (
	msgRegistered      = "Registration successful. Please log in."
	msgMissingFields   = "Please fill in all required fields."
	msgFieldTooLong    = "One or more fields are too long."
	msgDuplicateEmail  = "Email is already registered. Please log in or use another email."
	msgInvalidLogin    = "Invalid email or password."
	msgLoginRequired   = "Please log in first."
	msgLoggedOut       = "You have been logged out."
	msgSomethingWrong  = "Something went wrong, please try again."
	msgWelcomeTemplate = "Welcome, %s!"
)

type Config struct {
	CookieName   string
	SecureCookie bool
	// Secret signs the flash cookie.
	Secret string
}

// Handler wires HTTP routes to the account and session services.
type Handler struct {
	accounts service.AccountService
	sessions *session.Manager
	cfg      Config
	flash    *flashCodec
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
}

func NewHandler(accounts service.AccountService, sessions *session.Manager, cfg Config, logger logrus.FieldLogger, m *metrics.Metrics) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "account_session"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		accounts: accounts,
		sessions: sessions,
		cfg:      cfg,
		flash:    newFlashCodec(cfg.Secret, cfg.SecureCookie),
		logger:   logger,
		metrics:  m,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	pages := router.Group("/", h.loadSession())
	{
		pages.GET("/", h.index)
		pages.POST("/register", h.register)
		pages.POST("/login", h.login)
		pages.GET("/home", h.home)
		pages.GET("/logout", h.logout)
	}
}

func (h *Handler) index(c *gin.Context) {
	if err := sessionError(c); err != nil {
		h.logFailure(c, "resume session", err)
		h.flash.consume(c)
		c.HTML(http.StatusOK, "index.tmpl", gin.H{
			"Flash": &Flash{Category: flashError, Message: msgSomethingWrong},
		})
		return
	}
	if sessionState(c).Authenticated() {
		c.Redirect(http.StatusFound, "/home")
		return
	}
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"Flash": h.flash.consume(c),
	})
}

func (h *Handler) register(c *gin.Context) {
	_, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		Phone:    c.PostForm("phone"),
		Password: c.PostForm("password"),
	})

	var verr *service.ValidationError
	switch {
	case err == nil:
		h.flash.set(c, flashSuccess, msgRegistered)
	case errors.As(err, &verr) && verr.Reason == service.ReasonTooLong:
		h.flash.set(c, flashError, msgFieldTooLong)
	case errors.Is(err, service.ErrValidation):
		h.flash.set(c, flashError, msgMissingFields)
	case errors.Is(err, service.ErrDuplicateEmail):
		h.flash.set(c, flashError, msgDuplicateEmail)
	default:
		h.fail(c, "register", err)
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) login(c *gin.Context) {
	grant, err := h.accounts.Login(c.Request.Context(), c.PostForm("login_email"), c.PostForm("login_password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.flash.set(c, flashError, msgInvalidLogin)
		} else {
			h.fail(c, "login", err)
		}
		c.Redirect(http.StatusFound, "/")
		return
	}

	token, err := h.sessions.Establish(c.Request.Context(), sessionState(c), *grant, session.ClientInfo{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		h.fail(c, "establish session", err)
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.setSessionCookie(c, token)

	h.flash.set(c, flashSuccess, fmt.Sprintf(msgWelcomeTemplate, grant.Username))
	c.Redirect(http.StatusFound, "/home")
}

func (h *Handler) home(c *gin.Context) {
	if err := sessionError(c); err != nil {
		h.fail(c, "resume session", err)
		c.Redirect(http.StatusFound, "/")
		return
	}
	identity, err := sessionState(c).RequireAuthenticated()
	if err != nil {
		h.flash.set(c, flashError, msgLoginRequired)
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "home.tmpl", gin.H{
		"Username": identity.Username,
		"Flash":    h.flash.consume(c),
	})
}

func (h *Handler) logout(c *gin.Context) {
	state := sessionState(c)
	wasAuthenticated := state.Authenticated()
	if err := h.sessions.Clear(c.Request.Context(), state); err != nil {
		requestLogger(c).WithError(err).Warn("clear session")
	}
	if wasAuthenticated {
		h.metrics.ObserveLogout()
	}
	h.clearSessionCookie(c)

	h.flash.set(c, flashSuccess, msgLoggedOut)
	c.Redirect(http.StatusFound, "/")
}

// fail logs an unexpected error and queues the generic notice.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.logFailure(c, op, err)
	h.flash.set(c, flashError, msgSomethingWrong)
}

func (h *Handler) logFailure(c *gin.Context, op string, err error) {
	_ = c.Error(err)
	requestLogger(c).WithError(err).Errorf("%s failed", op)
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, token, int(h.sessions.TTL().Seconds()), "/", "", h.cfg.SecureCookie, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, "", -1, "/", "", h.cfg.SecureCookie, true)
}
