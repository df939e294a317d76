package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/parasocial/parasocial/model"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type appError struct {
	Code   string // stable, internal error code for ops/support
	Status int    // matching HTTP status
	Err    error  // original error (never handed to the client)
	Public string // safe text for users (optional)
}

func (e *appError) Error() string { return fmt.Sprintf("%s: %v", e.Code, e.Err) }
func (e *appError) Unwrap() error { return e.Err }

// Helpers for building the usual errors
func ErrNotFound(err error) *appError {
	return &appError{Code: "NOT_FOUND", Status: http.StatusNotFound, Err: err}
}
func ErrInvalid(err error, public string) *appError {
	return &appError{Code: "INVALID_INPUT", Status: http.StatusBadRequest, Err: err, Public: public}
}
func ErrForbidden(err error) *appError {
	return &appError{Code: "FORBIDDEN", Status: http.StatusForbidden, Err: err}
}
func ErrInternal(err error) *appError {
	return &appError{Code: "INTERNAL", Status: http.StatusInternalServerError, Err: err}
}

type controller struct {
	model *model.Store

	// uploadsRoot is the canonical absolute uploads directory, resolved
	// once at startup. Every served path must stay under it.
	uploadsRoot string
}

// NewController is the entry point.
func NewController(store *model.Store) error {
	// Prod: JSON, Info+; Dev: Text, Debug
	var logger *slog.Logger
	if store.Config.Mode == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	uploadsRoot, err := canonicalUploadsRoot(store.Config.Basedir)
	if err != nil {
		return fmt.Errorf("cannot prepare uploads directory: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.BodyLimit("30M"))
	e.Use(middleware.RequestID()) // adds X-Request-ID
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll:   false, // only log stack trace
		DisablePrintStack: true,
	}))

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()
			rid := res.Header().Get(echo.HeaderXRequestID)

			// Request-scoped logger, stored in the context
			reqLogger := slog.With(
				"request_id", rid,
			).WithGroup("http").With(
				"method", req.Method,
				"path", req.URL.Path,
				"remote_ip", c.RealIP(),
			)
			c.Set("logger", reqLogger)

			err := next(c)

			if shouldSkipAccessLog(c) {
				return err
			}
			latency := time.Since(start)

			attrs := []any{
				"status", res.Status,
				"latency_ms", float64(latency.Microseconds()) / 1000.0,
			}

			switch {
			case res.Status >= 500:
				reqLogger.Error("http_request", attrs...)
			case res.Status >= 400:
				reqLogger.Warn("http_request", attrs...)
			default:
				reqLogger.Info("http_request", attrs...)
			}
			return err
		}
	})

	// Central error handler: log everything internally, hand out only a
	// safe JSON payload.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		l, _ := c.Get("logger").(*slog.Logger)
		if l == nil {
			l = logger
		}

		var ae *appError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			// already one of ours
		case errors.As(err, &he):
			// 4xx messages may pass through; 5xx are masked
			public := ""
			if he.Code >= 400 && he.Code < 500 {
				public = fmt.Sprint(he.Message)
			}
			ae = &appError{
				Code:   httpStatusToCode(he.Code),
				Status: he.Code,
				Err:    fmt.Errorf("%v", he.Message),
				Public: public,
			}
		case errors.Is(err, echo.ErrNotFound):
			ae = ErrNotFound(err)
		case errors.Is(err, echo.ErrMethodNotAllowed):
			ae = &appError{Code: "METHOD_NOT_ALLOWED", Status: http.StatusMethodNotAllowed, Err: err}
		default:
			ae = ErrInternal(err)
		}

		attrs := []any{
			"status", ae.Status,
			"code", ae.Code,
			"error", ae.Err.Error(),
		}
		if ae.Status >= 500 {
			l.Error("handler_error", attrs...)
		} else {
			l.Warn("handler_error", attrs...)
		}

		if c.Response().Committed {
			return
		}
		_ = c.JSON(ae.Status, errorEnvelope(ae.Code, userMessage(ae)))
	}

	cookieStore := sessions.NewCookieStore([]byte(store.Config.CookieSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(cookieStore))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLength:    32,
		TokenLookup:    "header:X-CSRF-Token",
		CookieName:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: false, // the frontend reads it to echo it back
		CookieSameSite: http.SameSiteLaxMode,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			// Token-authenticated API and the public upload route carry
			// no session; login-type POSTs happen before a session exists.
			if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/uploads") {
				return true
			}
			if c.Request().Method == http.MethodPost {
				switch {
				case strings.HasPrefix(p, "/password-reset"),
					p == "/login",
					p == "/register":
					return true
				}
			}
			return false
		},
	}))

	ctrl := controller{model: store, uploadsRoot: uploadsRoot}
	e.Use(ctrl.CookieCfgMiddleware)

	e.GET("/", ctrl.root)
	e.POST("/login", ctrl.login)
	e.POST("/logout", ctrl.logout)
	e.POST("/register", ctrl.register)
	e.GET("/verify", ctrl.verifyEmail)
	e.POST("/password-reset", ctrl.handlePasswordResetRequest)
	e.POST("/password-reset/:token", ctrl.handlePasswordResetSubmit)

	ctrl.uploadsInit(e)
	ctrl.mediaInit(e)
	ctrl.exportInit(e)
	ctrl.adminInit(e)
	ctrl.apiInit(e)

	if err := e.Start(fmt.Sprintf(":%d", store.Config.Port)); err != nil {
		return fmt.Errorf("cannot start application %w", err)
	}
	return nil
}

// requestLogger returns the per-request logger, or the process default
// when the middleware has not run (handlers invoked directly in tests).
func requestLogger(c echo.Context) *slog.Logger {
	if l, ok := c.Get("logger").(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// canonicalUploadsRoot creates the uploads directory if needed and
// resolves it to its canonical form (symlinks included) once. The
// result is the immutable root for all path containment checks.
func canonicalUploadsRoot(basedir string) (string, error) {
	root := filepath.Join(basedir, "uploads")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return canon, nil
}

// errorEnvelope is the single JSON error shape the whole service emits:
//
//	{"success": false, "error": {"code": "...", "message": "..."}}
func errorEnvelope(code, message string) map[string]any {
	return map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

func userMessage(ae *appError) string {
	if ae.Public != "" {
		return ae.Public
	}
	switch ae.Code {
	case "INVALID_INPUT":
		return "The input is invalid. Please check and resubmit."
	case "NOT_FOUND":
		return "The requested resource was not found."
	case "FORBIDDEN":
		return "You are not allowed to access this resource."
	case "METHOD_NOT_ALLOWED":
		return "This HTTP method is not supported here."
	default:
		return "An error occurred. Please try again later."
	}
}

func httpStatusToCode(status int) string {
	switch status {
	case 400:
		return "INVALID_INPUT"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 405:
		return "METHOD_NOT_ALLOWED"
	default:
		if status >= 500 {
			return "INTERNAL"
		}
		return "ERROR"
	}
}

func shouldSkipAccessLog(c echo.Context) bool {
	p := c.Request().URL.Path
	if strings.HasPrefix(p, "/uploads/") {
		return true
	}
	switch p {
	case "/favicon.ico", "/robots.txt", "/metrics":
		return true
	}
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".svg", ".ico", ".webp":
		return true
	}
	m := c.Request().Method
	if m == http.MethodHead || m == http.MethodOptions {
		return true
	}
	return false
}
