package controller

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// CookieCfg controls how the session cookie is scoped and secured.
// NOTE: Options are applied centrally by SessionWriter.Save() via
// applySessionOptionsFromPersist. Handlers only set the "persist" flag
// (remember me) where needed.
type CookieCfg struct {
	IsProd       bool
	ShareSubdoms bool
	ParentDomain string
}

// cookieOptions builds secure cookie options based on environment.
func cookieOptions(maxAge int, cfg CookieCfg) *sessions.Options {
	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.IsProd {
		opts.Secure = true
		if cfg.ShareSubdoms && cfg.ParentDomain != "" {
			opts.Domain = "." + cfg.ParentDomain
		}
	} else {
		opts.Secure = false
	}
	return opts
}

// authMiddleware ensures a user is authenticated before accessing protected
// routes. It reads uid from the session; on failure it responds 401.
func (ctrl *controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sw, err := LoadSession(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("cannot load session: %w", err))
		}

		// IMPORTANT: type assertions must match what is stored (uint).
		var ok bool
		var uid uint
		if v, exists := sw.Values()["uid"]; exists {
			uid, ok = v.(uint)
		}
		if !ok || uid == 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		c.Set("uid", uid)
		c.Set("ownerid", uid)

		// Simple admin flag: the first account administrates the instance.
		if uid == 1 {
			c.Set("is_admin", true)
		}
		return next(c)
	}
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Remember bool   `json:"remember" form:"remember"`
}

// login authenticates and opens the session. On success it stores uid and
// the "persist" flag; SessionWriter.Save() applies the cookie options.
func (ctrl *controller) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return ErrInvalid(err, "invalid login payload")
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	// Authenticate (do not leak whether the user exists).
	user, err := ctrl.model.AuthenticateUser(email, req.Password)
	if err != nil || user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "login failed")
	}

	if !user.Verified {
		return echo.NewHTTPError(http.StatusForbidden, "please confirm your email first")
	}

	sw, err := LoadSession(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	sw.Values()["uid"] = user.ID
	sw.Values()["persist"] = req.Remember // controls remember-me behavior

	if err := sw.Save(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	_ = ctrl.model.TouchLastLogin(user) // best-effort
	return c.JSON(http.StatusOK, map[string]any{
		"id":           user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
		"actor_uri":    ctrl.model.ActorURI(user),
	})
}

// logout clears the session and deletes the cookie.
// We bypass SessionWriter here to force MaxAge = -1 (cookie deletion)
// regardless of "persist".
func (ctrl *controller) logout(c echo.Context) error {
	sess, err := session.Get("session", c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	delete(sess.Values, "uid")
	delete(sess.Values, "persist")

	// Force-delete the cookie for all browsers (including Safari).
	if sess.Options == nil {
		sess.Options = &sessions.Options{Path: "/"}
	}
	sess.Options.MaxAge = -1

	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// generateRandomToken returns a URL-safe, base64 token and its sha256 hash.
// Use it for verification/signup tokens or password reset tokens.
func generateRandomToken() (token string, hash []byte, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", nil, err
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	return token, h[:], nil
}

// constantTimeMatchToken safely compares a provided plaintext token to a stored hash.
func constantTimeMatchToken(providedToken string, storedHash []byte) bool {
	sum := sha256.Sum256([]byte(providedToken))
	return len(storedHash) == len(sum[:]) && hmac.Equal(storedHash, sum[:])
}

type registerRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// register starts an enumeration-safe signup. If the email exists, a
// sign-in hint is mailed; otherwise a pending signup token is created.
// The response is the same in both cases.
func (ctrl *controller) register(c echo.Context) error {
	if !ctrl.model.Config.RegistrationAllowed {
		return echo.NewHTTPError(http.StatusForbidden, "registration is disabled")
	}

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return ErrInvalid(err, "invalid registration payload")
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	neutral := func() error {
		return c.JSON(http.StatusAccepted, map[string]any{
			"message": "If we can create or locate an account for that email, we have sent you an email with next steps.",
		})
	}

	existingUser, err := ctrl.model.GetUserByEMail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return neutral()
	}
	if existingUser != nil {
		body := "Someone tried to sign up with your email. If this was you, sign in or reset your password."
		_ = ctrl.sendEmail(email, "Sign in to ParaSocial", body)
		return neutral()
	}

	signupToken, _, err := generateRandomToken()
	if err != nil {
		return neutral()
	}
	if _, err := ctrl.model.CreateSignupToken(email, req.Username, req.Password, 30*time.Minute, signupToken); err != nil {
		return neutral()
	}

	verifyURL := fmt.Sprintf("%s/verify?token=%s",
		strings.TrimRight(ctrl.model.Config.BaseURL, "/"), url.QueryEscape(signupToken))

	body := fmt.Sprintf(
		"Please confirm your email for ParaSocial:\n\n%s\n\nThe link is valid for 30 minutes. If you did not request this, you can ignore this message.",
		verifyURL,
	)
	_ = ctrl.sendEmail(email, "Confirm your email", body)

	return neutral()
}

// verifyEmail consumes the email verification token. The account is
// created (or marked verified) with the password chosen at registration;
// the user signs in afterwards.
func (ctrl *controller) verifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired link")
	}

	u, err := ctrl.model.ConsumeSignupToken(token)
	if err != nil || u == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired link")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":  "Email confirmed. You can sign in now.",
		"username": u.Username,
	})
}

// handlePasswordResetRequest handles the reset request in an
// enumeration-safe way: the response never reveals whether the account
// exists.
func (ctrl *controller) handlePasswordResetRequest(c echo.Context) error {
	logger := requestLogger(c)
	email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))

	genericResponse := func() error {
		return c.JSON(http.StatusAccepted, map[string]any{
			"message": "If an account exists, we have sent you an email.",
		})
	}

	user, err := ctrl.model.GetUserByEMail(email)
	if err != nil || user == nil {
		return genericResponse()
	}

	// Generate token + store hash+expiry
	token, tokenHash, err := generateRandomToken()
	if err != nil {
		logger.Error("cannot generate reset token", "error", err)
		return genericResponse()
	}

	user.PasswordResetToken = tokenHash
	user.PasswordResetExpiry = time.Now().UTC().Add(1 * time.Hour)
	if err := ctrl.model.UpdateUser(user); err != nil {
		logger.Error("cannot store reset token", "error", err)
		return genericResponse()
	}

	resetURL := fmt.Sprintf("%s/password-reset/%s",
		strings.TrimRight(ctrl.model.Config.BaseURL, "/"), url.PathEscape(token))

	body := fmt.Sprintf(
		"Click the link to reset your password:\n\n%s\n\nThe link is valid for 60 minutes.",
		resetURL,
	)
	_ = ctrl.sendEmail(email, "Reset your password", body)

	return genericResponse()
}

// handlePasswordResetSubmit sets the new password and clears the token.
// Always responds neutrally on failure to avoid leaks.
func (ctrl *controller) handlePasswordResetSubmit(c echo.Context) error {
	token := c.Param("token")
	pass := c.FormValue("new_password")
	confirm := c.FormValue("confirm_password")
	logger := requestLogger(c)

	if pass == "" || pass != confirm {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	user, err := ctrl.model.GetUserByResetToken(token)
	if err != nil || user == nil || user.PasswordResetExpiry.Before(time.Now().UTC()) ||
		!constantTimeMatchToken(token, user.PasswordResetToken) {
		return echo.NewHTTPError(http.StatusBadRequest, "the link is invalid or has expired")
	}

	if err := ctrl.model.SetPassword(user, pass); err != nil {
		logger.Error("cannot set password", "error", err)
		return ErrInternal(err)
	}
	// UpdateUser is what actually persists the new hash, so its failure
	// must not be reported as success.
	user.PasswordResetToken = nil
	user.PasswordResetExpiry = time.Time{}
	if err := ctrl.model.UpdateUser(user); err != nil {
		logger.Error("cannot save new password", "error", err)
		return ErrInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Your password has been updated. You can sign in now.",
	})
}
