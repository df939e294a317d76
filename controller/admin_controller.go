package controller

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parasocial/parasocial/model"
)

// adminInit wires the /admin routes.
func (ctrl *controller) adminInit(e *echo.Echo) {
	g := e.Group("/admin", ctrl.authMiddleware, ctrl.adminMiddleware)

	// Users list with optional search & pagination.
	g.GET("/users", ctrl.adminUsersList)
	g.POST("/maintenance", ctrl.adminRunMaintenance)
}

// adminMiddleware ensures only privileged users can access /admin.
func (ctrl *controller) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if b, ok := c.Get("is_admin").(bool); ok && b {
			return next(c)
		}
		return echo.NewHTTPError(http.StatusForbidden, "Not found")
	}
}

type adminUserRow struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name,omitempty"`
	Verified    bool       `json:"verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// adminUsersList returns a searchable, paginated list of users.
func (ctrl *controller) adminUsersList(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))

	// Pagination params
	const defaultPerPage = 20
	const maxPerPage = 100

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.QueryParam("per"))
	if perPage <= 0 || perPage > maxPerPage {
		perPage = defaultPerPage
	}
	offset := (page - 1) * perPage

	users, total, err := ctrl.model.ListUsers(q, offset, perPage)
	if err != nil {
		return err
	}

	rows := make([]adminUserRow, len(users))
	for i, u := range users {
		rows[i] = adminUserRow{
			ID:          u.ID,
			Email:       u.Email,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Verified:    u.Verified,
			LastLoginAt: u.LastLoginAt,
			CreatedAt:   u.CreatedAt,
		}
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return c.JSON(http.StatusOK, map[string]any{
		"q":           q,
		"users":       rows,
		"page":        page,
		"per":         perPage,
		"total":       total,
		"total_pages": totalPages,
	})
}

// adminRunMaintenance triggers the cleanup pass on demand. The same job
// runs from the CLI via -maintenance.
func (ctrl *controller) adminRunMaintenance(c echo.Context) error {
	if err := model.RunMaintenance(c.Request().Context(), ctrl.model); err != nil {
		return ErrInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}
