package controller

import (
	"net/url"

	"github.com/labstack/echo/v4"
)

// CookieCfgMiddleware injects a CookieCfg into the Echo context for each
// request. Prod/dev and the parent domain are derived from the app config.
func (ctrl *controller) CookieCfgMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		parent := ""
		if u, err := url.Parse(ctrl.model.Config.BaseURL); err == nil {
			parent = u.Hostname()
		}
		cfg := CookieCfg{
			IsProd:       ctrl.model.Config.Mode == "production",
			ShareSubdoms: false, // set true if you need cross-subdomain cookies
			ParentDomain: parent,
		}
		c.Set("cookiecfg", cfg)
		return next(c)
	}
}
