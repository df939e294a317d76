package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xeonx/timeago"
)

// root answers GET /. Anonymous callers get service info for frontend
// discovery; a signed-in session additionally gets the recent account
// activity for the dashboard view.
func (ctrl *controller) root(c echo.Context) error {
	info := map[string]any{
		"service":              "parasocial",
		"base_url":             ctrl.model.Config.BaseURL,
		"registration_allowed": ctrl.model.Config.RegistrationAllowed,
	}

	sw, err := LoadSession(c)
	if err != nil {
		return c.JSON(http.StatusOK, info)
	}
	uid, ok := sw.Values()["uid"].(uint)
	if !ok || uid == 0 {
		return c.JSON(http.StatusOK, info)
	}

	u, err := ctrl.model.GetUserByID(uid)
	if err != nil {
		return c.JSON(http.StatusOK, info)
	}

	hyd, err := ctrl.model.LoadActivity(uid, 20)
	if err != nil {
		return ErrInternal(err)
	}

	type activityRow struct {
		Type string `json:"type"`
		Ago  string `json:"ago"`
		Text string `json:"text"`
	}
	var recent []activityRow
	for _, h := range hyd.Heads {
		row := activityRow{Type: h.ItemType, Ago: timeago.English.Format(h.CreatedAt)}
		switch h.ItemType {
		case "post":
			if p, ok := hyd.Posts[h.ItemID]; ok {
				row.Text = truncate(p.Body, 80)
			}
		case "follow":
			if f, ok := hyd.Follows[h.ItemID]; ok {
				row.Text = f.ActorURI
			}
		case "media":
			if m, ok := hyd.Media[h.ItemID]; ok {
				row.Text = m.OriginalName
			}
		}
		recent = append(recent, row)
	}

	followers, _ := ctrl.model.CountFollows(uid)

	info["user"] = map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"actor_uri":    ctrl.model.ActorURI(u),
		"followers":    followers,
	}
	info["recent_activity"] = recent
	return c.JSON(http.StatusOK, info)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
