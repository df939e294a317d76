package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xeonx/timeago"
)

// APIActivityItem is one entry of the mixed account activity feed.
type APIActivityItem struct {
	Type   string     `json:"type" xml:"type,attr"` // post | follow | media
	When   time.Time  `json:"when" xml:"when"`
	Ago    string     `json:"ago" xml:"ago"`
	Post   *APIPost   `json:"post,omitempty" xml:"post,omitempty"`
	Follow *APIFollow `json:"follow,omitempty" xml:"follow,omitempty"`
	Media  *APIMedia  `json:"media,omitempty" xml:"media,omitempty"`
}

type APIActivityList struct {
	XMLName struct{}          `json:"-" xml:"activity"`
	Items   []APIActivityItem `json:"items" xml:"item"`
}

// apiActivity handles GET /api/v1/activity: the newest posts, followers
// and uploads of the account, merged into one stream.
func (ctrl *controller) apiActivity(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	hyd, err := ctrl.model.LoadActivity(apiOwnerID(c), limit)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load activity"))
	}

	items := make([]APIActivityItem, 0, len(hyd.Heads))
	for _, h := range hyd.Heads {
		item := APIActivityItem{
			Type: h.ItemType,
			When: h.CreatedAt,
			Ago:  timeago.English.Format(h.CreatedAt),
		}
		switch h.ItemType {
		case "post":
			if p, ok := hyd.Posts[h.ItemID]; ok {
				dto := postToAPI(&p)
				item.Post = &dto
			}
		case "follow":
			if f, ok := hyd.Follows[h.ItemID]; ok {
				dto := followToAPI(&f)
				item.Follow = &dto
			}
		case "media":
			if m, ok := hyd.Media[h.ItemID]; ok {
				dto := mediaToAPI(&m)
				item.Media = &dto
			}
		}
		items = append(items, item)
	}

	return respond(c, http.StatusOK, APIActivityList{Items: items})
}
