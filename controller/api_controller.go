package controller

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xeonx/timeago"
)

type APIError struct {
	Code    string `json:"code" xml:"code"`
	Message string `json:"message" xml:"message"`
}

func apiError(code, msg string) *APIError { return &APIError{Code: code, Message: msg} }

func wantsXML(c echo.Context) bool {
	if c.QueryParam("format") == "xml" {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, "application/xml") || strings.Contains(accept, "text/xml")
}
func respond(c echo.Context, status int, v any) error {
	if wantsXML(c) {
		return c.XML(status, v)
	}
	return c.JSON(status, v)
}

// agoOrEmpty renders a human "3 hours ago" for list views; zero times
// render as the empty string.
func agoOrEmpty(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return timeago.English.Format(*t)
}

// ---- DTOs for posts ----
type APIPost struct {
	ID           uint       `json:"id" xml:"id,attr"`
	Body         string     `json:"body" xml:"body"`
	Status       string     `json:"status" xml:"status"`
	PublishedAt  *time.Time `json:"published_at,omitempty" xml:"published_at,omitempty"`
	PublishedAgo string     `json:"published_ago,omitempty" xml:"published_ago,omitempty"`
	Attachments  []APIMedia `json:"attachments,omitempty" xml:"attachments>media,omitempty"`
	CreatedAt    time.Time  `json:"created_at" xml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" xml:"updated_at"`
}

type APIPostList struct {
	XMLName struct{}  `json:"-" xml:"posts"`
	Items   []APIPost `json:"items" xml:"post"`
	Total   int64     `json:"total" xml:"total,attr"`
	Limit   int       `json:"limit" xml:"limit,attr"`
	Offset  int       `json:"offset" xml:"offset,attr"`
}

// ---- DTOs for follows ----
type APIFollow struct {
	ID         uint      `json:"id" xml:"id,attr"`
	ActorURI   string    `json:"actor_uri" xml:"actor_uri"`
	InboxURL   string    `json:"inbox_url,omitempty" xml:"inbox_url,omitempty"`
	Domain     string    `json:"domain" xml:"domain"`
	FollowedAt time.Time `json:"followed_at" xml:"followed_at"`
}

type APIFollowList struct {
	XMLName struct{}    `json:"-" xml:"follows"`
	Items   []APIFollow `json:"items" xml:"follow"`
	Total   int64       `json:"total" xml:"total,attr"`
	Limit   int         `json:"limit" xml:"limit,attr"`
	Offset  int         `json:"offset" xml:"offset,attr"`
}

// ---- DTOs for media ----
type APIMedia struct {
	ID          uint   `json:"id" xml:"id,attr"`
	URL         string `json:"url" xml:"url"`
	PreviewURL  string `json:"preview_url,omitempty" xml:"preview_url,omitempty"`
	ContentType string `json:"content_type" xml:"content_type"`
	ByteSize    int64  `json:"byte_size" xml:"byte_size"`
	Kind        string `json:"kind" xml:"kind"`
	Description string `json:"description,omitempty" xml:"description,omitempty"`
}

type APIMediaList struct {
	XMLName struct{}   `json:"-" xml:"media"`
	Items   []APIMedia `json:"items" xml:"item"`
	Total   int64      `json:"total" xml:"total,attr"`
	Limit   int        `json:"limit" xml:"limit,attr"`
	Offset  int        `json:"offset" xml:"offset,attr"`
}
