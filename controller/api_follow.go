package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/parasocial/parasocial/model"
)

func followToAPI(f *model.Follow) APIFollow {
	return APIFollow{
		ID:         f.ID,
		ActorURI:   f.ActorURI,
		InboxURL:   f.InboxURL,
		Domain:     f.Domain,
		FollowedAt: f.FollowedAt,
	}
}

type followListQuery struct {
	Domain string `query:"domain"`
	Query  string `query:"q"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

// apiFollowList handles GET /api/v1/follows
func (ctrl *controller) apiFollowList(c echo.Context) error {
	ownerID := apiOwnerID(c)

	var q followListQuery
	if err := c.Bind(&q); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_query", "invalid query params"))
	}
	if q.Limit <= 0 {
		q.Limit = 25
	}
	if q.Limit > 200 {
		q.Limit = 200
	}

	result, err := ctrl.model.ListFollows(ownerID, model.FollowFilters{
		Domain: q.Domain,
		Query:  q.Query,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load follows"))
	}

	items := make([]APIFollow, len(result.Follows))
	for i := range result.Follows {
		items[i] = followToAPI(&result.Follows[i])
	}
	return respond(c, http.StatusOK, APIFollowList{
		Items:  items,
		Total:  result.Total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

type followWriteReq struct {
	ActorURI string `json:"actor_uri" form:"actor_uri"`
	InboxURL string `json:"inbox_url" form:"inbox_url"`
}

// apiFollowCreate handles POST /api/v1/follows. Creating the same follow
// twice is not an error; the existing row is refreshed.
func (ctrl *controller) apiFollowCreate(c echo.Context) error {
	var req followWriteReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid payload"))
	}

	f, err := ctrl.model.CreateFollow(apiOwnerID(c), req.ActorURI, req.InboxURL)
	if err != nil {
		if errors.Is(err, model.ErrInvalidActorURI) {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "actor_uri must be an absolute http(s) URI"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not store follow"))
	}
	return respond(c, http.StatusCreated, followToAPI(f))
}

// apiFollowRemove handles DELETE /api/v1/follows?actor_uri=...
func (ctrl *controller) apiFollowRemove(c echo.Context) error {
	actorURI := c.QueryParam("actor_uri")
	if actorURI == "" {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "actor_uri is required"))
	}
	if err := ctrl.model.RemoveFollow(apiOwnerID(c), actorURI); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "follow not found"))
		}
		if errors.Is(err, model.ErrInvalidActorURI) {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "actor_uri must be an absolute http(s) URI"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not remove follow"))
	}
	return c.NoContent(http.StatusNoContent)
}
