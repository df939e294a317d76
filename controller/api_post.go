package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/parasocial/parasocial/model"
)

func postToAPI(p *model.Post) APIPost {
	out := APIPost{
		ID:           p.ID,
		Body:         p.Body,
		Status:       string(p.Status),
		PublishedAt:  p.PublishedAt,
		PublishedAgo: agoOrEmpty(p.PublishedAt),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	for i := range p.Attachments {
		m := &p.Attachments[i]
		out.Attachments = append(out.Attachments, APIMedia{
			ID:          m.ID,
			URL:         "/uploads/" + m.DiskName,
			ContentType: m.ContentType,
			ByteSize:    m.ByteSize,
			Kind:        string(m.Kind),
			Description: m.Description,
		})
	}
	return out
}

type postListQuery struct {
	Status string `query:"status"`
	Query  string `query:"q"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

// apiPostList handles GET /api/v1/posts
func (ctrl *controller) apiPostList(c echo.Context) error {
	ownerID := apiOwnerID(c)

	var q postListQuery
	if err := c.Bind(&q); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_query", "invalid query params"))
	}
	if q.Limit <= 0 {
		q.Limit = 25
	}
	if q.Limit > 200 {
		q.Limit = 200
	}

	result, err := ctrl.model.ListPosts(ownerID, model.PostFilters{
		Status: model.PostStatus(q.Status),
		Query:  q.Query,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load posts"))
	}

	items := make([]APIPost, len(result.Posts))
	for i := range result.Posts {
		items[i] = postToAPI(&result.Posts[i])
	}
	return respond(c, http.StatusOK, APIPostList{
		Items:  items,
		Total:  result.Total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// apiPostGet handles GET /api/v1/posts/:id
func (ctrl *controller) apiPostGet(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	p, err := ctrl.model.GetPostByID(uint(id), apiOwnerID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "post not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load post"))
	}
	return respond(c, http.StatusOK, postToAPI(p))
}

type postWriteReq struct {
	Body        string `json:"body" form:"body"`
	Status      string `json:"status" form:"status"`
	MediaIDs    []uint `json:"media_ids" form:"media_ids"`
	ClearsMedia bool   `json:"clear_media" form:"clear_media"`
}

// apiPostCreate handles POST /api/v1/posts
func (ctrl *controller) apiPostCreate(c echo.Context) error {
	ownerID := apiOwnerID(c)

	var req postWriteReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid payload"))
	}

	p := &model.Post{
		OwnerID: ownerID,
		Body:    req.Body,
		Status:  model.PostStatus(req.Status),
	}
	if err := ctrl.model.CreatePost(p); err != nil {
		if errors.Is(err, model.ErrEmptyPostBody) || errors.Is(err, model.ErrPostBodyTooLong) {
			return respond(c, http.StatusBadRequest, apiError("bad_request", err.Error()))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not create post"))
	}

	if len(req.MediaIDs) > 0 {
		if err := ctrl.model.AttachMedia(p, req.MediaIDs); err != nil {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "unknown media attachment"))
		}
	}

	created, err := ctrl.model.GetPostByID(p.ID, ownerID)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load post"))
	}
	return respond(c, http.StatusCreated, postToAPI(created))
}

// apiPostUpdate handles PUT /api/v1/posts/:id. A published post never
// falls back to draft; only body, attachments and draft->published
// transitions are accepted.
func (ctrl *controller) apiPostUpdate(c echo.Context) error {
	ownerID := apiOwnerID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	p, err := ctrl.model.GetPostByID(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "post not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load post"))
	}

	var req postWriteReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid payload"))
	}

	if req.Body != "" {
		p.Body = req.Body
	}
	if req.Status != "" {
		next := model.PostStatus(req.Status)
		if p.Status == model.PostStatusPublished && next == model.PostStatusDraft {
			return respond(c, http.StatusConflict, apiError("conflict", "published posts cannot return to draft"))
		}
		p.Status = next
	}

	if err := ctrl.model.SavePost(p); err != nil {
		if errors.Is(err, model.ErrEmptyPostBody) || errors.Is(err, model.ErrPostBodyTooLong) {
			return respond(c, http.StatusBadRequest, apiError("bad_request", err.Error()))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not save post"))
	}

	if len(req.MediaIDs) > 0 || req.ClearsMedia {
		if err := ctrl.model.AttachMedia(p, req.MediaIDs); err != nil {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "unknown media attachment"))
		}
	}

	saved, err := ctrl.model.GetPostByID(p.ID, ownerID)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load post"))
	}
	return respond(c, http.StatusOK, postToAPI(saved))
}

// apiPostDelete handles DELETE /api/v1/posts/:id
func (ctrl *controller) apiPostDelete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	if err := ctrl.model.DeletePost(uint(id), apiOwnerID(c)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "post not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not delete post"))
	}
	return c.NoContent(http.StatusNoContent)
}
