package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/parasocial/parasocial/model"
)

func mediaToAPI(m *model.Media) APIMedia {
	out := APIMedia{
		ID:          m.ID,
		URL:         "/uploads/" + m.DiskName,
		ContentType: m.ContentType,
		ByteSize:    m.ByteSize,
		Kind:        string(m.Kind),
		Description: m.Description,
	}
	if m.PreviewName != "" {
		out.PreviewURL = "/uploads/" + m.PreviewName
	}
	return out
}

type mediaListQuery struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// apiMediaList handles GET /api/v1/media
func (ctrl *controller) apiMediaList(c echo.Context) error {
	var q mediaListQuery
	if err := c.Bind(&q); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_query", "invalid query params"))
	}

	result, err := ctrl.model.ListMedia(apiOwnerID(c), q.Limit, q.Offset)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load media"))
	}

	items := make([]APIMedia, len(result.Media))
	for i := range result.Media {
		items[i] = mediaToAPI(&result.Media[i])
	}
	return respond(c, http.StatusOK, APIMediaList{
		Items:  items,
		Total:  result.Total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// apiMediaGet handles GET /api/v1/media/:id
func (ctrl *controller) apiMediaGet(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}

	m, err := ctrl.model.GetMediaByID(uint(id), apiOwnerID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "media not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load media"))
	}
	return respond(c, http.StatusOK, mediaToAPI(m))
}

// apiMediaDelete handles DELETE /api/v1/media/:id. Row first, then bytes,
// same as the session-side delete.
func (ctrl *controller) apiMediaDelete(c echo.Context) error {
	logger := requestLogger(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}

	m, err := ctrl.model.DeleteMedia(uint(id), apiOwnerID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "media not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not delete media"))
	}

	ctrl.removeMediaFiles(logger, m)
	return c.NoContent(http.StatusNoContent)
}

type mediaUpdateReq struct {
	Description *string `json:"description" form:"description"`
}

// apiMediaUpdate handles PATCH /api/v1/media/:id. Only the description
// (alt text) is editable; the bytes on disk are immutable.
func (ctrl *controller) apiMediaUpdate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}

	m, err := ctrl.model.GetMediaByID(uint(id), apiOwnerID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "media not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load media"))
	}

	var req mediaUpdateReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid payload"))
	}
	if req.Description != nil {
		m.Description = *req.Description
	}

	if err := ctrl.model.UpdateMedia(m); err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not save media"))
	}
	return respond(c, http.StatusOK, mediaToAPI(m))
}
