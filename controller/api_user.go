package controller

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/parasocial/parasocial/model"
)

type APIAccount struct {
	ID          uint       `json:"id" xml:"id,attr"`
	Email       string     `json:"email" xml:"email"`
	Username    string     `json:"username" xml:"username"`
	ActorURI    string     `json:"actor_uri" xml:"actor_uri"`
	DisplayName string     `json:"display_name,omitempty" xml:"display_name,omitempty"`
	Bio         string     `json:"bio,omitempty" xml:"bio,omitempty"`
	Website     string     `json:"website,omitempty" xml:"website,omitempty"`
	CountryCode string     `json:"country_code,omitempty" xml:"country_code,omitempty"`
	Verified    bool       `json:"verified" xml:"verified"`
	Followers   int64      `json:"followers" xml:"followers"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" xml:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" xml:"created_at"`
}

func (ctrl *controller) accountDTO(u *model.User) (*APIAccount, error) {
	followers, err := ctrl.model.CountFollows(u.ID)
	if err != nil {
		return nil, err
	}
	return &APIAccount{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		ActorURI:    ctrl.model.ActorURI(u),
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Website:     u.Website,
		CountryCode: u.CountryCode,
		Verified:    u.Verified,
		Followers:   followers,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}, nil
}

// apiAccountGet handles GET /api/v1/account
func (ctrl *controller) apiAccountGet(c echo.Context) error {
	u, err := ctrl.model.GetUserByID(apiOwnerID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "account not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load account"))
	}
	dto, err := ctrl.accountDTO(u)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load account"))
	}
	return respond(c, http.StatusOK, dto)
}

// accountForm carries the editable profile fields. Username and email
// are identity and stay immutable here.
type accountForm struct {
	DisplayName *string `form:"display_name" json:"display_name"`
	Bio         *string `form:"bio" json:"bio"`
	Website     *string `form:"website" json:"website"`
	CountryCode *string `form:"country_code" json:"country_code"`
}

// apiAccountUpdate handles PATCH /api/v1/account. Accepts JSON or a
// classic form body; only fields present in the request are changed.
func (ctrl *controller) apiAccountUpdate(c echo.Context) error {
	u, err := ctrl.model.GetUserByID(apiOwnerID(c))
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load account"))
	}

	var af accountForm
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEApplicationForm) {
		if err := c.Request().ParseForm(); err != nil {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid form data"))
		}
		dec := form.NewDecoder()
		if err := dec.Decode(&af, c.Request().Form); err != nil {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid form data"))
		}
	} else {
		if err := c.Bind(&af); err != nil {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid payload"))
		}
	}

	if af.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*af.DisplayName)
	}
	if af.Bio != nil {
		u.Bio = *af.Bio
	}
	if af.Website != nil {
		w := strings.TrimSpace(*af.Website)
		if w != "" {
			parsed, err := url.Parse(w)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				return respond(c, http.StatusBadRequest, apiError("bad_request", "website must be an http(s) URL"))
			}
		}
		u.Website = w
	}
	if af.CountryCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*af.CountryCode))
		if err := model.ValidateCountryCode(code); err != nil {
			return respond(c, http.StatusBadRequest, apiError("bad_request", "unknown country code"))
		}
		u.CountryCode = code
	}

	if err := ctrl.model.UpdateUser(u); err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not save account"))
	}

	dto, err := ctrl.accountDTO(u)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load account"))
	}
	return respond(c, http.StatusOK, dto)
}
