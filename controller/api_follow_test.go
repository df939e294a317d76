package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/parasocial/parasocial/fixtures"
)

func TestAPIFollowList(t *testing.T) {
	e, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/follows", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/follows")
	setOwnerContext(c, fixtures.DefaultOwnerID)

	e.Router().Find(http.MethodGet, "/api/v1/follows", c)
	handler := c.Handler()

	if err := handler(c); err != nil {
		t.Fatalf("Handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIFollowList
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}

	// SeedTestData creates one follower
	if result.Total != 1 {
		t.Errorf("Total = %d, want 1", result.Total)
	}
	if len(result.Items) != 1 {
		t.Fatalf("Items count = %d, want 1", len(result.Items))
	}
	if result.Items[0].Domain != "remote.example" {
		t.Errorf("Domain = %q, want remote.example", result.Items[0].Domain)
	}
}

func TestAPIFollowCreate_Idempotent(t *testing.T) {
	e, store := setupTestAPI(t)

	body := `{"actor_uri": "https://other.example/users/bob", "inbox_url": "https://other.example/users/bob/inbox"}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/follows", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/v1/follows")
		setOwnerContext(c, fixtures.DefaultOwnerID)

		e.Router().Find(http.MethodPost, "/api/v1/follows", c)
		handler := c.Handler()

		if err := handler(c); err != nil {
			t.Fatalf("Handler error (round %d): %v", i, err)
		}
		if rec.Code != http.StatusCreated {
			t.Fatalf("round %d: Status = %d, want %d. Body: %s", i, rec.Code, http.StatusCreated, rec.Body.String())
		}
	}

	// seed follower + bob, not three rows
	total, err := store.CountFollows(fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("CountFollows error: %v", err)
	}
	if total != 2 {
		t.Errorf("CountFollows = %d, want 2", total)
	}
}

func TestAPIFollowCreate_InvalidActor(t *testing.T) {
	e, _ := setupTestAPI(t)

	for _, body := range []string{
		`{"actor_uri": "not-a-url"}`,
		`{"actor_uri": "ftp://files.example/alice"}`,
		`{"actor_uri": ""}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/follows", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/v1/follows")
		setOwnerContext(c, fixtures.DefaultOwnerID)

		e.Router().Find(http.MethodPost, "/api/v1/follows", c)
		handler := c.Handler()

		if err := handler(c); err != nil {
			t.Fatalf("Handler error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: Status = %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestAPIFollowRemove(t *testing.T) {
	e, store := setupTestAPI(t)

	target := "/api/v1/follows?actor_uri=" + "https%3A%2F%2Fremote.example%2Fusers%2Falice"
	req := httptest.NewRequest(http.MethodDelete, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/follows")
	setOwnerContext(c, fixtures.DefaultOwnerID)

	e.Router().Find(http.MethodDelete, "/api/v1/follows", c)
	handler := c.Handler()

	if err := handler(c); err != nil {
		t.Fatalf("Handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Status = %d, want %d. Body: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	total, err := store.CountFollows(fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("CountFollows error: %v", err)
	}
	if total != 0 {
		t.Errorf("CountFollows = %d, want 0", total)
	}
}

func TestAPIFollowRemove_NotFound(t *testing.T) {
	e, _ := setupTestAPI(t)

	target := "/api/v1/follows?actor_uri=" + "https%3A%2F%2Fnobody.example%2Fusers%2Fx"
	req := httptest.NewRequest(http.MethodDelete, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/follows")
	setOwnerContext(c, fixtures.DefaultOwnerID)

	e.Router().Find(http.MethodDelete, "/api/v1/follows", c)
	handler := c.Handler()

	if err := handler(c); err != nil {
		t.Fatalf("Handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAPIActivityFeed(t *testing.T) {
	e, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/activity")
	setOwnerContext(c, fixtures.DefaultOwnerID)

	e.Router().Find(http.MethodGet, "/api/v1/activity", c)
	handler := c.Handler()

	if err := handler(c); err != nil {
		t.Fatalf("Handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var result APIActivityList
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}

	// seed: one post + one follow
	if len(result.Items) != 2 {
		t.Errorf("Items = %d, want 2", len(result.Items))
	}
	for _, item := range result.Items {
		if item.Ago == "" {
			t.Errorf("item %q: Ago should be set", item.Type)
		}
	}
}
