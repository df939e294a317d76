package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/parasocial/parasocial/fixtures"
)

type uploadErrResp struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupUploadsTest(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	store := fixtures.NewTestStore(t)

	root, err := canonicalUploadsRoot(store.Config.Basedir)
	if err != nil {
		t.Fatalf("canonicalUploadsRoot error: %v", err)
	}

	files := map[string][]byte{
		"photo.jpg":   []byte("\xff\xd8\xffjpegbytes"),
		"clip.mp4":    []byte("mp4bytes"),
		"doc.pdf":     []byte("%PDF-1.4"),
		"notes.txt":   []byte("plain text"),
		".htpasswd":   []byte("admin:secret"),
		"sub/pic.png": []byte("pngbytes"),
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir error: %v", err)
		}
		if err := os.WriteFile(p, content, 0o644); err != nil {
			t.Fatalf("write %s error: %v", name, err)
		}
	}

	e := echo.New()
	ctrl := &controller{model: store, uploadsRoot: root}
	ctrl.uploadsInit(e)
	return e, root
}

func doUploadRequest(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeUploadError(t *testing.T, rec *httptest.ResponseRecorder) uploadErrResp {
	t.Helper()
	var resp uploadErrResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("JSON unmarshal error: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestServeUploadImage(t *testing.T) {
	e, _ := setupUploadsTest(t)

	rec := doUploadRequest(t, e, "/uploads/photo.jpg")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != "inline" {
		t.Errorf("Content-Disposition = %q, want inline", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q, want SAMEORIGIN", got)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", got)
	}
}

func TestServeUploadNested(t *testing.T) {
	e, _ := setupUploadsTest(t)

	rec := doUploadRequest(t, e, "/uploads/sub/pic.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServeUploadAttachmentDisposition(t *testing.T) {
	e, _ := setupUploadsTest(t)

	// non-image/video content is delivered as a download
	for _, name := range []string{"doc.pdf", "notes.txt"} {
		rec := doUploadRequest(t, e, "/uploads/"+name)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: Status = %d, want %d", name, rec.Code, http.StatusOK)
		}
		cd := rec.Header().Get(echo.HeaderContentDisposition)
		if cd == "" || cd == "inline" {
			t.Errorf("%s: Content-Disposition = %q, want attachment", name, cd)
		}
	}
}

func TestServeUploadTraversalRejected(t *testing.T) {
	e, _ := setupUploadsTest(t)

	for _, target := range []string{
		"/uploads/../config.toml",
		"/uploads/%2e%2e%2fconfig.toml",
		"/uploads/%252e%252e%252fconfig.toml",
		"/uploads/a%5c..%5c..%5csecret",
		"/uploads/photo.jpg%00.png",
	} {
		rec := doUploadRequest(t, e, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: Status = %d, want %d", target, rec.Code, http.StatusBadRequest)
			continue
		}
		resp := decodeUploadError(t, rec)
		if resp.Success {
			t.Errorf("%s: success = true, want false", target)
		}
		if resp.Error.Code != "INVALID_PATH" {
			t.Errorf("%s: code = %q, want INVALID_PATH", target, resp.Error.Code)
		}
		if resp.Error.Message != "Invalid file path" {
			t.Errorf("%s: message = %q, want %q", target, resp.Error.Message, "Invalid file path")
		}
	}
}

func TestServeUploadDotfileForbidden(t *testing.T) {
	e, _ := setupUploadsTest(t)

	rec := doUploadRequest(t, e, "/uploads/.htpasswd")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	resp := decodeUploadError(t, rec)
	if resp.Error.Code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", resp.Error.Code)
	}
}

func TestServeUploadMissingFile(t *testing.T) {
	e, _ := setupUploadsTest(t)

	rec := doUploadRequest(t, e, "/uploads/nope.jpg")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	resp := decodeUploadError(t, rec)
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", resp.Error.Code)
	}
}

func TestServeUploadDirectoryIsNotFound(t *testing.T) {
	e, _ := setupUploadsTest(t)

	rec := doUploadRequest(t, e, "/uploads/sub")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServeUploadSymlinkEscape(t *testing.T) {
	e, root := setupUploadsTest(t)

	outside := filepath.Join(filepath.Dir(root), "outside.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	// classifier passes (lexically fine), containment re-check must not
	rec := doUploadRequest(t, e, "/uploads/link.txt")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d. Body: %s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
}
