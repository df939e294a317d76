package controller

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

func (ctrl *controller) uploadsInit(e *echo.Echo) {
	e.GET("/uploads/*", ctrl.serveUpload)
	e.HEAD("/uploads/*", ctrl.serveUpload)
}

// serveUpload delivers a file from the uploads root. The requested path is
// classified by resolveUnderRoot before any filesystem access; rejected
// paths never reach os.Stat. Response contract:
//
//	400 INVALID_PATH  traversal or otherwise malformed path
//	403 FORBIDDEN     dotfiles and dot-directories
//	404 NOT_FOUND     file missing, or a directory
//	200               file content, inline for image/video, attachment else
func (ctrl *controller) serveUpload(c echo.Context) error {
	logger := requestLogger(c)

	// The raw (still percent-encoded) tail of the URL. Echo decodes route
	// params, which would hide double-encoding from the classifier.
	requested := strings.TrimPrefix(c.Request().URL.EscapedPath(), "/uploads/")

	full, err := resolveUnderRoot(ctrl.uploadsRoot, requested)
	switch {
	case errors.Is(err, errPathHidden):
		return c.JSON(http.StatusForbidden,
			errorEnvelope("FORBIDDEN", "Access denied"))
	case err != nil:
		if logger != nil {
			logger.Warn("rejected upload path", "path", requested)
		}
		return c.JSON(http.StatusBadRequest,
			errorEnvelope("INVALID_PATH", "Invalid file path"))
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusNotFound,
				errorEnvelope("NOT_FOUND", "File not found"))
		}
		if logger != nil {
			logger.Error("cannot stat upload", "path", full, "error", err)
		}
		return c.JSON(http.StatusInternalServerError,
			errorEnvelope("INTERNAL", "An error occurred. Please try again later."))
	}
	if info.IsDir() {
		return c.JSON(http.StatusNotFound,
			errorEnvelope("NOT_FOUND", "File not found"))
	}

	// The classifier is lexical; a symlink inside uploads/ can still point
	// elsewhere. Resolve and re-check containment, treating an escape the
	// same as a missing file.
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return c.JSON(http.StatusNotFound,
			errorEnvelope("NOT_FOUND", "File not found"))
	}
	if resolved != ctrl.uploadsRoot &&
		!strings.HasPrefix(resolved, ctrl.uploadsRoot+string(filepath.Separator)) {
		if logger != nil {
			logger.Warn("symlink escapes uploads root", "path", full, "target", resolved)
		}
		return c.JSON(http.StatusNotFound,
			errorEnvelope("NOT_FOUND", "File not found"))
	}

	f, err := os.Open(resolved)
	if err != nil {
		if logger != nil {
			logger.Error("cannot open upload", "path", resolved, "error", err)
		}
		return c.JSON(http.StatusInternalServerError,
			errorEnvelope("INTERNAL", "An error occurred. Please try again later."))
	}
	defer f.Close()

	ctype := uploadContentType(resolved)
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, ctype)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "SAMEORIGIN")
	h.Set(echo.HeaderContentDisposition, contentDisposition(resolved, ctype))

	http.ServeContent(c.Response(), c.Request(), filepath.Base(resolved), info.ModTime(), f)
	return nil
}

// uploadContentType derives the Content-Type from the file extension only.
// Content sniffing is off (nosniff), so an unknown extension is delivered
// as an opaque byte stream.
func uploadContentType(name string) string {
	ctype := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return ctype
}

// contentDisposition renders images and videos inline; everything else is
// a download so that e.g. HTML or PDF uploads never execute in the
// service's origin.
func contentDisposition(name, ctype string) string {
	if strings.HasPrefix(ctype, "image/") || strings.HasPrefix(ctype, "video/") {
		return "inline"
	}
	return fmt.Sprintf(`attachment; filename=%q`, filepath.Base(name))
}
