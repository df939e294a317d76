package controller

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/parasocial/parasocial/model"
)

func (ctrl *controller) mediaInit(e *echo.Echo) {
	g := e.Group("/media")
	g.Use(ctrl.authMiddleware)
	g.GET("", ctrl.mediaList)
	g.POST("/upload", ctrl.mediaUpload)
	g.DELETE("/:id", ctrl.mediaDelete)
}

// allowed upload extensions; everything else is rejected up front so the
// uploads directory never holds surprise file types.
var allowedUploadExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".avif": true, ".svg": true,
	".mp4": true, ".webm": true, ".mov": true, ".m4v": true,
	".pdf": true, ".txt": true, ".zip": true,
}

type mediaRow struct {
	ID           uint   `json:"id"`
	URL          string `json:"url"`
	PreviewURL   string `json:"preview_url,omitempty"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	ByteSize     int64  `json:"byte_size"`
	Kind         string `json:"kind"`
	Description  string `json:"description,omitempty"`
}

func mediaToRow(m *model.Media) mediaRow {
	row := mediaRow{
		ID:           m.ID,
		URL:          "/uploads/" + m.DiskName,
		OriginalName: m.OriginalName,
		ContentType:  m.ContentType,
		ByteSize:     m.ByteSize,
		Kind:         string(m.Kind),
		Description:  m.Description,
	}
	if m.PreviewName != "" {
		row.PreviewURL = "/uploads/" + m.PreviewName
	}
	return row
}

func (ctrl *controller) mediaList(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	list, err := ctrl.model.ListMedia(ownerID, limit, offset)
	if err != nil {
		return ErrInternal(err)
	}

	rows := make([]mediaRow, 0, len(list.Media))
	for i := range list.Media {
		rows = append(rows, mediaToRow(&list.Media[i]))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"media": rows,
		"total": list.Total,
	})
}

// mediaUpload accepts one or more files from a multipart form (field
// "files"). Each file gets a uuid disk name; the user-supplied name is
// kept as metadata only. PDF uploads get a rendered first-page preview
// when the binary was built with cgo.
func (ctrl *controller) mediaUpload(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	logger := requestLogger(c)

	used, err := ctrl.model.UsedUploadBytes(ownerID)
	if err != nil {
		return ErrInternal(err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return ErrInvalid(err, "invalid multipart form")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return ErrInvalid(errors.New("no files in upload"), "no files in upload")
	}

	var newSize int64
	for _, fh := range files {
		newSize += fh.Size
	}
	if used+newSize > ctrl.model.Config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("quota exceeded: %.2f MB of %.2f MB used",
				float64(used)/1024/1024, float64(ctrl.model.Config.MaxUploadBytes)/1024/1024))
	}

	var rows []mediaRow
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !allowedUploadExt[ext] {
			return ErrInvalid(fmt.Errorf("extension %q not allowed", ext),
				fmt.Sprintf("file type %q is not allowed", ext))
		}

		diskName := uuid.NewString() + ext
		dstPath := filepath.Join(ctrl.uploadsRoot, diskName)

		if err := saveMultipartFile(fh, dstPath); err != nil {
			return ErrInternal(err)
		}

		ctype := mime.TypeByExtension(ext)
		if ctype == "" {
			ctype = "application/octet-stream"
		}

		m := &model.Media{
			OwnerID:      ownerID,
			DiskName:     diskName,
			OriginalName: filepath.Base(fh.Filename),
			ContentType:  ctype,
			ByteSize:     fh.Size,
			Kind:         model.KindForExtension(ext),
		}

		if ext == ".pdf" {
			previewName := strings.TrimSuffix(diskName, ext) + "-preview.png"
			previewPath := filepath.Join(ctrl.uploadsRoot, previewName)
			if err := renderPDFPreview(dstPath, previewPath, 144); err != nil {
				// preview is a nicety; the upload itself stays valid
				logger.Warn("cannot render PDF preview", "file", diskName, "error", err)
			} else {
				m.PreviewName = previewName
			}
		}

		if err := ctrl.model.CreateMedia(m); err != nil {
			os.Remove(dstPath)
			if m.PreviewName != "" {
				os.Remove(filepath.Join(ctrl.uploadsRoot, m.PreviewName))
			}
			return ErrInternal(err)
		}
		rows = append(rows, mediaToRow(m))
	}

	return c.JSON(http.StatusCreated, map[string]any{"media": rows})
}

func saveMultipartFile(fh *multipart.FileHeader, dstPath string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	return dst.Close()
}

func (ctrl *controller) mediaDelete(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	logger := requestLogger(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return ErrInvalid(err, "invalid media id")
	}

	m, err := ctrl.model.DeleteMedia(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound(err)
		}
		return ErrInternal(err)
	}

	ctrl.removeMediaFiles(logger, m)

	return c.NoContent(http.StatusNoContent)
}

// removeMediaFiles deletes a media row's bytes from disk. Bytes after
// metadata: a stray file is cleaned up by maintenance, a dangling row is not.
func (ctrl *controller) removeMediaFiles(logger *slog.Logger, m *model.Media) {
	for _, name := range []string{m.DiskName, m.PreviewName} {
		if name == "" {
			continue
		}
		diskPath, err := resolveUnderRoot(ctrl.uploadsRoot, name)
		if err != nil {
			// A stored name that fails the path check is tampered data,
			// never something we wrote. Leave the disk alone.
			logger.Warn("stored disk name fails path check", "file", name, "error", err)
			continue
		}
		if err := os.Remove(diskPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("cannot remove upload from disk", "file", name, "error", err)
		}
	}
}
