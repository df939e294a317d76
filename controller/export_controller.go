package controller

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
)

func (ctrl *controller) exportInit(e *echo.Echo) {
	g := e.Group("/export")
	g.Use(ctrl.authMiddleware)
	g.GET("/account.zip", ctrl.exportAccountZip)
}

// exportAccountZip streams a full takeout of the account: profile and
// posts as XML, followers and posts additionally as spreadsheets, and
// the raw upload files. The archive is written straight to the response.
func (ctrl *controller) exportAccountZip(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/zip")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="parasocial-account-%s.zip"`, time.Now().Format("2006-01-02")))
	res.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(res)
	defer zw.Close()

	if err := ctrl.exportAccountXML(zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportPostsXML(zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportFollowersXLSX(zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportPostsXLSX(zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportUploads(zw, ownerID); err != nil {
		return err
	}
	return ctrl.writeManifest(zw, ownerID)
}

type exportAccount struct {
	XMLName xml.Name   `xml:"account"`
	Version string     `xml:"version,attr"`
	Account APIAccount `xml:"profile"`
}

func (ctrl *controller) exportAccountXML(zw *zip.Writer, ownerID uint) error {
	u, err := ctrl.model.GetUserByID(ownerID)
	if err != nil {
		return fmt.Errorf("cannot load account for export: %w", err)
	}
	dto, err := ctrl.accountDTO(u)
	if err != nil {
		return fmt.Errorf("cannot build account export: %w", err)
	}

	f, err := zw.Create("account.xml")
	if err != nil {
		return fmt.Errorf("cannot create account.xml in ZIP: %w", err)
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(exportAccount{Version: "1", Account: *dto}); err != nil {
		return fmt.Errorf("cannot encode account.xml: %w", err)
	}
	return enc.Flush()
}

type exportPosts struct {
	XMLName xml.Name  `xml:"posts"`
	Version string    `xml:"version,attr"`
	Posts   []APIPost `xml:"post"`
}

func (ctrl *controller) exportPostsXML(zw *zip.Writer, ownerID uint) error {
	posts, err := ctrl.model.ListPostsForExport(ownerID)
	if err != nil {
		return fmt.Errorf("cannot load posts for export: %w", err)
	}

	f, err := zw.Create("posts.xml")
	if err != nil {
		return fmt.Errorf("cannot create posts.xml in ZIP: %w", err)
	}

	export := exportPosts{Version: "1", Posts: make([]APIPost, 0, len(posts))}
	for i := range posts {
		export.Posts = append(export.Posts, postToAPI(&posts[i]))
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode posts.xml: %w", err)
	}
	return enc.Flush()
}

func (ctrl *controller) exportFollowersXLSX(zw *zip.Writer, ownerID uint) error {
	follows, err := ctrl.model.ListFollowsForExport(ownerID)
	if err != nil {
		return fmt.Errorf("cannot load follows for export: %w", err)
	}

	xf := excelize.NewFile()
	defer xf.Close()

	const sheet = "Followers"
	if err := xf.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	headers := []string{"Actor URI", "Domain", "Inbox URL", "Followed at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		xf.SetCellValue(sheet, cell, h)
	}
	for row, fl := range follows {
		values := []any{fl.ActorURI, fl.Domain, fl.InboxURL, fl.FollowedAt.Format(time.RFC3339)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			xf.SetCellValue(sheet, cell, v)
		}
	}

	w, err := zw.Create("followers.xlsx")
	if err != nil {
		return fmt.Errorf("cannot create followers.xlsx in ZIP: %w", err)
	}
	if err := xf.Write(w); err != nil {
		return fmt.Errorf("cannot write followers.xlsx: %w", err)
	}
	return nil
}

func (ctrl *controller) exportPostsXLSX(zw *zip.Writer, ownerID uint) error {
	posts, err := ctrl.model.ListPostsForExport(ownerID)
	if err != nil {
		return fmt.Errorf("cannot load posts for export: %w", err)
	}

	xf := excelize.NewFile()
	defer xf.Close()

	const sheet = "Posts"
	if err := xf.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	headers := []string{"ID", "Status", "Published at", "Attachments", "Body"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		xf.SetCellValue(sheet, cell, h)
	}
	for row, p := range posts {
		published := ""
		if p.PublishedAt != nil {
			published = p.PublishedAt.Format(time.RFC3339)
		}
		values := []any{p.ID, string(p.Status), published, len(p.Attachments), p.Body}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			xf.SetCellValue(sheet, cell, v)
		}
	}

	w, err := zw.Create("posts.xlsx")
	if err != nil {
		return fmt.Errorf("cannot create posts.xlsx in ZIP: %w", err)
	}
	if err := xf.Write(w); err != nil {
		return fmt.Errorf("cannot write posts.xlsx: %w", err)
	}
	return nil
}

// addFileToZip copies a single file from disk into the ZIP archive
// under the given zipPath. Missing files are skipped.
func (ctrl *controller) addFileToZip(zw *zip.Writer, srcPath, zipPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	w, err := zw.Create(zipPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// exportUploads adds the raw bytes of the owner's media into the ZIP
// under uploads/, using the original filename where it is unambiguous.
func (ctrl *controller) exportUploads(zw *zip.Writer, ownerID uint) error {
	const pageSize = 200
	for offset := 0; ; {
		page, err := ctrl.model.ListMedia(ownerID, pageSize, offset)
		if err != nil {
			return fmt.Errorf("cannot load media for export: %w", err)
		}
		if len(page.Media) == 0 {
			return nil
		}
		for i := range page.Media {
			m := &page.Media[i]
			srcPath, err := resolveUnderRoot(ctrl.uploadsRoot, m.DiskName)
			if err != nil {
				// tampered disk name; skip it rather than abort the export
				continue
			}
			zipPath := "uploads/" + m.DiskName
			if err := ctrl.addFileToZip(zw, srcPath, zipPath); err != nil {
				return fmt.Errorf("add upload %q: %w", m.DiskName, err)
			}
		}
		offset += len(page.Media)
		if int64(offset) >= page.Total {
			return nil
		}
	}
}

// writeManifest records export metadata last so a truncated download is
// detectable by the missing manifest.
func (ctrl *controller) writeManifest(zw *zip.Writer, ownerID uint) error {
	f, err := zw.Create("manifest.txt")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "parasocial account export\nowner: %d\ncreated: %s\n",
		ownerID, time.Now().UTC().Format(time.RFC3339))
	return err
}
