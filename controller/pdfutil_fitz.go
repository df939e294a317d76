//go:build cgo
// +build cgo

package controller

import (
	"fmt"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"
)

// renderPDFPreview rasterizes the first page of a PDF to a PNG at outPath.
func renderPDFPreview(pdfPath, outPath string, dpi int) error {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return fmt.Errorf("cannot open PDF %s: %w", pdfPath, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return fmt.Errorf("PDF %s has no pages", pdfPath)
	}

	img, err := doc.ImageDPI(0, float64(dpi))
	if err != nil {
		return fmt.Errorf("cannot render page 1 of %s: %w", pdfPath, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		os.Remove(outPath)
		return err
	}
	return nil
}
