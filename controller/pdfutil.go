//go:build !cgo
// +build !cgo

package controller

import "fmt"

func renderPDFPreview(pdfPath, outPath string, dpi int) error {
	return fmt.Errorf("PDF rendering not supported (built without cgo/fitz)")
}
