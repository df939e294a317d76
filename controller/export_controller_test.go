package controller

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/parasocial/parasocial/fixtures"
)

// Exports larger than one listing page must contain every upload exactly
// once, regardless of how the rows fall across page boundaries.
func TestExportUploadsPaginatesWithoutDuplicates(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	root, err := canonicalUploadsRoot(store.Config.Basedir)
	if err != nil {
		t.Fatalf("canonicalUploadsRoot error: %v", err)
	}

	// 450 rows span three listing pages (200 + 200 + 50).
	const total = 450
	for i := 0; i < total; i++ {
		name := fmt.Sprintf("file-%03d.txt", i)
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s error: %v", name, err)
		}
		m := fixtures.Media(seed.User.ID, fixtures.WithMediaDiskName(name))
		if err := store.CreateMedia(m); err != nil {
			t.Fatalf("CreateMedia %s failed: %v", name, err)
		}
	}

	ctrl := &controller{model: store, uploadsRoot: root}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := ctrl.exportUploads(zw, seed.User.ID); err != nil {
		t.Fatalf("exportUploads error: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip read error: %v", err)
	}

	seen := make(map[string]bool)
	for _, f := range zr.File {
		if seen[f.Name] {
			t.Errorf("duplicate archive entry %q", f.Name)
		}
		seen[f.Name] = true
	}
	if len(zr.File) != total {
		t.Errorf("archive entries = %d, want %d", len(zr.File), total)
	}
}
