package controller

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestResolveUnderRoot(t *testing.T) {
	root := filepath.FromSlash("/srv/uploads")

	tests := []struct {
		name      string
		requested string
		want      string // relative to root; empty means an error is expected
		wantErr   error
	}{
		{"plain file", "photo.jpg", "photo.jpg", nil},
		{"nested file", "2024/06/photo.jpg", "2024/06/photo.jpg", nil},
		{"internal dots survive", "my.file.with.dots.txt", "my.file.with.dots.txt", nil},
		{"redundant slashes", "a//b///c.txt", "a/b/c.txt", nil},
		{"resolvable dotdot", "a/../b.txt", "b.txt", nil},
		{"current dir segments", "./a/./b.txt", "a/b.txt", nil},
		{"encoded space", "my%20file.txt", "my file.txt", nil},

		{"plain traversal", "../etc/passwd", "", errPathOutsideRoot},
		{"deep traversal", "../../../../etc/passwd", "", errPathOutsideRoot},
		{"encoded traversal", "%2e%2e%2fetc/passwd", "", errPathOutsideRoot},
		{"double-encoded traversal", "%252e%252e%252fetc/passwd", "", errPathOutsideRoot},
		{"backslash traversal", `..\..\windows\system32`, "", errPathOutsideRoot},
		{"climbs out and back in", "a/../../srv/uploads/photo.jpg", "", errPathOutsideRoot},
		{"mixed separators", `a\..\..\secret.txt`, "", errPathOutsideRoot},
		{"null byte", "photo.jpg%00.png", "", errPathOutsideRoot},
		{"literal null byte", "photo\x00.jpg", "", errPathOutsideRoot},
		{"malformed escape", "photo%zz.jpg", "", errPathOutsideRoot},
		{"empty path", "", "", errPathOutsideRoot},
		{"only slashes", "///", "", errPathOutsideRoot},

		{"dotfile", ".env", "", errPathHidden},
		{"dot directory", ".git/config", "", errPathHidden},
		{"hidden in subdir", "a/.htaccess", "", errPathHidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveUnderRoot(root, tt.requested)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("resolveUnderRoot(%q) error = %v, want %v", tt.requested, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveUnderRoot(%q) unexpected error: %v", tt.requested, err)
			}
			want := filepath.Join(root, filepath.FromSlash(tt.want))
			if got != want {
				t.Errorf("resolveUnderRoot(%q) = %q, want %q", tt.requested, got, want)
			}
		})
	}
}

func TestFullyDecodeStabilizes(t *testing.T) {
	// One decode round must never be enough to hide a traversal: the
	// result is decoded again until it stops changing.
	got, err := fullyDecode("%252e%252e")
	if err != nil {
		t.Fatalf("fullyDecode error: %v", err)
	}
	if got != ".." {
		t.Errorf("fullyDecode(%%252e%%252e) = %q, want %q", got, "..")
	}

	// Already-plain input passes through unchanged.
	got, err = fullyDecode("plain-name.txt")
	if err != nil {
		t.Fatalf("fullyDecode error: %v", err)
	}
	if got != "plain-name.txt" {
		t.Errorf("fullyDecode = %q, want unchanged input", got)
	}
}
