package controller

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// Errors returned by resolveUnderRoot. Callers map these to HTTP statuses.
var (
	// errPathOutsideRoot means the request tried to escape the uploads root
	// (traversal, encoded traversal, null bytes, undecodable escapes).
	errPathOutsideRoot = errors.New("path escapes uploads root")

	// errPathHidden means the path points at a dotfile or a dot-directory.
	errPathHidden = errors.New("path targets a hidden file")
)

// maxDecodeRounds bounds repeated percent-decoding. Two rounds defeat
// double-encoding (%252e -> %2e -> .); more than four means someone is
// playing games and the path is rejected anyway because the decoded form
// never stabilizes into something containable.
const maxDecodeRounds = 4

// fullyDecode percent-decodes s repeatedly until it stops changing. A path
// like %252e%252e%252f must not survive a single decode pass: the first
// round yields %2e%2e%2f, the second yields ../ which the containment check
// then rejects. Returns an error if the escapes are malformed or the value
// does not stabilize within maxDecodeRounds.
func fullyDecode(s string) (string, error) {
	for i := 0; i < maxDecodeRounds; i++ {
		decoded, err := url.PathUnescape(s)
		if err != nil {
			return "", errPathOutsideRoot
		}
		if decoded == s {
			return s, nil
		}
		s = decoded
	}
	return "", errPathOutsideRoot
}

// resolveUnderRoot classifies a client-supplied path against the uploads
// root and returns the absolute filesystem path to serve, or an error.
//
// The check is purely lexical: repeated percent-decoding, null-byte
// rejection, backslash normalization, then segment-wise canonicalization
// and a containment check against root. No substring blocklists;
// filenames with internal dots ("my.file.v2.txt") pass.
// Symlink containment is the caller's job (see serveUpload), because it
// needs filesystem access and this function must stay pure.
func resolveUnderRoot(root, requested string) (string, error) {
	decoded, err := fullyDecode(requested)
	if err != nil {
		return "", err
	}

	// Null bytes terminate strings in C-based filesystem APIs; a path
	// containing one never names a legitimate upload.
	if strings.ContainsRune(decoded, '\x00') {
		return "", errPathOutsideRoot
	}

	// Windows clients and attackers both send backslashes.
	decoded = strings.ReplaceAll(decoded, "\\", "/")

	// Canonicalize segment by segment. A ".." that climbs above the root
	// is rejected outright, not silently clamped: path.Clean against an
	// absolute anchor would discard a leading ".." and turn a traversal
	// attempt into a plausible-looking lookup inside the root.
	var stack []string
	for _, seg := range strings.Split(decoded, "/") {
		switch seg {
		case "", ".":
			// redundant slash or current-dir segment
		case "..":
			if len(stack) == 0 {
				return "", errPathOutsideRoot
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}

	rel := strings.Join(stack, "/")
	if rel == "" {
		return "", errPathOutsideRoot
	}

	// Dotfiles (and anything inside a dot-directory) are never served.
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", errPathHidden
		}
	}

	full := filepath.Join(root, filepath.FromSlash(rel))

	// Belt and braces: the joined result must still sit under root.
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", errPathOutsideRoot
	}
	return full, nil
}
