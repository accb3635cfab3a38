// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathcmp provides path normalization and containment helpers used to
// decide which torrent records belong to a whitelist root. Paths are compared
// with forward slashes so records written on one platform still match roots
// configured on another.
package pathcmp

import (
	"path"
	"strings"
)

// IsWindowsDriveAbs returns true if p is a Windows absolute path (e.g., C:/...).
// Backslashes should be normalized before calling.
func IsWindowsDriveAbs(p string) bool {
	if len(p) < 3 {
		return false
	}
	c := p[0]
	return isDriveLetter(c) && p[1] == ':' && p[2] == '/'
}

func isDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// NormalizePath normalizes a file path for comparison by:
// - Converting backslashes to forward slashes
// - Removing trailing slashes (preserving roots like / and C:/)
// - Cleaning the path (removing . and .. where possible)
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")

	// path.Clean turns C:/ into C:, keep the drive root intact.
	if len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':' {
		drive := p[:2]
		rest := p[2:]
		if rest == "" {
			return drive
		}

		rest = path.Clean(rest)
		if rest == "/" || rest == "." {
			return drive + "/"
		}
		return drive + rest
	}

	return path.Clean(p)
}

// IsWithin reports whether p is root itself or lies inside the root subtree.
// Both sides are normalized first and the match happens on a path boundary,
// so /data2/a.torrent is not within /data.
func IsWithin(root, p string) bool {
	r := NormalizePath(root)
	q := NormalizePath(p)
	if r == "" || q == "" {
		return false
	}
	if r == q {
		return true
	}
	if !strings.HasSuffix(r, "/") {
		r += "/"
	}
	return strings.HasPrefix(q, r)
}
