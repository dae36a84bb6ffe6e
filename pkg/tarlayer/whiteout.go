package tarlayer

import "strings"

// whiteoutPrefix is the AUFS sentinel basename prefix marking a deletion
// record rather than a real file.
const whiteoutPrefix = ".wh."

// opaqueDirMarker is the AUFS opaque-directory whiteout. Its directory-clearing
// semantics are intentionally left unimplemented here; it is recognized only
// so the merger can refuse to emit it as a regular entry, never to act on it.
const opaqueDirMarker = ".wh..wh..opq"

// isWhiteout reports whether cpath's basename begins with the whiteout
// sentinel.
func isWhiteout(cpath string) bool {
	_, base := splitPath(cpath)
	return strings.HasPrefix(base, whiteoutPrefix)
}

// isOpaqueMarker reports whether cpath is an opaque-directory whiteout
// rather than a plain per-entry whiteout.
func isOpaqueMarker(cpath string) bool {
	_, base := splitPath(cpath)
	return base == opaqueDirMarker
}

// decodeWhiteout derives the deleted target path from a whiteout entry's
// canonical path: split on the last "/", strip the sentinel prefix from the
// basename, and rejoin with the directory.
func decodeWhiteout(cpath string) string {
	dir, base := splitPath(cpath)
	target := strings.TrimPrefix(base, whiteoutPrefix)
	if dir == "" {
		return target
	}
	return dir + "/" + target
}

// splitPath splits a canonical path into its directory and basename. The
// directory is "" when cpath has no "/".
func splitPath(cpath string) (dir, base string) {
	idx := strings.LastIndex(cpath, "/")
	if idx < 0 {
		return "", cpath
	}
	return cpath[:idx], cpath[idx+1:]
}
