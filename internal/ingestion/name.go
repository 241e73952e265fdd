package ingestion

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// maxNameLen caps derived document names.
const maxNameLen = 100

// DocumentName derives the display name used in citations from a file path
// or URL: the base name for files, the last path segment (or the host) for
// URLs. Characters that are unsafe in file names or that would break a
// citation marker are replaced with '_'.
func DocumentName(src string) string {
	name := filepath.Base(src)
	if IsURL(src) {
		name = ""
		if u, err := url.Parse(src); err == nil {
			name = path.Base(strings.TrimSuffix(u.Path, "/"))
			if name == "." || name == "/" || name == "" {
				name = u.Hostname()
			}
			if unescaped, err := url.PathUnescape(name); err == nil {
				name = unescaped
			}
		}
	}
	return sanitize(name)
}

// sanitize replaces unsafe characters and limits the length, keeping the
// extension.
func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "untitled"
	}

	if len(name) > maxNameLen {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	return name
}

// FormatSize renders a byte count for humans, e.g. 1.5KB.
func FormatSize(n int64) string {
	if n == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.1f%s", size, units[i])
}
