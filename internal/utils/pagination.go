// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "strconv"

// DefaultPageSize applies when a caller passes a non-positive page size.
const DefaultPageSize = 20

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
// Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage bounds a 1-based page and its size. Pages below 1 become 1, a
// non-positive size becomes DefaultPageSize, and sizes above max (when max > 0)
// are capped.
func ClampPage(page, size, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if max > 0 && size > max {
		size = max
	}
	return page, size
}

// Offset returns the row offset and limit for a clamped page.
func Offset(page, size int) (offset, limit int) {
	page, size = ClampPage(page, size, 0)
	return (page - 1) * size, size
}

// TotalPages is ceil(total/size), 0 for an empty set.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
