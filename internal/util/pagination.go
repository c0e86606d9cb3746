package util

import (
	"errors"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100
)

var ErrNotPositive = errors.New("must be a positive integer")

// ParsePositive returns def for an empty string and fails for anything that
// is not an integer >= 1.
func ParsePositive(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, ErrNotPositive
	}
	return v, nil
}

// Calculate turns a 1-based page and a page size into an offset and a limit
// capped at MaxLimit.
func Calculate(page, size int) (offset int, limit int) {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultLimit
	}
	if size > MaxLimit {
		size = MaxLimit
	}

	offset = (page - 1) * size
	limit = size
	return offset, limit
}
