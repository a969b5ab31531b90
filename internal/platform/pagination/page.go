// Package pagination normalizes page sizes and sequence cursors for list
// endpoints.
package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// ParsePageSize parses a raw query value and clamps it. Empty input yields
// the default.
func ParsePageSize(raw string, cfg PageSizeConfig) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClampPageSize(0, cfg), nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid page_size: %s", raw)
	}
	return ClampPageSize(value, cfg), nil
}

// ParseCursor parses an "after" sequence cursor. Empty input means the start.
func ParseCursor(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %s", raw)
	}
	return value, nil
}

// NextCursor returns the cursor for the page after one ending at lastSeq, or
// empty when the page was short.
func NextCursor(lastSeq uint64, returned, pageSize int) string {
	if returned < pageSize || returned == 0 {
		return ""
	}
	return strconv.FormatUint(lastSeq, 10)
}
