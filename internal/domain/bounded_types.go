package domain

import (
	"fmt"
	"strings"
)

const maxRecordIDLength = 255

// ValidateRecordID rejects blank identifiers and identifiers longer than the column allows.
func ValidateRecordID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if len(id) > maxRecordIDLength {
		return fmt.Errorf("record id exceeds maximum length of %d", maxRecordIDLength)
	}
	return nil
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxListSkip      = 1_000_000
)

// ValidatePage checks listing bounds.
func ValidatePage(skip, limit int) error {
	if skip < 0 || skip > MaxListSkip {
		return fmt.Errorf("skip must be in [0, %d], got %d", MaxListSkip, skip)
	}
	if limit <= 0 || limit > MaxListLimit {
		return fmt.Errorf("limit must be in (0, %d], got %d", MaxListLimit, limit)
	}
	return nil
}
