// Package domain contains entity types without logic, just meta-data.
package domain

import "errors"

const (
	MaxRoomIDLen      = 64
	MaxDisplayNameLen = 36
)

var (
	ErrRoomEmpty   = errors.New("room id empty")
	ErrRoomTooLong = errors.New("room id too long")
)

type (
	// ConnID identifies one live transport session. A browser that
	// reconnects gets a fresh ConnID.
	ConnID string

	RoomID string
)

// CleanRoomID validates a client-supplied room id.
func CleanRoomID(raw string) (RoomID, error) {
	if raw == "" {
		return "", ErrRoomEmpty
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrRoomTooLong
	}
	return RoomID(raw), nil
}

// CleanDisplayName never fails: nameless peers become "guest",
// oversized names are truncated.
func CleanDisplayName(raw string) string {
	if raw == "" {
		return "guest"
	}
	if len(raw) > MaxDisplayNameLen {
		return raw[:MaxDisplayNameLen]
	}
	return raw
}
