package storage

import (
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// InspectMapper renders chat records for the Badger debug inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "group:"):
		m, err := decodeGroupMessage(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "GROUP"
		row.Detail = fmt.Sprintf("[%s] %s: %s", m.Room, m.From, m.Content)
	case strings.HasPrefix(key, "dm:"):
		m, err := decodeDirectMessage(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "DIRECT"
		row.Detail = fmt.Sprintf("%s -> %s: %s", m.From, m.To, m.Content)
	case strings.HasPrefix(key, userPrefix):
		u, err := decodeUser(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "USER"
		row.Detail = strings.TrimSpace(fmt.Sprintf("%s %s %s", u.Username, u.FirstName, u.LastName))
	case key == sequenceKey:
		row.Type = "SEQUENCE"
	}
	return row
}
