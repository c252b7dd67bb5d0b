package pagination

import (
	"fmt"
	"strings"
)

// Cursor is a keyset pagination cursor over (timestamp, id), both taken
// from the last row of the previous page. Timestamps are the stored
// lexicographically-ordered string form, so the cursor needs no parsing
// beyond the separator split.
type Cursor struct {
	Timestamp string
	ID        string
}

// Encode renders the cursor as "<timestamp>|<id>".
func (c *Cursor) Encode() string {
	return c.Timestamp + "|" + c.ID
}

// Decode parses a "<timestamp>|<id>" cursor string. An empty string
// decodes to nil (first page).
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	idx := strings.LastIndex(s, "|")
	if idx <= 0 || idx == len(s)-1 {
		return nil, fmt.Errorf("invalid cursor format: %q", s)
	}

	return &Cursor{
		Timestamp: s[:idx],
		ID:        s[idx+1:],
	}, nil
}

// New creates a cursor from the sort key of the last row returned.
func New(timestamp, id string) *Cursor {
	return &Cursor{
		Timestamp: timestamp,
		ID:        id,
	}
}
