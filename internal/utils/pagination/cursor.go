package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor is the opaque pagination state we encode/decode.
// UserID + CreatedMicros (unix microseconds) establish a stable keyset
// position. Stored timestamps never carry more than microsecond precision.
type Cursor struct {
	UserID        uint64 `json:"user_id"`
	CreatedMicros int64  `json:"created_us,omitempty"`
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool {
	return c.UserID == 0 || c.CreatedMicros == 0
}

// CreatedAt returns the cursor timestamp in UTC.
func (c Cursor) CreatedAt() time.Time {
	return time.UnixMicro(c.CreatedMicros).UTC()
}

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

var ErrInvalidToken = fmt.Errorf("invalid pagination token")
