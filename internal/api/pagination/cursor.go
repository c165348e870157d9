// Package pagination encodes opaque keyset cursors for list endpoints.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/devconnector/internal/domain/ids"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the position of the last item on a page: its creation time and
// ULID, the sort key of newest-first feeds.
type Cursor struct {
	Timestamp time.Time
	ULID      string
}

// Encode renders the cursor as base64(ts_unix_nano:ULID).
func Encode(timestamp time.Time, ulid string) string {
	value := fmt.Sprintf("%d:%s", timestamp.UTC().UnixNano(), ids.Normalize(ulid))
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// Decode parses a cursor produced by Encode.
func Decode(cursor string) (Cursor, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return Cursor{}, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return Cursor{}, ErrInvalidCursor
	}
	unixNano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || unixNano < 0 {
		return Cursor{}, ErrInvalidCursor
	}
	id := ids.Normalize(parts[1])
	if !ids.IsULID(id) {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{Timestamp: time.Unix(0, unixNano).UTC(), ULID: id}, nil
}

// NextCursorHeader carries the cursor of the following page; list bodies stay bare arrays.
const NextCursorHeader = "X-Next-Cursor"
