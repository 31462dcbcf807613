// ABOUTME: Opaque pagination cursors and timestamp normalization shared by all backends
// ABOUTME: A cursor is base64url(created_at|seq) of the last row on a page

package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout is fixed width so that stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000Z"

// position is a point in the (created_at, seq) ordering
type position struct {
	CreatedAt time.Time
	Seq       int64
}

// before reports whether p sorts ahead of other
func (p position) before(other position) bool {
	if !p.CreatedAt.Equal(other.CreatedAt) {
		return p.CreatedAt.Before(other.CreatedAt)
	}
	return p.Seq < other.Seq
}

// normalizeTime converts to UTC at microsecond precision, the finest
// resolution every backend stores exactly.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func formatTime(t time.Time) string {
	return normalizeTime(t).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// encodeCursor creates an opaque cursor string from a position.
func encodeCursor(p position) string {
	raw := formatTime(p.CreatedAt) + "|" + strconv.FormatInt(p.Seq, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses an opaque cursor string. Errors wrap ErrInvalidCursor.
func decodeCursor(cursor string) (position, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return position{}, fmt.Errorf("%w: bad encoding", ErrInvalidCursor)
	}

	ts, seqStr, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return position{}, fmt.Errorf("%w: expected timestamp|seq", ErrInvalidCursor)
	}

	createdAt, err := parseTime(ts)
	if err != nil {
		return position{}, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil || seq < 0 {
		return position{}, fmt.Errorf("%w: bad sequence", ErrInvalidCursor)
	}

	return position{CreatedAt: createdAt, Seq: seq}, nil
}

// pageOf trims a limit+1 fetch to a Page, setting HasMore and the cursor from
// the last kept row.
func pageOf[T any](rows []T, positions []position, limit int) *Page[T] {
	page := &Page[T]{Data: rows}
	if len(rows) > limit {
		page.Data = rows[:limit]
		page.HasMore = true
		page.Cursor = encodeCursor(positions[limit-1])
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	return page
}
