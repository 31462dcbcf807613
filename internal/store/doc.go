// Package store persists conversation threads, their items, and attachments.
//
// # Architecture
//
// ConversationStore is the single storage contract. Three backends implement it:
//
//   - MemoryStore: maps behind an RWMutex, for tests and ephemeral runs
//   - SQLiteStore: database/sql over modernc.org/sqlite, the default
//   - GormStore: gorm models, used with the Postgres dialect in production
//
// Open selects a backend from Options. Two decorators wrap any backend:
//
//   - WithResilience: per-operation deadlines and read retries
//   - Instrument: Prometheus counters and latency histograms
//
// # Ordering and Pagination
//
// Items are ordered by (created_at, seq) where seq is a store-assigned
// insertion sequence, so equal timestamps still page deterministically.
// Timestamps are normalized to UTC microseconds. Pages fetch limit+1 rows to
// compute HasMore; the cursor is an opaque base64url token naming the last
// row returned and is empty on the final page.
//
// Limits at or below zero become DefaultPageLimit and are capped at
// MaxPageLimit.
//
// # Appending
//
// AppendThreadItem never overwrites. A missing id is generated from the item
// kind, a zero CreatedAt is filled from the caller's clock, and a timestamp
// older than the thread's newest item is raised to match it. SaveItem is the
// upsert path. Replacing an item with a zero CreatedAt keeps its stored
// timestamp and therefore its position; a non-zero CreatedAt moves it.
//
// # Error Handling
//
//   - ErrNotFound: the thread item or attachment does not exist
//   - ErrConflict: an append reused an existing item id
//   - ErrUnavailable: the backend timed out or failed transiently
//   - ErrInvalidCursor: a cursor could not be decoded
//   - ErrInvalidItem: an item had no content or an unknown kind
//
// LoadThread on a missing id returns a default thread owned by the caller
// without persisting it. Every other failure is returned, never masked.
package store
