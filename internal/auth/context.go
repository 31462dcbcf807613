// ABOUTME: Caller identity carried through request handling via context
// ABOUTME: Provides WithCaller/FromContext for the user id and request timestamp

package auth

import (
	"context"
	"time"
)

// Caller identifies who is making a request. The store uses UserID to scope
// thread listings and to stamp ownership; Timestamp, when set, is the instant
// the request was received and seeds item creation times.
type Caller struct {
	UserID    string
	Timestamp time.Time
}

// Anonymous reports whether no user is attached.
func (c *Caller) Anonymous() bool {
	return c == nil || c.UserID == ""
}

// callerKey is the key type for storing Caller in context.Context.
type callerKey struct{}

// WithCaller returns a new context with the Caller attached.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// FromContext retrieves the Caller from the context, returning nil if not present.
func FromContext(ctx context.Context) *Caller {
	val := ctx.Value(callerKey{})
	if val == nil {
		return nil
	}
	caller, ok := val.(*Caller)
	if !ok {
		return nil
	}
	return caller
}

// UserID returns the caller's user id, or "" when the context carries none.
func UserID(ctx context.Context) string {
	if c := FromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// Now returns the caller's request timestamp when present, otherwise the
// current UTC time.
func Now(ctx context.Context) time.Time {
	if c := FromContext(ctx); c != nil && !c.Timestamp.IsZero() {
		return c.Timestamp.UTC()
	}
	return time.Now().UTC()
}
