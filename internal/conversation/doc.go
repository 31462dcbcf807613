// Package conversation assembles analytics results into thread items.
//
// # Service
//
//	svc := conversation.New(store, engine, broadcaster, requests, logger)
//
// Operations:
//
//   - EnsureThread: load a thread, persisting it on first use
//   - PostMessage: append a user or assistant message
//   - QuoteParlay: price legs and append a parlay_builder widget
//   - AnalyzeBet: price a single bet and append a bet_analysis widget
//   - History, Threads, DeleteThread: paging and removal
//
// Analytics are validated before anything is written, so a rejected quote
// never leaves an item behind. A widget item holds a JSON snapshot of the
// result for display; it is not read back as authoritative state.
//
// Requests carrying a RequestID are claimed in a dedupe.Cache scoped to the
// caller. A repeat within the TTL fails with ErrDuplicateRequest. A failed
// write releases the claim so the client can retry.
//
// # Broadcasting
//
// ItemBroadcaster fans each appended item out to subscribers of its thread.
// Delivery happens after the append succeeds and drops items for subscribers
// whose buffer is full.
//
// # Janitor
//
// DeleteThread leaves attachments in place. Janitor periodically deletes
// attachments whose thread no longer exists.
package conversation
