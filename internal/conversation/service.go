// ABOUTME: Conversation service that turns analytics results into persisted thread items
// ABOUTME: Every widget is computed, validated, appended, and only then published

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/2389/parley-gateway/internal/auth"
	"github.com/2389/parley-gateway/internal/dedupe"
	"github.com/2389/parley-gateway/internal/odds"
	"github.com/2389/parley-gateway/internal/store"
	"github.com/2389/parley-gateway/internal/wager"
)

// Widget names stored in WidgetContent.Widget
const (
	WidgetParlayBuilder = "parlay_builder"
	WidgetBetAnalysis   = "bet_analysis"
)

var (
	// ErrDuplicateRequest is returned when a request id was already handled within the dedupe window
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrInvalidMessage is returned for empty messages or unknown roles
	ErrInvalidMessage = errors.New("invalid message")
)

// Service records conversation activity. It owns no state beyond its
// collaborators; the store is the source of truth.
type Service struct {
	store       store.ConversationStore
	engine      *wager.Engine
	broadcaster *ItemBroadcaster
	requests    *dedupe.Cache
	logger      *slog.Logger
}

// New creates a Service. broadcaster and requests may be nil to disable
// live fan-out and request deduplication.
func New(s store.ConversationStore, engine *wager.Engine, broadcaster *ItemBroadcaster, requests *dedupe.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       s,
		engine:      engine,
		broadcaster: broadcaster,
		requests:    requests,
		logger:      logger.With("component", "conversation"),
	}
}

// QuoteRequest asks for a parlay quote to be shown in a thread
type QuoteRequest struct {
	ThreadID  string
	RequestID string
	Legs      []wager.Leg
	Stake     float64
}

// AnalyzeRequest asks for a single bet to be priced against a hit rate
type AnalyzeRequest struct {
	ThreadID  string
	RequestID string
	Label     string
	HitRate   float64
	American  int
}

// BetAnalysis is the payload of a bet_analysis widget
type BetAnalysis struct {
	Label string `json:"label,omitempty"`
	*wager.Analysis
}

// EnsureThread returns the thread for threadID, persisting it if it only
// existed as a default. An empty threadID starts a new thread.
func (s *Service) EnsureThread(ctx context.Context, threadID string) (*store.Thread, error) {
	if threadID == "" {
		threadID = s.store.GenerateThreadID(ctx)
	}

	thread, err := s.store.LoadThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread: %w", err)
	}
	if !thread.Synthesized() {
		return thread, nil
	}

	if err := s.store.SaveThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("saving thread: %w", err)
	}
	s.logger.Debug("thread created", "thread_id", thread.ID, "owner_id", thread.OwnerID)

	return s.store.LoadThread(ctx, threadID)
}

// PostMessage appends a chat message to the thread.
func (s *Service) PostMessage(ctx context.Context, threadID, role, text string) (*store.ThreadItem, error) {
	if role != store.RoleUser && role != store.RoleAssistant {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidMessage, role)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidMessage)
	}

	return s.append(ctx, threadID, "", store.MessageContent{Role: role, Text: text})
}

// QuoteParlay prices the legs and records a parlay_builder widget. Nothing is
// written when the legs or stake are invalid.
func (s *Service) QuoteParlay(ctx context.Context, req QuoteRequest) (*wager.ParlayQuote, *store.ThreadItem, error) {
	release, err := s.claim(ctx, req.RequestID)
	if err != nil {
		return nil, nil, err
	}

	quote, err := s.engine.CombineParlay(req.Legs, req.Stake)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("quoting parlay: %w", err)
	}

	content, err := widget(WidgetParlayBuilder, quote, quoteCopyText(quote))
	if err != nil {
		release()
		return nil, nil, err
	}

	item, err := s.append(ctx, req.ThreadID, req.RequestID, content)
	if err != nil {
		release()
		return nil, nil, err
	}
	return quote, item, nil
}

// AnalyzeBet prices a bet and records a bet_analysis widget.
func (s *Service) AnalyzeBet(ctx context.Context, req AnalyzeRequest) (*wager.Analysis, *store.ThreadItem, error) {
	release, err := s.claim(ctx, req.RequestID)
	if err != nil {
		return nil, nil, err
	}

	analysis, err := s.engine.Analyze(req.HitRate, req.American)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("analyzing bet: %w", err)
	}

	content, err := widget(WidgetBetAnalysis, BetAnalysis{Label: req.Label, Analysis: analysis}, analysisCopyText(req.Label, analysis))
	if err != nil {
		release()
		return nil, nil, err
	}

	item, err := s.append(ctx, req.ThreadID, req.RequestID, content)
	if err != nil {
		release()
		return nil, nil, err
	}
	return analysis, item, nil
}

// History returns one ascending page of a thread's items.
func (s *Service) History(ctx context.Context, threadID, cursor string, limit int) (*store.Page[*store.ThreadItem], error) {
	return s.store.LoadThreadItems(ctx, threadID, cursor, limit, store.OrderAsc)
}

// Threads returns the caller's threads, newest first.
func (s *Service) Threads(ctx context.Context, cursor string, limit int) (*store.Page[*store.Thread], error) {
	return s.store.LoadThreads(ctx, limit, cursor, store.OrderDesc)
}

// DeleteThread removes a thread and its items. Attachments are left for the Janitor.
func (s *Service) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.store.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	s.logger.Info("thread deleted", "thread_id", threadID)
	return nil
}

// claim reserves requestID for the caller. The returned func gives it back.
func (s *Service) claim(ctx context.Context, requestID string) (func(), error) {
	if requestID == "" || s.requests == nil {
		return func() {}, nil
	}
	key := dedupe.Key(auth.UserID(ctx), requestID)
	if !s.requests.Claim(key) {
		s.logger.Debug("duplicate request", "request_id", requestID)
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}
	return func() { s.requests.Release(key) }, nil
}

// append stores content as a new item and fans it out.
func (s *Service) append(ctx context.Context, threadID, requestID string, content store.ItemContent) (*store.ThreadItem, error) {
	thread, err := s.EnsureThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	item := &store.ThreadItem{Content: content}
	if err := s.store.AppendThreadItem(ctx, thread.ID, item); err != nil {
		return nil, fmt.Errorf("appending %s: %w", content.Kind(), err)
	}
	item.ThreadID = thread.ID

	s.logger.Debug("item appended",
		"thread_id", thread.ID,
		"item_id", item.ID,
		"kind", content.Kind(),
		"request_id", requestID)

	if s.broadcaster != nil {
		s.broadcaster.Publish(item)
	}
	return item, nil
}

func widget(name string, payload any, copyText string) (store.WidgetContent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return store.WidgetContent{}, fmt.Errorf("encoding %s widget: %w", name, err)
	}
	return store.WidgetContent{Widget: name, Payload: raw, CopyText: copyText}, nil
}

func quoteCopyText(q *wager.ParlayQuote) string {
	if len(q.Legs) == 0 {
		return "Empty parlay"
	}
	picks := lo.Map(q.Legs, func(l wager.PricedLeg, i int) string {
		return fmt.Sprintf("%d. %s %s", i+1, l.Label, odds.Format(l.American))
	})
	return fmt.Sprintf("%d-Leg Parlay %s\n%s\nStake $%.2f to win $%.2f (payout $%.2f)",
		len(q.Legs), odds.Format(q.American), strings.Join(picks, "\n"), q.Stake, q.Profit, q.Payout)
}

func analysisCopyText(label string, a *wager.Analysis) string {
	subject := lo.Ternary(label == "", odds.Format(a.American), label+" "+odds.Format(a.American))
	return fmt.Sprintf("%s: edge %+.1f pts (hit %.1f%% vs implied %.1f%%), %s, Kelly %.1f%%",
		subject, a.Edge, a.HitRate*100, a.Implied*100, a.Tier, a.KellyFraction*100)
}
