// ABOUTME: One-shot commands for quoting, analysis, and thread maintenance
// ABOUTME: Results print as colored text or, with --json, as JSON on stdout

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/parley-gateway/internal/conversation"
	"github.com/2389/parley-gateway/internal/odds"
	"github.com/2389/parley-gateway/internal/store"
	"github.com/2389/parley-gateway/internal/wager"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseLeg reads "ODDS" or "LABEL@ODDS", e.g. "Lakers ML@-150".
func parseLeg(s string, n int) (wager.Leg, error) {
	label, price := fmt.Sprintf("Leg %d", n), s
	if i := strings.LastIndex(s, "@"); i >= 0 {
		label, price = strings.TrimSpace(s[:i]), s[i+1:]
	}
	american, err := odds.ParseAmerican(price)
	if err != nil {
		return wager.Leg{}, fmt.Errorf("leg %d: %w", n, err)
	}
	return wager.Leg{Label: label, American: american}, nil
}

func newQuoteCmd(a *app) *cobra.Command {
	flags := &struct {
		stake     float64
		market    string
		threadID  string
		requestID string
		asJSON    bool
	}{}

	cmd := &cobra.Command{
		Use:   "quote [flags] -- ODDS|LABEL@ODDS...",
		Short: "Price a parlay from American odds",
		Long: `Price a parlay from American odds.

Examples:
  # Two legs at -150 and +130 for $100
  parley-gateway quote --stake 100 -- -150 +130

  # Record the quote as a widget in a thread
  parley-gateway quote --thread thread_abc -- "Lakers ML@-150" "Celtics -3.5@+130"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			legs := make([]wager.Leg, 0, len(args))
			for i, arg := range args {
				leg, err := parseLeg(arg, i+1)
				if err != nil {
					return err
				}
				leg.Market = flags.market
				legs = append(legs, leg)
			}

			stake := a.cfg.Analytics.DefaultStake
			if cmd.Flags().Changed("stake") {
				stake = flags.stake
			}

			engine, err := a.engine()
			if err != nil {
				return err
			}

			var (
				quote *wager.ParlayQuote
				item  *store.ThreadItem
			)
			if flags.threadID == "" {
				quote, err = engine.CombineParlay(legs, stake)
			} else {
				err = a.withService(engine, func(svc *conversation.Service) error {
					ctx, err := a.callerContext(cmd.Context())
					if err != nil {
						return err
					}
					quote, item, err = svc.QuoteParlay(ctx, conversation.QuoteRequest{
						ThreadID:  flags.threadID,
						RequestID: flags.requestID,
						Legs:      legs,
						Stake:     stake,
					})
					return err
				})
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.asJSON {
				return printJSON(out, quote)
			}
			printQuote(out, quote)
			if item != nil {
				color.New(color.FgHiBlack).Fprintf(out, "saved %s in %s\n", item.ID, item.ThreadID)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&flags.stake, "stake", 0, "stake amount (default analytics.default_stake)")
	cmd.Flags().StringVar(&flags.market, "market", "", "market label applied to every leg")
	cmd.Flags().StringVar(&flags.threadID, "thread", "", "append the quote to this thread")
	cmd.Flags().StringVar(&flags.requestID, "request-id", "", "idempotency key for --thread")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print JSON")
	return cmd
}

func printQuote(w io.Writer, q *wager.ParlayQuote) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)

	bold.Fprintf(w, "%d-Leg Parlay\n", len(q.Legs))
	for i, leg := range q.Legs {
		fmt.Fprintf(w, "  #%d %-24s %6s  (%.3f)\n", i+1, leg.Label, odds.Format(leg.American), leg.Decimal)
	}
	fmt.Fprintf(w, "Parlay odds:  ")
	if len(q.Legs) == 0 {
		fmt.Fprintln(w, "n/a")
	} else {
		green.Fprintf(w, "%s", odds.Format(q.American))
		fmt.Fprintf(w, " (%.4f)\n", q.Decimal)
	}
	fmt.Fprintf(w, "Stake:        $%.2f\n", q.Stake)
	fmt.Fprintf(w, "To win:       ")
	green.Fprintf(w, "$%.2f\n", q.Profit)
	fmt.Fprintf(w, "Total payout: $%.2f\n", q.Payout)
}

func newAnalyzeCmd(a *app) *cobra.Command {
	flags := &struct {
		hitRate   float64
		price     string
		label     string
		threadID  string
		requestID string
		asJSON    bool
	}{}

	cmd := &cobra.Command{
		Use:   "analyze --hit-rate P --odds ODDS",
		Short: "Compute edge, Kelly stake and confidence tier for one bet",
		Long: `Compute edge, Kelly stake and confidence tier for one bet.

Examples:
  parley-gateway analyze --hit-rate 0.58 --odds -110
  parley-gateway analyze --hit-rate 0.62 --odds +105 --label "Over 220.5" --thread thread_abc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			american, err := odds.ParseAmerican(flags.price)
			if err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}

			var analysis *wager.Analysis
			if flags.threadID == "" {
				analysis, err = engine.Analyze(flags.hitRate, american)
			} else {
				err = a.withService(engine, func(svc *conversation.Service) error {
					ctx, err := a.callerContext(cmd.Context())
					if err != nil {
						return err
					}
					analysis, _, err = svc.AnalyzeBet(ctx, conversation.AnalyzeRequest{
						ThreadID:  flags.threadID,
						RequestID: flags.requestID,
						Label:     flags.label,
						HitRate:   flags.hitRate,
						American:  american,
					})
					return err
				})
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.asJSON {
				return printJSON(out, conversation.BetAnalysis{Label: flags.label, Analysis: analysis})
			}
			printAnalysis(out, flags.label, analysis)
			return nil
		},
	}

	cmd.Flags().Float64Var(&flags.hitRate, "hit-rate", 0, "estimated probability the bet wins, 0..1")
	cmd.Flags().StringVar(&flags.price, "odds", "", "American odds, e.g. -110 or +130")
	cmd.Flags().StringVar(&flags.label, "label", "", "what the bet is on")
	cmd.Flags().StringVar(&flags.threadID, "thread", "", "append the analysis to this thread")
	cmd.Flags().StringVar(&flags.requestID, "request-id", "", "idempotency key for --thread")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("hit-rate")
	_ = cmd.MarkFlagRequired("odds")
	return cmd
}

func printAnalysis(w io.Writer, label string, an *wager.Analysis) {
	bold := color.New(color.Bold)
	edgeColor := color.New(color.FgGreen)
	if an.Edge <= 0 {
		edgeColor = color.New(color.FgRed)
	}

	if label != "" {
		bold.Fprintf(w, "%s ", label)
	}
	bold.Fprintf(w, "%s\n", odds.Format(an.American))
	fmt.Fprintf(w, "Implied:        %.1f%%\n", an.Implied*100)
	fmt.Fprintf(w, "Hit rate:       %.1f%%\n", an.HitRate*100)
	fmt.Fprintf(w, "Edge:           ")
	edgeColor.Fprintf(w, "%+.1f pts\n", an.Edge)
	fmt.Fprintf(w, "Kelly stake:    %.2f%% of bankroll\n", an.KellyFraction*100)
	fmt.Fprintf(w, "Tier:           %s\n", an.Tier)
	fmt.Fprintf(w, "Recommendation: %s\n", an.Recommendation)
}

// withService opens the store and runs fn against a conversation service.
func (a *app) withService(engine *wager.Engine, fn func(*conversation.Service) error) error {
	s, err := a.openStore(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	requests := a.requests()
	defer requests.Close()

	return fn(conversation.New(s, engine, nil, requests, a.logger))
}

func newThreadsCmd(a *app) *cobra.Command {
	flags := &struct {
		limit  int
		cursor string
		asJSON bool
	}{}

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List threads for the caller in $PARLEY_TOKEN, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := a.callerContext(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.openStore(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			page, err := conversation.New(s, nil, nil, nil, a.logger).Threads(ctx, flags.cursor, flags.limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.asJSON {
				return printJSON(out, page)
			}
			gray := color.New(color.FgHiBlack)
			for _, t := range page.Data {
				title := "(untitled)"
				if t.Title != nil {
					title = *t.Title
				}
				fmt.Fprintf(out, "%s  %s  ", t.ID, t.CreatedAt.Format(time.RFC3339))
				gray.Fprintf(out, "%s\n", title)
			}
			printCursor(out, page.HasMore, page.Cursor)
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", store.DefaultPageLimit, "page size")
	cmd.Flags().StringVar(&flags.cursor, "cursor", "", "cursor from a previous page")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print JSON")
	return cmd
}

func newItemsCmd(a *app) *cobra.Command {
	flags := &struct {
		limit  int
		cursor string
		desc   bool
		asJSON bool
	}{}

	cmd := &cobra.Command{
		Use:   "items <thread-id>",
		Short: "List the items of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.callerContext(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.openStore(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			order := store.OrderAsc
			if flags.desc {
				order = store.OrderDesc
			}
			page, err := s.LoadThreadItems(ctx, args[0], flags.cursor, flags.limit, order)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.asJSON {
				return printJSON(out, page)
			}
			for _, item := range page.Data {
				fmt.Fprintf(out, "%s  %-10s %s\n", item.CreatedAt.Format(time.RFC3339), item.Kind(), summarize(item))
			}
			printCursor(out, page.HasMore, page.Cursor)
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", store.DefaultPageLimit, "page size")
	cmd.Flags().StringVar(&flags.cursor, "cursor", "", "cursor from a previous page")
	cmd.Flags().BoolVar(&flags.desc, "desc", false, "newest first")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print JSON")
	return cmd
}

// summarize renders one line for an item
func summarize(item *store.ThreadItem) string {
	switch c := item.Content.(type) {
	case store.MessageContent:
		return c.Role + ": " + c.Text
	case store.ToolCallContent:
		return c.Name + " " + c.Status
	case store.TaskContent:
		return c.Title
	case store.WorkflowContent:
		return c.Summary
	case store.AttachmentContent:
		return c.Name
	case store.WidgetContent:
		first, _, _ := strings.Cut(c.CopyText, "\n")
		return "[" + c.Widget + "] " + first
	}
	return item.ID
}

func printCursor(w io.Writer, hasMore bool, cursor string) {
	if hasMore {
		color.New(color.FgHiBlack).Fprintf(w, "more: --cursor %s\n", cursor)
	}
}

func newDeleteThreadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-thread <thread-id>",
		Short: "Delete a thread and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.callerContext(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.openStore(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := conversation.New(s, nil, nil, nil, a.logger).DeleteThread(ctx, args[0]); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a JWT for a user with auth.jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.verifier()
			if err != nil {
				return err
			}
			token, err := v.Generate(args[0], ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
