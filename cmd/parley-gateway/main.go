// ABOUTME: Entry point for parley-gateway
// ABOUTME: Wires config, logging, the conversation store, and the wager engine into cobra commands

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/2389/parley-gateway/internal/auth"
	"github.com/2389/parley-gateway/internal/config"
	"github.com/2389/parley-gateway/internal/dedupe"
	"github.com/2389/parley-gateway/internal/store"
	"github.com/2389/parley-gateway/internal/wager"
)

// Version is set at build time.
var version = "dev"

// envToken holds the caller's JWT for commands that act on their threads
const envToken = "PARLEY_TOKEN"

const banner = `
                  _
 _ __   __ _ _ __| | ___ _   _
| '_ \ / _' | '__| |/ _ \ | | |
| |_) | (_| | |  | |  __/ |_| |
| .__/ \__,_|_|  |_|\___|\__, |
|_|                      |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	envFile    string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "parley-gateway",
		Short: "Conversation store and wager analytics for the parley assistant",
		Long: `parley-gateway persists assistant conversations and prices bets.

Configuration is read from --config, $PARLEY_CONFIG, or
~/.config/parley/gateway.yaml. A .env file is loaded first when present.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (yaml or toml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before config expansion")

	root.AddCommand(
		newServeCmd(a),
		newQuoteCmd(a),
		newAnalyzeCmd(a),
		newThreadsCmd(a),
		newItemsCmd(a),
		newDeleteThreadCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := loadEnvFile(a.envFile); err != nil {
		return err
	}

	path, explicit := a.configPath, a.configPath != ""
	if !explicit {
		path = config.ResolvePath()
		explicit = os.Getenv(config.EnvConfigPath) != ""
	}
	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a.configPath = path
	a.cfg = cfg
	a.logger = setupLogger(cfg.Logging, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	return nil
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    color.NoColor,
		})
	}

	return slog.New(handler)
}

// openStore opens the configured backend. When reg is non-nil the store is
// instrumented on it. Every store returned runs under the configured
// deadline and read retry policy.
func (a *app) openStore(reg prometheus.Registerer) (store.ConversationStore, error) {
	db := a.cfg.Database
	s, err := store.Open(store.Options{
		Driver: db.Driver,
		Path:   db.Path,
		DSN:    db.DSN,
		Logger: a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if reg != nil {
		s = store.Instrument(s, reg)
	}
	return store.WithResilience(s, store.ResilienceOptions{
		OpTimeout:    db.OpTimeout,
		ReadRetries:  db.ReadRetries,
		RetryBackoff: db.RetryBackoff,
		Logger:       a.logger,
	}), nil
}

func (a *app) engine() (*wager.Engine, error) {
	e, err := wager.NewEngine(a.cfg.Analytics.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("building analytics engine: %w", err)
	}
	return e, nil
}

func (a *app) requests() *dedupe.Cache {
	return dedupe.New(a.cfg.Dedupe.TTL, a.cfg.Dedupe.MaxSize)
}

func (a *app) verifier() (*auth.JWTVerifier, error) {
	return auth.NewJWTVerifier([]byte(a.cfg.Auth.JWTSecret))
}

// callerContext attaches the caller named by $PARLEY_TOKEN. Without a token
// the caller is anonymous and sees every thread.
func (a *app) callerContext(ctx context.Context) (context.Context, error) {
	token := os.Getenv(envToken)
	if token == "" {
		return auth.WithCaller(ctx, &auth.Caller{Timestamp: time.Now().UTC()}), nil
	}

	v, err := a.verifier()
	if err != nil {
		return nil, fmt.Errorf("%s is set: %w", envToken, err)
	}
	return auth.Authenticate(ctx, v, token)
}
