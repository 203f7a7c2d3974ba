/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/triviabox/game"
)

type Config struct {
	autoEnd      bool
	bind         string
	console      bool
	databaseURL  string
	grace        time.Duration
	lateJoin     string
	logFormat    string
	natsSubject  string
	natsURL      string
	operatorKey  string
	port         int
	prefix       string
	profile      bool
	questions    string
	sendBuffer   int
	storeBackoff time.Duration
	storeRetries int
	storeTimeout time.Duration
	tlsCert      string
	tlsKey       string
	tokenSecret  string
	verbose      bool
	version      bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.questions == "" {
		return errors.New("--questions is required")
	}
	switch game.LateJoinPolicy(c.lateJoin) {
	case game.LateJoinWait, game.LateJoinResend:
	default:
		return fmt.Errorf("invalid --late-join (must be wait or resend): %q", c.lateJoin)
	}
	switch c.logFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid --log-format (must be console or json): %q", c.logFormat)
	}
	if c.sendBuffer < 1 {
		return fmt.Errorf("invalid --send-buffer (must be at least 1): %d", c.sendBuffer)
	}
	if c.storeRetries < 0 {
		return fmt.Errorf("invalid --store-retries (must not be negative): %d", c.storeRetries)
	}
	if c.grace < 0 || c.storeBackoff < 0 {
		return errors.New("--grace and --store-backoff must not be negative")
	}
	if c.storeTimeout <= 0 {
		return fmt.Errorf("invalid --store-timeout (must be positive): %s", c.storeTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) wsScheme() string {
	if c.scheme() == "https" {
		return "wss"
	}
	return "ws"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIABOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "triviabox",
		Short:         "Runs a live, round-based trivia game for teams connecting over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.BoolVar(&cfg.autoEnd, "auto-end", true, "end each question when its time limit plus grace runs out (env: TRIVIABOX_AUTO_END)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIABOX_BIND)")
	fs.BoolVar(&cfg.console, "console", false, "read operator commands from stdin (env: TRIVIABOX_CONSOLE)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string; in-memory storage when empty (env: TRIVIABOX_DATABASE_URL)")
	fs.DurationVar(&cfg.grace, "grace", 5*time.Second, "extra time allowed after a question's limit before it ends (env: TRIVIABOX_GRACE)")
	fs.StringVar(&cfg.lateJoin, "late-join", string(game.LateJoinWait), "teams joining mid-question: wait or resend (env: TRIVIABOX_LATE_JOIN)")
	fs.StringVar(&cfg.logFormat, "log-format", "console", "log output: console or json (env: TRIVIABOX_LOG_FORMAT)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "triviabox", "subject prefix for published round events (env: TRIVIABOX_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "publish round events to this NATS server (env: TRIVIABOX_NATS_URL)")
	fs.StringVar(&cfg.operatorKey, "operator-key", "", "enables the HTTP operator API with this key (env: TRIVIABOX_OPERATOR_KEY)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRIVIABOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIABOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIABOX_PROFILE)")
	fs.StringVarP(&cfg.questions, "questions", "q", "", "question bank (.yaml, .yml or .json) (env: TRIVIABOX_QUESTIONS)")
	fs.IntVar(&cfg.sendBuffer, "send-buffer", 32, "frames queued per connection before it is dropped (env: TRIVIABOX_SEND_BUFFER)")
	fs.DurationVar(&cfg.storeBackoff, "store-backoff", 200*time.Millisecond, "delay between store retries, growing linearly (env: TRIVIABOX_STORE_BACKOFF)")
	fs.IntVar(&cfg.storeRetries, "store-retries", 3, "retries for failed store writes (env: TRIVIABOX_STORE_RETRIES)")
	fs.DurationVar(&cfg.storeTimeout, "store-timeout", 2*time.Second, "time limit for store writes, retries included, per game event (env: TRIVIABOX_STORE_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIABOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIABOX_TLS_KEY)")
	fs.StringVar(&cfg.tokenSecret, "token-secret", "", "secret for signing rejoin tokens; random when empty (env: TRIVIABOX_TOKEN_SECRET)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRIVIABOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIABOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("triviabox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
