// Package config wires the environment variables spec.md §6 lists into a
// cobra command, grounded on Seednode-partybox's newCmd/Config pattern:
// every flag is bound to its exact environment variable name via viper, so
// operators can configure the server purely through the environment
// without ever touching a flag.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wordchain.dev/internal/db"
	"wordchain.dev/internal/dictionary"
	"wordchain.dev/srv"
)

// Config is the full set of command-line-or-environment-configurable
// parameters. Field names deliberately mirror spec.md §6's variable names
// so the mapping from flag to env var is obvious on sight.
type Config struct {
	bind string
	port int

	databaseURI          string
	dictionaryAPIKey     string
	dictionaryAPIURL     string
	corsOrigins          string
	authCookieName       string
	authCookieExpiry     time.Duration
	gameStartDelay       time.Duration
	turnStartDelay       time.Duration
	maxTurnDeviation     time.Duration
	roomDeletionInterval time.Duration
	roomDeletionDelay    time.Duration
	rootID string
	// lobbyID is accepted for interface completeness; srv.LobbyID is a
	// fixed constant matching its default of 1, so this is parsed but
	// neither validated nor passed on to srv.Config.
	lobbyID int
}

func (c *Config) validate() error {
	if c.databaseURI == "" {
		return errors.New("--database-uri (env: DATABASE_URI) is required")
	}
	if c.dictionaryAPIKey == "" {
		return errors.New("--dictionary-api-key (env: DICTIONARY_API_KEY) is required")
	}
	if c.rootID == "" {
		return errors.New("--root-id (env: ROOT_ID) is required")
	}
	if _, err := uuid.Parse(c.rootID); err != nil {
		return fmt.Errorf("--root-id must be a valid UUID: %w", err)
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func (c *Config) origins() []string {
	if c.corsOrigins == "" {
		return nil
	}
	parts := strings.Split(c.corsOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// NewCommand returns the root cobra command: parsing flags/env, validating,
// then wiring a srv.Server and serving until the process is signaled.
func NewCommand() *cobra.Command {
	cfg := &Config{}

	v := viper.New()
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wordchain-server",
		Short:         "Coordination server for a multiplayer word-chain game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.bind, "bind", "0.0.0.0", "address to bind to (env: BIND)")
	fs.IntVar(&cfg.port, "port", 8080, "port to listen on (env: PORT)")
	fs.StringVar(&cfg.databaseURI, "database-uri", "", "sqlite database file path (env: DATABASE_URI)")
	fs.StringVar(&cfg.dictionaryAPIKey, "dictionary-api-key", "", "external dictionary API key (env: DICTIONARY_API_KEY)")
	fs.StringVar(&cfg.dictionaryAPIURL, "dictionary-api-url", "https://dictionaryapi.com/api/v3/references/collegiate/json/{word}?key={api_key}", "external dictionary URL template (env: DICTIONARY_API_URL)")
	fs.StringVar(&cfg.corsOrigins, "cors-origins", "", "comma-separated list of allowed CORS origins (env: CORS_ORIGINS)")
	fs.StringVar(&cfg.authCookieName, "auth-cookie-name", "player_id", "name of the auth cookie (env: AUTH_COOKIE_NAME)")
	fs.DurationVar(&cfg.authCookieExpiry, "auth-cookie-expiration", 30*24*time.Hour, "auth cookie max age (env: AUTH_COOKIE_EXPIRATION)")
	fs.DurationVar(&cfg.gameStartDelay, "game-start-delay", 3*time.Second, "delay between a game starting and its first turn (env: GAME_START_DELAY)")
	fs.DurationVar(&cfg.turnStartDelay, "turn-start-delay", 2*time.Second, "delay between turns (env: TURN_START_DELAY)")
	fs.DurationVar(&cfg.maxTurnDeviation, "max-turn-time-deviation", 2*time.Second, "tolerance for incidental overshoot past round_time before a timed-out turn is logged as anomalous (env: MAX_TURN_TIME_DEVIATION)")
	fs.DurationVar(&cfg.roomDeletionInterval, "room-deletion-interval", time.Minute, "how often the reaper scans for idle rooms (env: ROOM_DELETION_INTERVAL)")
	fs.DurationVar(&cfg.roomDeletionDelay, "room-deletion-delay", 10*time.Minute, "how long an empty room must sit idle before being reaped (env: ROOM_DELETION_DELAY)")
	fs.StringVar(&cfg.rootID, "root-id", "", "fixed UUID for the system pseudo-user (env: ROOT_ID)")
	fs.IntVar(&cfg.lobbyID, "lobby-id", 1, "room id of the well-known lobby (env: LOBBY_ID)")

	fs.VisitAll(func(f *pflag.Flag) {
		envName := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name, envName)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func run(ctx context.Context, cfg *Config) error {
	store, err := db.Open(cfg.databaseURI)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	dict := dictionary.New(cfg.dictionaryAPIURL, cfg.dictionaryAPIKey)

	rootID, err := uuid.Parse(cfg.rootID)
	if err != nil {
		return fmt.Errorf("parse root id: %w", err)
	}

	server := srv.New(srv.Config{
		CookieName:   cfg.authCookieName,
		CookieExpiry: cfg.authCookieExpiry,
		CORSOrigins:  cfg.origins(),
		Delays: srv.LoopDelays{
			GameStart:            cfg.gameStartDelay,
			TurnStart:            cfg.turnStartDelay,
			MaxTurnTimeDeviation: cfg.maxTurnDeviation,
		},
		ReaperInterval: cfg.roomDeletionInterval,
		ReaperDelay:    cfg.roomDeletionDelay,
		RootID:         rootID,
	}, store, dict)

	addr := fmt.Sprintf("%s:%d", cfg.bind, cfg.port)
	return server.Serve(addr)
}
