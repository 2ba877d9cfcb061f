// config.go
//
// Command line and environment configuration.
// Every flag can also be set as CONNECTIONS_<FLAG> (dashes become
// underscores), including from a .env file loaded at startup.

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	releaseVersion = "0.4.0"
	envPrefix      = "CONNECTIONS"
)

type Config struct {
	// shared
	logLevel    string
	puzzleFile  string
	puzzleDB    string
	revealDelay time.Duration
	noticeTTL   time.Duration
	dailySalt   string

	// serve
	bind           string
	port           int
	jwtSecret      string
	clientOrigin   string
	sessionTimeout time.Duration

	// play
	daily   bool
	verbose bool
}

func (c *Config) validate() error {
	if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.logLevel)
	}
	if c.puzzleFile != "" && c.puzzleDB != "" {
		return errors.New("--puzzle-file and --puzzle-db are mutually exclusive")
	}
	if c.revealDelay < 0 {
		return fmt.Errorf("invalid reveal delay (must not be negative): %s", c.revealDelay)
	}
	if c.noticeTTL <= 0 {
		return fmt.Errorf("invalid notice ttl (must be positive): %s", c.noticeTTL)
	}
	return nil
}

func (c *Config) validateServe() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sessionTimeout <= 0 {
		return fmt.Errorf("invalid session timeout (must be positive): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "connections",
		Short:         "A word-grouping puzzle: find four groups of four.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error (env: CONNECTIONS_LOG_LEVEL)")
	pfs.StringVar(&cfg.puzzleFile, "puzzle-file", "", "CSV dataset to load instead of the built-in one (env: CONNECTIONS_PUZZLE_FILE)")
	pfs.StringVar(&cfg.puzzleDB, "puzzle-db", "", "SQLite database holding a categories table (env: CONNECTIONS_PUZZLE_DB)")
	pfs.DurationVar(&cfg.revealDelay, "reveal-delay", 500*time.Millisecond, "pause before a decided game shows won/lost (env: CONNECTIONS_REVEAL_DELAY)")
	pfs.DurationVar(&cfg.noticeTTL, "notice-ttl", 2*time.Second, "how long notices stay visible (env: CONNECTIONS_NOTICE_TTL)")
	pfs.StringVar(&cfg.dailySalt, "daily-salt", "connections", "salt for the puzzle of the day (env: CONNECTIONS_DAILY_SALT)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validateServe(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	sfs := serve.Flags()
	sfs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CONNECTIONS_BIND)")
	sfs.IntVarP(&cfg.port, "port", "p", 5175, "port to listen on (env: CONNECTIONS_PORT)")
	sfs.StringVar(&cfg.jwtSecret, "jwt-secret", "dev_secret_change_me", "HMAC key for session tokens (env: CONNECTIONS_JWT_SECRET)")
	sfs.StringVar(&cfg.clientOrigin, "client-origin", "http://localhost:5173", "allowed CORS and WebSocket origin (env: CONNECTIONS_CLIENT_ORIGIN)")
	sfs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle sessions are ended; also the session token lifetime, renewed while playing (env: CONNECTIONS_SESSION_TIMEOUT)")

	play := &cobra.Command{
		Use:   "play",
		Short: "Play in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return runPlay(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	plfs := play.Flags()
	plfs.BoolVar(&cfg.daily, "daily", false, "play the puzzle of the day (env: CONNECTIONS_DAILY)")
	plfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "show info logs while playing (env: CONNECTIONS_VERBOSE)")

	for _, fs := range []*pflag.FlagSet{pfs, sfs, plfs} {
		bindFlags(v, fs)
	}

	cmd.AddCommand(serve, play)
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("connections v{{.Version}}\n")

	return cmd
}

// bindFlags lets environment values fill any flag not given on the command line.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
