package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"stramate/internal/auth"
	"stramate/internal/config"
	"stramate/internal/service"
	"stramate/internal/store"
	"stramate/internal/strava"
)

// errNotConfigured stops a command after the example config was written
var errNotConfigured = errors.New("stramate is not configured")

var (
	verbose   bool
	athleteID int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stramate",
		Short: "Heart-rate training load from your Strava activities",
		Long: `stramate syncs your Strava activities, scores each one with a heart rate
stress score (HRSS) and tracks fitness (CTL), fatigue (ATL) and form (TSB).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Int64Var(&athleteID, "athlete", 0, "athlete ID (default: the authenticated athlete)")

	rootCmd.AddCommand(
		authCmd(),
		syncCmd(),
		analyzeCmd(),
		recomputeCmd(),
		snapshotCmd(),
		reportCmd(),
		athleteCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if errors.Is(err, errNotConfigured) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// app holds what every command needs
type app struct {
	cfg       *config.Config
	db        *store.DB
	logger    *slog.Logger
	analytics *service.AnalyticsService
}

func newApp(logger *slog.Logger) (*app, error) {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		if err := config.CreateExample(); err != nil {
			return nil, fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("No config file found. An example was written to:\n  %s\n\n", filepath.Join(configDir, "config.json"))
		fmt.Println("Add your Strava API credentials from https://www.strava.com/settings/api")
		fmt.Println("or set STRAMATE_STRAVA_CLIENT_ID and STRAMATE_STRAVA_CLIENT_SECRET.")
		return nil, errNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		return nil, fmt.Errorf("%w (edit %s)", err, filepath.Join(configDir, "config.json"))
	}

	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Debug("database opened", "path", path)

	analytics, err := service.NewAnalyticsService(db, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &app{cfg: cfg, db: db, logger: logger, analytics: analytics}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) oauthConfig() auth.Config {
	return auth.Config{
		ClientID:     a.cfg.Strava.ClientID,
		ClientSecret: a.cfg.Strava.ClientSecret,
		CallbackPort: a.cfg.Strava.CallbackPort,
	}
}

// athlete resolves the athlete a command works on
func (a *app) athlete() (int64, error) {
	if athleteID != 0 {
		return athleteID, nil
	}
	stored, err := a.db.GetAuth()
	if errors.Is(err, store.ErrNoAuth) {
		return 0, errors.New("not authenticated: run 'stramate auth' or pass --athlete")
	}
	if err != nil {
		return 0, err
	}
	return stored.AthleteID, nil
}

// authenticate runs the browser OAuth flow and stores the tokens
func (a *app) authenticate(ctx context.Context) (*store.Auth, error) {
	result, err := auth.Authenticate(ctx, auth.NewOAuthConfig(a.oauthConfig()), os.Stdout)
	if err != nil {
		return nil, err
	}

	stored := &store.Auth{
		AthleteID:    result.AthleteID,
		AccessToken:  result.Token.AccessToken,
		RefreshToken: result.Token.RefreshToken,
		ExpiresAt:    result.Token.Expiry,
	}
	if err := a.db.SaveAuth(stored); err != nil {
		return nil, err
	}
	a.logger.Info("authenticated", "athlete_id", result.AthleteID)
	return stored, nil
}

// stravaClient returns an API client, authenticating first when no usable
// token is stored
func (a *app) stravaClient(ctx context.Context) (*strava.Client, error) {
	stored, err := a.db.GetAuth()
	if errors.Is(err, store.ErrNoAuth) {
		fmt.Println("No authentication found. Starting OAuth flow...")
		stored, err = a.authenticate(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("authentication: %w", err)
	}

	oauthCfg := auth.NewOAuthConfig(a.oauthConfig())
	ts := auth.NewTokenSource(oauthCfg, stored.Token(), a.db)
	if _, err := ts.Token(); err != nil {
		a.logger.Warn("stored token rejected", "error", err)
		fmt.Println("Stored token is invalid or expired. Re-authenticating...")
		if stored, err = a.authenticate(ctx); err != nil {
			return nil, fmt.Errorf("re-authentication: %w", err)
		}
		ts = auth.NewTokenSource(oauthCfg, stored.Token(), a.db)
	}
	return strava.NewClient(ts), nil
}

// withApp runs fn with an app whose logs go to stderr
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(newLogger(os.Stderr))
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}
