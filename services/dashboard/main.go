package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hydrogem/pool-dashboard/services/api/db"
	"github.com/hydrogem/pool-dashboard/services/api/live"
	"github.com/hydrogem/pool-dashboard/services/dashboard/apiclient"
	"github.com/hydrogem/pool-dashboard/services/dashboard/tui"
)

func main() {
	_ = godotenv.Load() // ignore missing file

	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	databaseURL string
	apiURL      string
	timezone    string
	channel     string
	poll        time.Duration
	logFile     string
}

func newRootCmd() *cobra.Command {
	opts := options{}

	root := &cobra.Command{
		Use:           "pooldash",
		Short:         "Live pool readings and water analysis in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flags.StringVar(&opts.apiURL, "api-url", envOr("POOLDASH_API_URL", "http://localhost:8080"), "dashboard API base URL")
	flags.StringVar(&opts.timezone, "timezone", envOr("DISPLAY_TIMEZONE", "Europe/Berlin"), "display timezone")
	flags.StringVar(&opts.channel, "channel", envOr("READINGS_CHANNEL", "pool_readings_insert"), "insert notification channel")
	flags.DurationVar(&opts.poll, "poll", 0, "periodic refresh interval (0 disables)")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of discarding them")
	return root
}

func run(parent context.Context, opts options) error {
	if opts.databaseURL == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("invalid --timezone: %w", err)
	}

	// The alternate screen owns the terminal.
	if opts.logFile != "" {
		f, err := tea.LogToFile(opts.logFile, "pooldash")
		if err != nil {
			return err
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, opts.databaseURL)
	if err != nil {
		return fmt.Errorf("db connection error: %w", err)
	}
	defer store.Close()

	feed := db.NewBroadcaster()
	listener := db.NewListener(store, opts.channel, feed)
	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	go func() {
		if err := listener.Run(listenCtx); err != nil {
			log.Printf("readings listener stopped: %v", err)
		}
	}()

	initial, err := store.LatestReading(ctx)
	if err != nil {
		log.Printf("initial reading unavailable: %v", err)
		initial = nil
	}

	view := live.NewView(store, feed, live.Options{PollInterval: opts.poll})
	if err := view.Mount(ctx, initial); err != nil {
		return err
	}
	defer view.Release()

	analyzer := apiclient.NewClient(&http.Client{Timeout: 90 * time.Second}, opts.apiURL)
	program := tea.NewProgram(tui.New(view, analyzer, loc), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
